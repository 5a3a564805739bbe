package stats

import (
	"fmt"
	"strings"
)

const (
	SuitePassed = "passed"
	SuiteFailed = "failed"
)

// SuiteStats is one row of the per-suite breakdown.
type SuiteStats struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Total      int     `json:"total"`
	DurationMs float64 `json:"durationMs"`
}

// FunctionalStats is the display-ready summary of a functional test run.
// Passed+Failed is not forced to equal TotalTests; the source may disagree
// with itself and the numbers are shown as reported.
type FunctionalStats struct {
	SuiteCount    int          `json:"suiteCount"`
	TotalTests    int          `json:"totalTests"`
	Passed        int          `json:"passed"`
	Failed        int          `json:"failed"`
	PassRatePct   float64      `json:"passRatePct"`
	AvgDurationMs float64      `json:"avgDurationMs"`
	Suites        []SuiteStats `json:"suites"`
}

// NormalizeFunctional converts a raw functional run summary into
// FunctionalStats. Both Jest-style summaries and Playwright JSON reports are
// understood. A nil summary is unavailable; anything else yields a fully
// populated record.
func NormalizeFunctional(raw map[string]any) Result[FunctionalStats] {
	if raw == nil {
		return Unavailable[FunctionalStats]()
	}
	if isPlaywrightReport(raw) {
		return Available(fromPlaywright(raw))
	}

	s := FunctionalStats{
		TotalTests: countOf(raw, "numTotalTests", "totalTests", "total"),
		Passed:     countOf(raw, "numPassedTests", "passedTests", "passed"),
		Failed:     countOf(raw, "numFailedTests", "failedTests", "failed"),
		Suites:     suitesOf(raw),
	}

	if _, ok := lookup(raw, "numTotalTestSuites", "totalSuites", "suiteCount"); ok {
		s.SuiteCount = countOf(raw, "numTotalTestSuites", "totalSuites", "suiteCount")
	} else {
		s.SuiteCount = len(s.Suites)
	}

	s.PassRatePct = passRate(s.Passed, s.TotalTests)

	if _, ok := lookup(raw, "avgDuration", "averageDuration"); ok {
		s.AvgDurationMs = round2(numberOf(raw, "avgDuration", "averageDuration"))
	} else {
		s.AvgDurationMs = meanSuiteDuration(s.Suites)
	}
	return Available(s)
}

// passRate follows the CI convention that an empty run has no failures.
func passRate(passed, total int) float64 {
	return percent(float64(passed), float64(total), 100)
}

func suitesOf(raw map[string]any) []SuiteStats {
	v, _ := lookup(raw, "suites", "testResults", "testSuites")
	items, _ := asSlice(v)

	suites := make([]SuiteStats, 0, len(items))
	for i, item := range items {
		m, _ := asMap(item)
		suites = append(suites, suiteFrom(m, i))
	}
	return suites
}

func suiteFrom(m map[string]any, index int) SuiteStats {
	s := SuiteStats{
		Name:   stringOf(m, "name", "title", "file", "testFilePath"),
		Status: strings.ToLower(stringOf(m, "status")),
		Passed: countOf(m, "numPassingTests", "passed", "passedTests"),
		Failed: countOf(m, "numFailingTests", "failed", "failedTests"),
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("suite %d", index+1)
	}
	if s.Status == "" {
		s.Status = SuitePassed
	}
	if _, ok := lookup(m, "total", "numTotalTests", "totalTests"); ok {
		s.Total = countOf(m, "total", "numTotalTests", "totalTests")
	} else {
		s.Total = s.Passed + s.Failed
	}
	s.DurationMs = round2(suiteDuration(m))
	return s
}

func suiteDuration(m map[string]any) float64 {
	if _, ok := lookup(m, "durationMs", "duration"); ok {
		return numberOf(m, "durationMs", "duration")
	}
	if perf, ok := asMap(m["perfStats"]); ok {
		if _, ok := lookup(perf, "runtime"); ok {
			return numberOf(perf, "runtime")
		}
		if d := numberOf(perf, "end") - numberOf(perf, "start"); d > 0 {
			return d
		}
	}
	if d := numberOf(m, "endTime") - numberOf(m, "startTime"); d > 0 {
		return d
	}
	return 0
}

func meanSuiteDuration(suites []SuiteStats) float64 {
	if len(suites) == 0 {
		return 0
	}
	var sum float64
	for _, s := range suites {
		sum += s.DurationMs
	}
	return round2(sum / float64(len(suites)))
}

// Playwright JSON reporter output: top-level "stats" with expected/unexpected
// counters and nested suites → specs → tests → results.

func isPlaywrightReport(raw map[string]any) bool {
	st, ok := asMap(raw["stats"])
	if !ok {
		return false
	}
	_, hasExpected := st["expected"]
	_, hasUnexpected := st["unexpected"]
	return hasExpected || hasUnexpected
}

func fromPlaywright(raw map[string]any) FunctionalStats {
	st, _ := asMap(raw["stats"])
	passed := countOf(st, "expected") + countOf(st, "flaky")
	failed := countOf(st, "unexpected")

	items, _ := asSlice(raw["suites"])
	suites := make([]SuiteStats, 0, len(items))
	for i, item := range items {
		m, _ := asMap(item)
		s := SuiteStats{
			Name:   stringOf(m, "title", "file"),
			Status: SuitePassed,
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("suite %d", i+1)
		}
		tallyPlaywrightSuite(m, &s)
		s.Total = s.Passed + s.Failed
		if s.Failed > 0 {
			s.Status = SuiteFailed
		}
		s.DurationMs = round2(s.DurationMs)
		suites = append(suites, s)
	}

	total := passed + failed + countOf(st, "skipped")
	return FunctionalStats{
		SuiteCount:    len(suites),
		TotalTests:    total,
		Passed:        passed,
		Failed:        failed,
		PassRatePct:   passRate(passed, total),
		AvgDurationMs: meanSuiteDuration(suites),
		Suites:        suites,
	}
}

func tallyPlaywrightSuite(suite map[string]any, into *SuiteStats) {
	specs, _ := asSlice(suite["specs"])
	for _, sp := range specs {
		spec, _ := asMap(sp)
		tests, _ := asSlice(spec["tests"])
		for _, t := range tests {
			test, _ := asMap(t)
			switch stringOf(test, "status") {
			case "expected", "flaky":
				into.Passed++
			case "unexpected":
				into.Failed++
			}
			results, _ := asSlice(test["results"])
			for _, r := range results {
				res, _ := asMap(r)
				into.DurationMs += numberOf(res, "duration")
			}
		}
	}
	children, _ := asSlice(suite["suites"])
	for _, c := range children {
		child, _ := asMap(c)
		tallyPlaywrightSuite(child, into)
	}
}
