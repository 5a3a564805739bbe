package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ScriptStrategy loads the functional feed from a generated data script:
// a small JavaScript file whose only job is to assign the run summary to a
// global, e.g.
//
//	window.testResults = {"numTotalTests": 989, ...};
//
// The script is read from a path under the web root or from an http(s) URL.
type ScriptStrategy struct {
	source     string
	root       string
	global     string
	assign     *regexp.Regexp
	httpClient *http.Client
}

func NewScriptStrategy(source, root, global string, timeout time.Duration) *ScriptStrategy {
	return &ScriptStrategy{
		source: source,
		root:   root,
		global: global,
		assign: assignmentPattern(global),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *ScriptStrategy) Fetch(ctx context.Context) (Payload, error) {
	src, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	p, err := parseDataScript(src, s.assign)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.source, err)
	}
	return p, nil
}

func (s *ScriptStrategy) read(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.source, "http://") || strings.HasPrefix(s.source, "https://") {
		return get(ctx, s.httpClient, s.source, "")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.source
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data script: %w", err)
	}
	return src, nil
}

var errNoAssignment = errors.New("no assignment to the results global")

// ParseDataScript extracts the object literal assigned to global. The literal
// must be valid JSON, which is what report generators emit. A bare JSON
// document is accepted as well.
func ParseDataScript(src []byte, global string) (Payload, error) {
	return parseDataScript(src, assignmentPattern(global))
}

func parseDataScript(src []byte, assign *regexp.Regexp) (Payload, error) {
	start := assignmentStart(src, assign)
	if start < 0 {
		trimmed := bytes.TrimSpace(src)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errNoAssignment
		}
		start = bytes.IndexByte(src, '{')
	}

	var p Payload
	// Decode stops after the first value, so a trailing ";" or more
	// statements do not matter.
	if err := json.NewDecoder(bytes.NewReader(src[start:])).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse assigned object: %w", err)
	}
	if p == nil {
		return nil, errEmptyDocument
	}
	return p, nil
}

// assignmentPattern matches "window.<global> =" and its var/let/const forms.
// An empty global yields nil, which only accepts bare JSON.
func assignmentPattern(global string) *regexp.Regexp {
	if global == "" {
		return nil
	}
	return regexp.MustCompile(`(?:\b(?:window|globalThis|self)\.|\b(?:var|let|const)\s+)` + regexp.QuoteMeta(global) + `\s*=\s*`)
}

func assignmentStart(src []byte, assign *regexp.Regexp) int {
	if assign == nil {
		return -1
	}
	loc := assign.FindIndex(src)
	if loc == nil {
		return -1
	}
	rest := src[loc[1]:]
	if len(rest) == 0 || rest[0] != '{' {
		return -1
	}
	return loc[1]
}
