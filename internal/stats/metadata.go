package stats

import (
	"time"

	"github.com/spf13/cast"
)

// Metadata identifies the run a dashboard refresh is showing.
type Metadata struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	CommitID  string     `json:"commitId,omitempty"`
}

var (
	timestampKeys = []string{"timestamp", "startTime", "generatedAt"}
	commitKeys    = []string{"commit", "commitId", "gitCommit", "sha"}
)

// ExtractMetadata returns the first timestamp and commit found across the
// given payloads, in order. Each payload is searched at the top level, then
// under "metadata", then under "stats".
func ExtractMetadata(raws ...map[string]any) Metadata {
	var md Metadata
	for _, raw := range raws {
		for _, m := range metadataScopes(raw) {
			if md.Timestamp == nil {
				md.Timestamp = timestampOf(m)
			}
			if md.CommitID == "" {
				md.CommitID = stringOf(m, commitKeys...)
			}
		}
	}
	return md
}

func metadataScopes(raw map[string]any) []map[string]any {
	if raw == nil {
		return nil
	}
	scopes := []map[string]any{raw}
	if m, ok := asMap(raw["metadata"]); ok {
		scopes = append(scopes, m)
	}
	if m, ok := asMap(raw["stats"]); ok {
		scopes = append(scopes, m)
	}
	return scopes
}

func timestampOf(m map[string]any) *time.Time {
	for _, k := range timestampKeys {
		if t := parseTimestamp(m[k]); t != nil {
			return t
		}
	}
	return nil
}

func parseTimestamp(v any) *time.Time {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	n, err := cast.ToFloat64E(v)
	if err != nil || n <= 0 {
		return nil
	}
	var t time.Time
	// Values this large are epoch milliseconds (Jest's startTime); smaller
	// ones are seconds.
	if n > 1e11 {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		t = time.Unix(int64(n), 0).UTC()
	}
	return &t
}
