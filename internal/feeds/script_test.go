package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataScript(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    Payload
		wantErr bool
	}{
		{
			name: "window assignment",
			src:  "window.testResults = {\"numTotalTests\": 989, \"numPassedTests\": 989};\n",
			want: Payload{"numTotalTests": 989.0, "numPassedTests": 989.0},
		},
		{
			name: "const assignment with trailing code",
			src:  "// generated\nconst testResults={\"numTotalTests\":2};\nconsole.log('loaded');",
			want: Payload{"numTotalTests": 2.0},
		},
		{
			name: "bare json",
			src:  "  {\"numTotalTests\": 1}",
			want: Payload{"numTotalTests": 1.0},
		},
		{
			name:    "other global",
			src:     "window.somethingElse = 3;",
			wantErr: true,
		},
		{
			name:    "not an object literal",
			src:     "window.testResults = loadResults();",
			wantErr: true,
		},
		{
			name:    "invalid literal",
			src:     "window.testResults = {numTotalTests: 3};",
			wantErr: true,
		},
		{
			name:    "empty",
			src:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDataScript([]byte(tt.src), "testResults")
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptStrategy_FileUnderRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "results.js"),
		[]byte(`window.testResults = {"numTotalTests": 5, "numPassedTests": 4, "numFailedTests": 1};`), 0o644))

	s := NewScriptStrategy("data/results.js", root, "testResults", time.Second)
	require.NotNil(t, s.assign)
	pattern := s.assign
	p, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, p["numTotalTests"])

	_, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Same(t, pattern, s.assign)

	bare := NewScriptStrategy("data/results.js", root, "", time.Second)
	assert.Nil(t, bare.assign)

	missing := NewScriptStrategy("data/absent.js", root, "testResults", time.Second)
	_, err = missing.Fetch(context.Background())
	assert.ErrorContains(t, err, "failed to read data script")
}

func TestScriptStrategy_URL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(`self.testResults = {"numTotalTests": 7};`))
	}))
	defer ts.Close()

	s := NewScriptStrategy(ts.URL+"/results.js", "", "testResults", time.Second)
	p, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7.0, p["numTotalTests"])
}
