package lang

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"app.ts", "typescript", true},
		{"app.tsx", "typescript", true},
		{"app.js", "javascript", true},
		{"app.mjs", "javascript", true},
		{"script.py", "python", true},
		{"lib.rs", "rust", true},
		{"util.hpp", "cpp", true},
		{"App.java", "java", true},
		{"file.txt", "", false},
		{"Makefile", "", false},
		{"path/to/file.GO", "go", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := ForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAll_SortedAndUnique(t *testing.T) {
	t.Parallel()

	all := All()
	assert.IsIncreasing(t, all)
	assert.Contains(t, all, "go")
	assert.Contains(t, all, "typescript")
}

func TestDefaultIgnorePatterns_Compile(t *testing.T) {
	t.Parallel()

	for l, pats := range DefaultIgnorePatterns() {
		for _, p := range pats {
			_, err := regexp.Compile(p)
			require.NoError(t, err, "%s pattern %q", l, p)
		}
	}
}

func TestDefaultIgnorePatterns_NodeModules(t *testing.T) {
	t.Parallel()

	pats := DefaultIgnorePatterns()["typescript"]
	require.Len(t, pats, 1)
	re := regexp.MustCompile(pats[0])
	assert.True(t, re.MatchString("/repo/node_modules/lodash/index.d.ts"))
	assert.False(t, re.MatchString("/repo/src/utils.ts"))
}

func TestDefaultIgnorePatterns_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a := DefaultIgnorePatterns()
	a["go"][0] = "mutated"
	b := DefaultIgnorePatterns()
	assert.NotEqual(t, "mutated", b["go"][0])
}
