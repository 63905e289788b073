package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateFilename(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		want   string
	}{
		{"stop words dropped", "Please write documentation for the racer API", "racer-api.md"},
		{"long slug cut at word boundary", "quantum entanglement superposition decoherence interference tunneling measurement collapse", "quantum-entanglement-superposition-decoherence.md"},
		{"punctuation stripped", "What's the deal with CSS grid?!", "deal-css-grid.md"},
		{"all stop words falls back", "do it for me please", "output.md"},
		{"short words dropped", "go vs js on eks", "eks.md"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, GenerateFilename(tc.prompt, ".md"))
		})
	}
}

func TestGenerateFilenameLengthCap(t *testing.T) {
	prompt := strings.Repeat("extraordinarily ", 10) + "verbose prompt"
	name := GenerateFilename(prompt, ".md")
	require.LessOrEqual(t, len(strings.TrimSuffix(name, ".md")), 50)
	require.False(t, strings.HasSuffix(strings.TrimSuffix(name, ".md"), "-"))
}

func TestSaveCreatesDirAndAvoidsOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	first, err := Save("content one", dir, "racer api design")
	require.NoError(t, err)
	require.FileExists(t, first)

	second, err := Save("content two", dir, "racer api design")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Contains(t, filepath.Base(second), "-1")

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, "content one", string(data))
}
