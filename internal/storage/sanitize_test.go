package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "report.pdf", want: "report.pdf"},
		{name: "spaces", input: "my screenshot 1.png", want: "my_screenshot_1.png"},
		{name: "directory components dropped", input: "../../etc/passwd", want: "passwd"},
		{name: "windows path", input: `C:\Users\ana\bug.txt`, want: "bug.txt"},
		{name: "hidden file", input: ".env", want: "env"},
		{name: "zero width stripped", input: "in\u200Bvoice.pdf", want: "invoice.pdf"},
		{name: "reserved name", input: "CON.txt", want: "_CON.txt"},
		{name: "unicode letters kept", input: "café.png", want: "café.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeFilenameRejects(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "...", "a\x00b", "???"} {
		_, err := SanitizeFilename(input)
		require.Error(t, err, "%q", input)
	}
}

func TestSanitizeFilenameTruncatesKeepingExtension(t *testing.T) {
	t.Parallel()

	got, err := SanitizeFilename(strings.Repeat("a", 300) + ".pdf")
	require.NoError(t, err)
	require.Len(t, []rune(got), maxStoredNameRunes)
	require.True(t, strings.HasSuffix(got, ".pdf"))
}
