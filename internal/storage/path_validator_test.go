package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathValidatorResolveName(t *testing.T) {
	t.Parallel()

	validator, err := NewPathValidator(t.TempDir())
	require.NoError(t, err)

	t.Run("flat name resolves inside root", func(t *testing.T) {
		resolved, resolveErr := validator.ResolveName("abc-report.pdf")
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "abc-report.pdf"), resolved)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveName("../secrets.txt")
		require.Error(t, resolveErr)
	})

	t.Run("nested paths are rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveName(`docs\report.pdf`)
		require.Error(t, resolveErr)
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveName("report\n.pdf")
		require.Error(t, resolveErr)
	})

	t.Run("dot names are rejected", func(t *testing.T) {
		for _, name := range []string{"", ".", ".."} {
			_, resolveErr := validator.ResolveName(name)
			require.Error(t, resolveErr, name)
		}
	})

	t.Run("prefix siblings are outside root", func(t *testing.T) {
		require.False(t, isWithinRoot("/tmp/uploads", "/tmp/uploads-other/file.txt"))
		require.False(t, isWithinRoot("/tmp/uploads", "/tmp/uploads"))
	})
}
