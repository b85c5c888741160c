package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-upload-stream/internal/model"
	"go-upload-stream/pkg/apierror"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
}

func TestResolverResolvePattern(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	resolver, err := NewResolver(root)
	require.NoError(t, err)

	t.Run("relative path resolves inside root", func(t *testing.T) {
		resolved, resolveErr := resolver.ResolvePattern("videos/clip.mp4")
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(resolver.RootAbs(), "videos", "clip.mp4"), resolved)
	})

	t.Run("absolute path inside root is kept", func(t *testing.T) {
		abs := filepath.Join(resolver.RootAbs(), "a.txt")
		resolved, resolveErr := resolver.ResolvePattern(abs)
		require.NoError(t, resolveErr)
		require.Equal(t, abs, resolved)
	})

	t.Run("backslashes are normalized", func(t *testing.T) {
		resolved, resolveErr := resolver.ResolvePattern(`videos\clip.mp4`)
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(resolver.RootAbs(), "videos", "clip.mp4"), resolved)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, resolveErr := resolver.ResolvePattern("videos/../../etc/passwd")
		var apiErr *apierror.APIError
		require.ErrorAs(t, resolveErr, &apiErr)
		require.Equal(t, "PATH_TRAVERSAL", apiErr.Code)
	})

	t.Run("absolute path outside root is rejected", func(t *testing.T) {
		_, resolveErr := resolver.ResolvePattern(filepath.Join(os.TempDir(), "elsewhere", "x"))
		require.Error(t, resolveErr)
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, resolveErr := resolver.ResolvePattern("videos\nclip.mp4")
		require.Error(t, resolveErr)
	})

	t.Run("malformed pattern is rejected", func(t *testing.T) {
		_, resolveErr := resolver.ResolvePattern("videos/[abc")
		var apiErr *apierror.APIError
		require.ErrorAs(t, resolveErr, &apiErr)
		require.Equal(t, "INVALID_PATTERN", apiErr.Code)
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		_, resolveErr := resolver.ResolvePattern("  ")
		require.Error(t, resolveErr)
	})
}

func TestResolverExpand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "logs/a.log", "logs/b.log", "logs/nested/c.log", "notes.txt")
	resolver, err := NewResolver(root)
	require.NoError(t, err)

	t.Run("single star stays in one directory", func(t *testing.T) {
		files, expandErr := resolver.Expand([]string{"logs/*.log"})
		require.NoError(t, expandErr)
		require.Equal(t, []string{
			filepath.Join(root, "logs", "a.log"),
			filepath.Join(root, "logs", "b.log"),
		}, files)
	})

	t.Run("double star recurses", func(t *testing.T) {
		files, expandErr := resolver.Expand([]string{"logs/**/*.log"})
		require.NoError(t, expandErr)
		require.Len(t, files, 3)
	})

	t.Run("literal paths and duplicates", func(t *testing.T) {
		files, expandErr := resolver.Expand([]string{"notes.txt", "notes.txt", "logs/a.log"})
		require.NoError(t, expandErr)
		require.Equal(t, []string{
			filepath.Join(root, "logs", "a.log"),
			filepath.Join(root, "notes.txt"),
		}, files)
	})

	t.Run("directories are not matched", func(t *testing.T) {
		_, expandErr := resolver.Expand([]string{"logs"})
		require.True(t, errors.Is(expandErr, model.ErrNoFiles))
	})

	t.Run("no match", func(t *testing.T) {
		_, expandErr := resolver.Expand([]string{"*.bin"})
		require.ErrorIs(t, expandErr, model.ErrNoFiles)
	})
}

func TestResolverExpand_SkipsLinksOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, "secret.txt")
	root := t.TempDir()
	writeTree(t, root, "inside.txt")

	links := map[string]string{
		filepath.Join(outside, "secret.txt"): filepath.Join(root, "leak.txt"),
		filepath.Join(root, "inside.txt"):    filepath.Join(root, "alias.txt"),
		outside:                              filepath.Join(root, "ext"),
	}
	for target, link := range links {
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	resolver, err := NewResolver(root)
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "alias.txt"),
		filepath.Join(root, "inside.txt"),
	}

	files, err := resolver.Expand([]string{"*.txt"})
	require.NoError(t, err)
	require.Equal(t, want, files)

	files, err = resolver.Expand([]string{"**/*.txt"})
	require.NoError(t, err)
	require.Equal(t, want, files)

	_, err = resolver.Expand([]string{"leak.txt"})
	require.ErrorIs(t, err, model.ErrNoFiles)

	_, err = resolver.Expand([]string{"ext/secret.txt"})
	require.ErrorIs(t, err, model.ErrNoFiles)
}

func TestNewResolver_RejectsBadRoot(t *testing.T) {
	_, err := NewResolver("  ")
	require.Error(t, err)

	_, err = NewResolver(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewResolver(file)
	require.ErrorContains(t, err, "not a directory")
}
