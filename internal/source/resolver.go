// Package source turns client supplied paths and glob patterns into regular
// files under a configured root directory.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"go-upload-stream/internal/model"
	"go-upload-stream/pkg/apierror"
)

type Resolver struct {
	rootAbs  string
	rootReal string
}

func NewResolver(root string) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("source root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	info, err := os.Stat(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", rootAbs)
	}

	rootReal, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("resolve source root links: %w", err)
	}

	return &Resolver{rootAbs: rootAbs, rootReal: rootReal}, nil
}

func (r *Resolver) RootAbs() string {
	return r.rootAbs
}

// ResolvePattern validates one path or pattern and returns it as an absolute
// pattern inside the root. Relative input is taken relative to the root.
func (r *Resolver) ResolvePattern(clientPath string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(clientPath), `\`, "/")
	if normalized == "" {
		return "", apierror.New("INVALID_PATH", "path cannot be empty", "", http.StatusBadRequest)
	}

	if strings.Contains(normalized, "\x00") || hasControlCharacters(normalized) {
		return "", apierror.New("INVALID_PATH", "path contains invalid characters", clientPath, http.StatusBadRequest)
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", apierror.New("PATH_TRAVERSAL", "path traversal attempt detected", clientPath, http.StatusForbidden)
		}
	}

	if !doublestar.ValidatePattern(normalized) {
		return "", apierror.New("INVALID_PATTERN", "malformed glob pattern", clientPath, http.StatusBadRequest)
	}

	resolved := filepath.FromSlash(normalized)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(r.rootAbs, resolved)
	}
	resolved = filepath.Clean(resolved)

	if !isWithinRoot(r.rootAbs, resolved) {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside source root", clientPath, http.StatusForbidden)
	}

	return resolved, nil
}

// Expand resolves every pattern and returns the matching regular files,
// deduplicated and sorted. Matches that resolve through a symlink to a file
// outside the root are skipped. Patterns that match nothing are an error
// wrapping model.ErrNoFiles.
func (r *Resolver) Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	for _, p := range patterns {
		resolved, err := r.ResolvePattern(p)
		if err != nil {
			return nil, err
		}

		matches, err := glob(resolved)
		if err != nil {
			return nil, err
		}
		matches, err = r.confine(matches)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", model.ErrNoFiles, p)
		}

		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	sort.Strings(out)
	return out, nil
}

// confine drops matches whose real path is outside the root.
func (r *Resolver) confine(matches []string) ([]string, error) {
	out := matches[:0]
	for _, m := range matches {
		target, err := filepath.EvalSymlinks(m)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("resolve %s: %w", m, err)
		}
		if !isWithinRoot(r.rootReal, target) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func glob(absPattern string) ([]string, error) {
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(absPattern))

	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("glob %s: %w", absPattern, err)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)))
	}
	return out, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return true
	}

	rootWithSeparator := strings.TrimSuffix(rootAbs, string(filepath.Separator)) + string(filepath.Separator)
	return strings.HasPrefix(candidateAbs, rootWithSeparator)
}
