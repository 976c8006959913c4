package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mnemo-dev/mnemo/lifecycle"
)

// ScannedFile is one file on disk that passed the glob filters.
type ScannedFile struct {
	RelativePath string
	ContentHash  string
}

// Scanner walks a root and returns the files that match the include
// globs and none of the exclude globs. Exclusion always wins.
type Scanner struct {
	root    string
	include *gitignore.GitIgnore
	exclude *gitignore.GitIgnore
}

func NewScanner(root string, include, exclude []string) *Scanner {
	return &Scanner{
		root:    root,
		include: gitignore.CompileIgnoreLines(include...),
		exclude: gitignore.CompileIgnoreLines(exclude...),
	}
}

// Matches reports whether a relative path would be indexed.
func (s *Scanner) Matches(relativePath string) bool {
	rel := filepath.ToSlash(relativePath)
	if s.exclude.MatchesPath(rel) {
		return false
	}
	return s.include.MatchesPath(rel)
}

// MatchesAbs is Matches for an absolute path under the scanner's root.
func (s *Scanner) MatchesAbs(absPath string) bool {
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return s.Matches(rel)
}

// Scan walks the tree and hashes every matching file. Unreadable files
// are skipped rather than failing the whole scan.
func (s *Scanner) Scan() ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && s.exclude.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.Matches(rel) {
			return nil
		}

		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}

		files = append(files, ScannedFile{
			RelativePath: rel,
			ContentHash:  lifecycle.ContentHash(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	return files, nil
}
