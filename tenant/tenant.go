// Package tenant defines the isolation scope every store read and write
// is qualified by: a (project, branch, path-hash) triple.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// PathHashLength is the number of hex characters kept from the SHA-256
// digest of the normalized repository root path.
const PathHashLength = 16

// Context identifies the single active project/branch a process session
// operates on. It is immutable once created; pass it by value.
type Context struct {
	ProjectName string
	BranchName  string
	PathHash    string
}

// New builds a tenant context for the given project root. The root is
// normalized (separators to slash, trailing separators trimmed) before
// hashing so the same directory always produces the same hash regardless
// of how the path was spelled.
func New(projectName, branchName, rootPath string) (Context, error) {
	if projectName == "" {
		return Context{}, fmt.Errorf("project name must not be empty")
	}
	if branchName == "" {
		return Context{}, fmt.Errorf("branch name must not be empty")
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve root path: %w", err)
	}

	return Context{
		ProjectName: projectName,
		BranchName:  branchName,
		PathHash:    HashPath(abs),
	}, nil
}

// HashPath returns the first PathHashLength hex characters of the SHA-256
// digest of the normalized path.
func HashPath(path string) string {
	normalized := normalizePath(path)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:PathHashLength]
}

// normalizePath converts separators to forward slashes and trims trailing
// separators. "/" itself is left intact.
func normalizePath(path string) string {
	p := filepath.ToSlash(path)
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Key returns a stable string form of the triple, usable as a map key or
// log field.
func (c Context) Key() string {
	return c.ProjectName + "/" + c.BranchName + "/" + c.PathHash
}

func (c Context) String() string {
	return c.Key()
}
