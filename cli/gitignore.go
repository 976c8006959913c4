package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// addToGitignore appends pattern to the project's .gitignore unless an
// equivalent entry is already present.
func addToGitignore(projectRoot, pattern string) error {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	if exists, err := gitignoreHasPattern(gitignorePath, pattern); err != nil {
		return err
	} else if exists {
		return nil
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		content, err := os.ReadFile(gitignorePath)
		if err != nil {
			return err
		}
		if len(content) > 0 && content[len(content)-1] != '\n' {
			if _, err := f.WriteString("\n"); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteString(pattern + "\n")
	return err
}

func gitignoreHasPattern(gitignorePath, pattern string) (bool, error) {
	f, err := os.Open(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	trimmed := strings.TrimSuffix(pattern, "/")
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == pattern || line == trimmed {
			return true, nil
		}
	}
	return false, scanner.Err()
}
