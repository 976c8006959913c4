package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/config"
	"github.com/mnemo-dev/mnemo/git"
)

var (
	initProvider string
	initBackend  string
	initDSN      string
	initName     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize mnemo in the current directory",
	Long: `Initialize mnemo by creating a .mnemo directory with configuration.

This command will:
- Create .mnemo/config.yaml with default settings
- Detect the project name from the directory and the branch from git`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initProvider, "provider", "p", "", "Embedding provider (openai or hash)")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend (gob or postgres)")
	initCmd.Flags().StringVar(&initDSN, "dsn", "", "PostgreSQL DSN (for the postgres backend)")
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default: directory name)")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Check if already initialized
	if config.Exists(cwd) {
		fmt.Println("mnemo is already initialized in this directory.")
		fmt.Printf("Configuration: %s\n", config.GetConfigPath(cwd))
		return nil
	}

	cfg := config.DefaultConfig()

	cfg.Project.Name = initName
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cwd)
	}

	if git.IsGitRepo(cwd) {
		cfg.Project.Branch = git.BranchOrDefault(cwd, cfg.Project.Branch)
	}

	if initProvider != "" {
		switch initProvider {
		case "openai":
			cfg.Embedder.Provider = "openai"
			cfg.Embedder.Model = "text-embedding-3-small"
			cfg.Embedder.Endpoint = "https://api.openai.com/v1"
		case "hash":
			cfg.Embedder.Provider = "hash"
		default:
			return fmt.Errorf("unknown provider %q (expected openai or hash)", initProvider)
		}
	}

	if initBackend != "" {
		switch initBackend {
		case "gob":
			cfg.Store.Backend = "gob"
		case "postgres":
			if initDSN == "" {
				return fmt.Errorf("the postgres backend requires --dsn")
			}
			cfg.Store.Backend = "postgres"
			cfg.Store.Postgres.DSN = initDSN
		default:
			return fmt.Errorf("unknown backend %q (expected gob or postgres)", initBackend)
		}
	}

	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Created configuration at %s\n", config.GetConfigPath(cwd))

	// Keep the state directory out of version control.
	if _, err := os.Stat(filepath.Join(cwd, ".gitignore")); err == nil {
		if err := addToGitignore(cwd, config.ConfigDir+"/"); err != nil {
			fmt.Printf("Warning: could not update .gitignore: %v\n", err)
		} else {
			fmt.Printf("Added %s/ to .gitignore\n", config.ConfigDir)
		}
	}

	fmt.Println("\nmnemo initialized successfully!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Index your documents: mnemo sync")
	fmt.Println("  2. Follow changes live:  mnemo watch")
	fmt.Println("  3. Search your notes:    mnemo search \"your query\"")

	if cfg.Embedder.Provider == "openai" {
		fmt.Println("\nMake sure OPENAI_API_KEY is set in your environment.")
	}

	return nil
}
