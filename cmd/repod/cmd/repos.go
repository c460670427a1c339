package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/repod-io/repod/internal/config"
)

var (
	reposFile    string
	repoAddName  string
	repoAddFetch bool
)

// reposCmd manages the repository registry.
var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage registered repositories",
	Long: `Manage the repository registry (~/.repod/repos.yaml).

These commands edit the registry file directly. A running daemon picks up
additions and removals made through its HTTP API immediately; changes made
here take effect on the next daemon start.

Examples:
  repod repos list
  repod repos add /path/to/project
  repod repos add /path/to/project --name myproject
  repod repos remove repo-a1b2c3d4`,
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE:  runReposList,
}

var reposAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposAdd,
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a repository from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposRemove,
}

func init() {
	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposAddCmd)
	reposCmd.AddCommand(reposRemoveCmd)

	reposCmd.PersistentFlags().StringVar(&reposFile, "repos", "", "registry file (default: ~/.repod/repos.yaml)")
	reposAddCmd.Flags().StringVar(&repoAddName, "name", "", "display name (default: directory name)")
	reposAddCmd.Flags().BoolVar(&repoAddFetch, "auto-fetch", false, "include in periodic background fetch")
}

func registryPath() string {
	if reposFile != "" {
		return reposFile
	}
	return config.DefaultReposPath()
}

func runReposList(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRepos(registryPath())
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(registry.Repos) == 0 {
		fmt.Println("No repositories registered.")
		fmt.Println("Add one with: repod repos add /path/to/project")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPATH\tAUTO-FETCH")
	for _, def := range registry.Repos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", def.ID, def.Name, def.Path, def.AutoFetch)
	}
	return w.Flush()
}

func runReposAdd(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s has no .git; the daemon will report it as not_git\n", path)
	}

	registry, err := config.LoadRepos(registryPath())
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	def, err := registry.Add(repoAddName, path)
	if err != nil {
		return err
	}
	def.AutoFetch = repoAddFetch
	if repoAddFetch {
		// Add returns a copy; flip the flag on the stored entry.
		if stored := registry.Find(def.ID); stored != nil {
			stored.AutoFetch = true
		}
	}

	if err := config.SaveRepos(registryPath(), registry); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	fmt.Printf("Registered %s (%s) at %s\n", def.Name, def.ID, def.Path)
	return nil
}

func runReposRemove(cmd *cobra.Command, args []string) error {
	id := args[0]

	registry, err := config.LoadRepos(registryPath())
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if !registry.Remove(id) {
		return fmt.Errorf("repository not registered: %s", id)
	}
	if err := config.SaveRepos(registryPath(), registry); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	fmt.Printf("Removed %s\n", id)
	return nil
}
