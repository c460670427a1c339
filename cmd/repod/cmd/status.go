package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusJSON    bool
	statusTimeout int
)

// statusCmd queries a running daemon over HTTP.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and repository status",
	Long: `Query the running repod daemon and print its status along with the
state of every registered repository.

Examples:
  repod status
  repod status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output machine-readable JSON")
	statusCmd.Flags().IntVar(&statusTimeout, "timeout", 3, "request timeout in seconds")
}

type daemonStatus struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Repos         struct {
		Total     int `json:"total"`
		Healthy   int `json:"healthy"`
		Unhealthy int `json:"unhealthy"`
		NotGit    int `json:"not_git"`
	} `json:"repos"`
}

type repoStatusLine struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Root      string `json:"root"`
	State     string `json:"state"`
	Branch    string `json:"branch"`
	RepoState string `json:"repo_state"`
	LastError string `json:"last_error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	base := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	client := &http.Client{Timeout: time.Duration(statusTimeout) * time.Second}

	statusBody, err := fetchJSON(client, base+"/api/status")
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w\nStart it with: repod start", base, err)
	}
	reposBody, err := fetchJSON(client, base+"/api/repos")
	if err != nil {
		return fmt.Errorf("failed to list repos: %w", err)
	}

	if statusJSON {
		combined := map[string]json.RawMessage{
			"status": statusBody,
			"repos":  reposBody,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(combined)
	}

	var ds daemonStatus
	if err := json.Unmarshal(statusBody, &ds); err != nil {
		return fmt.Errorf("unexpected status response: %w", err)
	}
	var repos struct {
		Repos []repoStatusLine `json:"repos"`
	}
	if err := json.Unmarshal(reposBody, &repos); err != nil {
		return fmt.Errorf("unexpected repos response: %w", err)
	}

	uptime := time.Duration(ds.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("repod is running at %s (uptime %s)\n", base, uptime)
	fmt.Printf("Repositories: %d registered, %d healthy\n\n", ds.Repos.Total, ds.Repos.Healthy)

	if len(repos.Repos) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tBRANCH\tPATH")
	for _, r := range repos.Repos {
		branch := r.Branch
		if branch == "" {
			branch = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.State, branch, r.Root)
	}
	return w.Flush()
}

func fetchJSON(client *http.Client, url string) (json.RawMessage, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
