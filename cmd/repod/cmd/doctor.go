package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/repod-io/repod/internal/config"
)

var (
	doctorJSON   bool
	doctorStrict bool
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string       `json:"id"`
	Status      doctorStatus `json:"status"`
	Message     string       `json:"message"`
	Remediation string       `json:"remediation,omitempty"`
}

type doctorSummary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

type doctorReport struct {
	Version     string        `json:"version"`
	GeneratedAt string        `json:"generated_at"`
	Overall     doctorStatus  `json:"overall_status"`
	Summary     doctorSummary `json:"summary"`
	Checks      []doctorCheck `json:"checks"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local diagnostics with remediation hints",
	Long: `Run read-only diagnostics against the local repod setup and print
actionable hints.

By default the output is human-readable text.
Use --json for machine-readable output.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output machine-readable JSON")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "return non-zero on warnings")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := collectDoctorReport()

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printDoctorText(report)
	}

	if report.Summary.Fail > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	if doctorStrict && report.Summary.Warn > 0 {
		return fmt.Errorf("doctor strict mode failed with %d warning(s)", report.Summary.Warn)
	}
	return nil
}

func collectDoctorReport() doctorReport {
	checks := make([]doctorCheck, 0, 8)

	cfg, cfgCheck := checkConfigLoad()
	checks = append(checks, cfgCheck)
	checks = append(checks, checkConfigDirectory())

	if cfg != nil {
		checks = append(checks, checkGitBinary(cfg.Git.Command))
		checks = append(checks, checkRegistry(config.DefaultReposPath()))
		if cfg.Journal.Enabled {
			checks = append(checks, checkJournalPath(cfg.Journal.Path))
		}
		checks = append(checks, checkDaemonReachable(cfg.Server.Host, cfg.Server.Port))
	}

	summary := summarizeDoctorChecks(checks)
	return doctorReport{
		Version:     version,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Overall:     overallStatus(summary),
		Summary:     summary,
		Checks:      checks,
	}
}

func checkConfigLoad() (*config.Config, doctorCheck) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, doctorCheck{
			ID:          "config.load",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Config failed to load: %v", err),
			Remediation: "Fix or remove the config file, or run `repod config init --force`.",
		}
	}
	return cfg, doctorCheck{
		ID:      "config.load",
		Status:  doctorStatusOK,
		Message: "Configuration loads and validates",
	}
}

func checkConfigDirectory() doctorCheck {
	dir, err := config.GetConfigDir()
	if err != nil {
		return doctorCheck{
			ID:      "config.dir",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Cannot resolve config directory: %v", err),
		}
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return doctorCheck{
			ID:          "config.dir",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Config directory does not exist: %s", dir),
			Remediation: "It is created on first `repod start` or `repod config init`.",
		}
	}
	return doctorCheck{
		ID:      "config.dir",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Config directory exists: %s", dir),
	}
}

func checkGitBinary(command string) doctorCheck {
	path, err := exec.LookPath(command)
	if err != nil {
		return doctorCheck{
			ID:          "git.binary",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("git command %q not found on PATH", command),
			Remediation: "Install git or set git.command in the config.",
		}
	}
	return doctorCheck{
		ID:      "git.binary",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("git found at %s", path),
	}
}

func checkRegistry(path string) doctorCheck {
	registry, err := config.LoadRepos(path)
	if err != nil {
		return doctorCheck{
			ID:          "repos.registry",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Registry failed to load: %v", err),
			Remediation: fmt.Sprintf("Fix or remove %s.", path),
		}
	}

	missing := 0
	for _, def := range registry.Repos {
		if _, err := os.Stat(def.Path); err != nil {
			missing++
		}
	}
	if missing > 0 {
		return doctorCheck{
			ID:          "repos.registry",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("%d of %d registered paths are missing", missing, len(registry.Repos)),
			Remediation: "Remove stale entries with `repod repos remove <id>`.",
		}
	}
	return doctorCheck{
		ID:      "repos.registry",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Registry valid with %d repositories", len(registry.Repos)),
	}
}

func checkJournalPath(path string) doctorCheck {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return doctorCheck{
			ID:          "journal.path",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Journal directory does not exist: %s", dir),
			Remediation: "It is created on first `repod start`.",
		}
	}
	return doctorCheck{
		ID:      "journal.path",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Journal path writable: %s", path),
	}
}

func checkDaemonReachable(host string, port int) doctorCheck {
	url := fmt.Sprintf("http://%s:%d/health", host, port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return doctorCheck{
			ID:          "daemon.health",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Daemon not reachable at %s", url),
			Remediation: "Start it with `repod start` if you expect it to be running.",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doctorCheck{
			ID:      "daemon.health",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("Daemon responded with status %d", resp.StatusCode),
		}
	}
	return doctorCheck{
		ID:      "daemon.health",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Daemon healthy at %s", url),
	}
}

func summarizeDoctorChecks(checks []doctorCheck) doctorSummary {
	summary := doctorSummary{Total: len(checks)}
	for _, c := range checks {
		switch c.Status {
		case doctorStatusOK:
			summary.OK++
		case doctorStatusWarn:
			summary.Warn++
		case doctorStatusFail:
			summary.Fail++
		}
	}
	return summary
}

func overallStatus(summary doctorSummary) doctorStatus {
	switch {
	case summary.Fail > 0:
		return doctorStatusFail
	case summary.Warn > 0:
		return doctorStatusWarn
	default:
		return doctorStatusOK
	}
}

func printDoctorText(report doctorReport) {
	fmt.Printf("repod doctor (%s)\n\n", report.Version)

	for _, c := range report.Checks {
		marker := "  OK "
		switch c.Status {
		case doctorStatusWarn:
			marker = " WARN"
		case doctorStatusFail:
			marker = " FAIL"
		}
		fmt.Printf("[%s] %-16s %s\n", marker, c.ID, c.Message)
		if c.Remediation != "" && c.Status != doctorStatusOK {
			fmt.Printf("        hint: %s\n", c.Remediation)
		}
	}

	fmt.Printf("\n%d checks: %d ok, %d warnings, %d failures\n",
		report.Summary.Total, report.Summary.OK, report.Summary.Warn, report.Summary.Fail)
}
