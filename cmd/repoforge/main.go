// Command repoforge runs agent-driven repository modifications: it analyzes a
// repository, plans tasks from a natural-language change request, executes
// them through a completion agent chunk by chunk, validates with the project's
// tests and reports the outcome.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/repoforge/repoforge/internal/agent"
	"github.com/repoforge/repoforge/internal/config"
	"github.com/repoforge/repoforge/internal/coordinator"
	"github.com/repoforge/repoforge/internal/events"
	"github.com/repoforge/repoforge/internal/gitrepo"
	"github.com/repoforge/repoforge/internal/notify"
	"github.com/repoforge/repoforge/internal/persistence"
	"github.com/repoforge/repoforge/internal/testrun"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repoforge",
		Short:         "Agent-driven repository modification pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(runCmd(), configCmd())
	return root
}

type runFlags struct {
	repo        string
	branch      string
	request     string
	email       string
	configPath  string
	tablesPath  string
	testCommand string
	keepClone   bool
	noPersist   bool
}

func runCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a change request against a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.repo, "repo", "", "repository URL to modify (required)")
	cmd.Flags().StringVar(&flags.branch, "branch", "", "base branch to clone (default: remote HEAD)")
	cmd.Flags().StringVar(&flags.request, "request", "", "natural-language change request (required)")
	cmd.Flags().StringVar(&flags.email, "email", "", "notification recipient address")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "project config file (overrides .repoforge/config.json)")
	cmd.Flags().StringVar(&flags.tablesPath, "tables", "", "categorization tables YAML (default: built-in)")
	cmd.Flags().StringVar(&flags.testCommand, "test-command", "", "validation command run after each task")
	cmd.Flags().BoolVar(&flags.keepClone, "keep-clone", false, "retain the working copy after the run")
	cmd.Flags().BoolVar(&flags.noPersist, "no-persist", false, "disable the run archive database")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func run(parent context.Context, flags runFlags) error {
	// Environment files are a convenience for API keys; absence is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.testCommand != "" {
		cfg.Execution.TestCommand = flags.testCommand
	}
	if flags.keepClone {
		cfg.Execution.KeepClone = true
	}

	tables, err := config.LoadTables(flags.tablesPath)
	if err != nil {
		return err
	}

	completion, err := agent.NewCompletion(cfg.Completion)
	if err != nil {
		return err
	}

	var recorder coordinator.Recorder
	if !flags.noPersist {
		store, err := persistence.NewStore(ctx, cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening run archive: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	bus := events.NewBus()
	defer bus.Close()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(bus.Subscribe(0))
	}()

	coord := coordinator.New(coordinator.Config{
		Orchestration:  cfg,
		Tables:         tables,
		Dispatcher:     agent.NewManager(completion, cfg.Retry, cfg.Breaker),
		VersionControl: gitrepo.NewClient(cfg.Storage.ReposDir),
		Validator:      testrun.NewRunner(cfg.Execution.TestCommand),
		Notifier:       buildNotifier(cfg.Notification, flags.email),
		Recorder:       recorder,
		Bus:            bus,
	})

	report, runErr := coord.Execute(ctx, coordinator.Request{
		RepoURL:     flags.repo,
		Branch:      flags.branch,
		Description: flags.request,
		Recipient:   flags.email,
	})
	bus.Close()
	wg.Wait()

	printReport(report)
	if runErr != nil {
		return runErr
	}
	if report.Status != coordinator.StatusSuccess {
		return fmt.Errorf("run finished with status %s", report.Status)
	}
	return nil
}

func loadConfig(projectPath string) (*config.OrchestratorConfig, error) {
	if projectPath != "" {
		return config.Load("", projectPath)
	}
	return config.LoadDefault()
}

func buildNotifier(cfg config.NotificationConfig, recipient string) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.SMTPHost != "" && recipient != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg, recipient))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(notifiers) == 0 {
		return notify.Noop{}
	}
	return notify.NewMulti(notifiers...)
}

// printEvents renders pipeline progress to stdout until the bus closes.
func printEvents(ch <-chan events.Event) {
	for e := range ch {
		switch ev := e.(type) {
		case events.RunStageEvent:
			fmt.Printf("==> %s\n", ev.Stage)
		case events.TaskStartedEvent:
			if ev.Attempt > 1 {
				fmt.Printf("  %s: retrying (attempt %d): %s\n", ev.TaskID, ev.Attempt, ev.Title)
			} else {
				fmt.Printf("  %s: %s\n", ev.TaskID, ev.Title)
			}
		case events.ChunkDoneEvent:
			fmt.Printf("  %s: chunk %d/%d %s\n", ev.TaskID, ev.Index+1, ev.Total, ev.Outcome)
		case events.TaskCompletedEvent:
			fmt.Printf("  %s: completed in %s\n", ev.TaskID, ev.Duration.Round(1e8))
		case events.TaskFailedEvent:
			fmt.Printf("  %s: FAILED: %s\n", ev.TaskID, ev.Reason)
		case events.TaskSkippedEvent:
			fmt.Printf("  %s: skipped (dependency %s failed)\n", ev.TaskID, ev.FailedDep)
		case events.RunFinishedEvent:
			fmt.Printf("==> finished: %s\n", ev.Status)
		}
	}
}

func printReport(report *coordinator.Report) {
	fmt.Printf("\nRun %s: %s\n", report.RunID, report.Status)
	if report.Abort != "" {
		fmt.Printf("Aborted: %s\n", report.Abort)
	}
	if report.FeatureBranch != "" {
		fmt.Printf("Feature branch: %s\n", report.FeatureBranch)
	}
	for _, t := range report.Tasks {
		fmt.Printf("  [%-11s] %s (%s, %d attempt(s)) %s\n",
			t.Status, t.TaskID, t.Category, t.Attempts, t.Title)
	}
	if n := len(report.Tasks); n > 0 {
		fmt.Printf("%d/%d tasks completed\n", report.Completed(), n)
	}
}

// configCmd prints or initializes configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".repoforge/config.json"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			log.Printf("wrote %s", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	return cmd
}
