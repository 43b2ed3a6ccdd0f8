package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crmoraes/nga/internal/config"
	"github.com/crmoraes/nga/internal/convert"
	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/hooks"
	"github.com/crmoraes/nga/internal/orchestrator"
	"github.com/crmoraes/nga/internal/storage"
	"github.com/crmoraes/nga/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nga",
		Short:         "Agentforce export to NGA agent script converter",
		Long:          "nga converts Agentforce agent exports (JSON or YAML) into NGA agent scripts and keeps a history of conversions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
	rootCmd.PersistentFlags().String("rules", "", "Rules file (YAML or JSON), overrides NGA_RULES")

	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newBatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a command needs. close releases the history database.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	conv   *convert.Converter
	store  *storage.Storage
	orch   *orchestrator.Orchestrator
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.logger.Sync()
}

// newEnv loads config and the converter. withHistory also opens the
// database, the hooks file and the orchestrator.
func newEnv(cmd *cobra.Command, withHistory bool) (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path, _ := cmd.Flags().GetString("rules"); path != "" {
		cfg.RulesPath = path
	}

	logger, err := cfg.Logger()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	e := &env{cfg: cfg, logger: logger}

	r, err := cfg.Rules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if e.conv, err = convert.New(r, logger); err != nil {
		return nil, err
	}
	if !withHistory {
		return e, nil
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var h *hooks.Hooks
	if path := cfg.Hooks(); path != "" {
		if h, err = hooks.Load(path, logger); err != nil {
			return nil, err
		}
		logger.Debug("loaded hooks", zap.String("path", path))
	}

	if e.store, err = storage.New(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.orch = orchestrator.New(e.conv, e.store, h, cfg.OutputsDir(), logger)
	return e, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	p := tea.NewProgram(tui.NewApp(e.orch), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert one export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			withReport, _ := cmd.Flags().GetBool("report")
			if withReport && output == "" {
				return fmt.Errorf("--report needs --output")
			}

			e, err := newEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			out, err := e.orch.Convert(cmd.Context(), args[0], orchestrator.Options{Output: output, WithReport: withReport})
			if err != nil {
				return err
			}
			res := out.Result

			if output == "" {
				fmt.Print(res.Output)
			} else {
				fmt.Printf("Wrote %s (%d topics, %d actions)\n", output, res.TopicCount, res.ActionCount)
				if out.ReportPath != "" {
					fmt.Printf("Report: %s\n", out.ReportPath)
				}
			}
			if res.AlertMessage != "" {
				fmt.Fprintln(os.Stderr, res.AlertMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Bool("report", false, "Also write <output>.report.json")
	return cmd
}

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <input>",
		Short: "Print the conversion report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := convertFile(cmd, args[0])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res.Report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <input>",
		Short: "Print the converted agent model as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := convertFile(cmd, args[0])
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(res.Agent)
		},
	}
}

// convertFile converts without touching history.
func convertFile(cmd *cobra.Command, input string) (*convert.Result, error) {
	e, err := newEnv(cmd, false)
	if err != nil {
		return nil, err
	}
	defer e.close()

	return e.conv.ConvertFile(input)
}

func newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir|files...>",
		Short: "Convert many export files in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, _ := cmd.Flags().GetInt("jobs")

			inputs, err := export.Discover(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no .json, .yaml or .yml files found")
			}

			e, err := newEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.orch.Batch(cmd.Context(), inputs, jobs)
			if err != nil {
				return fmt.Errorf("batch failed: %w", err)
			}

			for _, out := range res.Files {
				c := out.Conversion
				if c.Failed() {
					fmt.Printf("✗ %s  %s\n", c.InputPath, c.Error)
				} else {
					fmt.Printf("✓ %s  -> %s (%d topics, %d actions)\n", c.InputPath, filepath.Base(c.OutputPath), c.TopicCount, c.ActionCount)
				}
			}
			fmt.Printf("\nBatch %s: %d converted, %d failed\n", res.ID, len(res.Files)-res.Failed, res.Failed)
			fmt.Printf("Output: %s\n", res.Path)

			if res.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", res.Failed, len(res.Files))
			}
			return nil
		},
	}

	cmd.Flags().IntP("jobs", "j", 4, "Number of files converted in parallel")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show and delete past conversions",
	}
	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := newEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			conversions, err := e.orch.ListConversions(limit)
			if err != nil {
				return err
			}

			if len(conversions) == 0 {
				fmt.Println("No conversions found.")
				return nil
			}

			for _, c := range conversions {
				detail := fmt.Sprintf("%d topics, %d actions", c.TopicCount, c.ActionCount)
				if c.Failed() {
					detail = c.ErrorCode
				}
				fmt.Printf("%s  %-9s %-10s %s  (%s)\n",
					c.ID[:8], c.Status, storage.FormatTimeAgo(c.CreatedAt),
					truncate(c.InputPath, 50), detail)
			}

			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of conversions to list")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversion and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			c, err := e.orch.GetConversion(args[0])
			if err != nil {
				return fmt.Errorf("failed to get conversion: %w", err)
			}

			fmt.Printf("Conversion %s\n", c.ID)
			fmt.Printf("Status: %s\n", c.Status)
			fmt.Printf("Input: %s\n", c.InputPath)
			if c.BatchID != "" {
				fmt.Printf("Batch: %s\n", c.BatchID)
			}
			if c.OutputPath != "" {
				fmt.Printf("Output: %s\n", c.OutputPath)
			}
			if c.Shape != "" {
				fmt.Printf("Shape: %s\n", c.Shape)
			}
			if c.Failed() {
				fmt.Printf("Error: [%s] %s\n", c.ErrorCode, c.Error)
				return nil
			}
			fmt.Printf("Topics: %d\n", c.TopicCount)
			fmt.Printf("Actions: %d\n", c.ActionCount)

			notes, err := e.orch.GetNotes(c.ID)
			if err != nil {
				return err
			}
			if len(notes) > 0 {
				fmt.Println("\nNotes:")
				for _, n := range notes {
					fmt.Printf("  - %s\n", n.Text)
				}
			}

			return nil
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversion from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			c, err := e.orch.GetConversion(args[0])
			if err != nil {
				return fmt.Errorf("failed to get conversion: %w", err)
			}
			if err := e.orch.DeleteConversion(c.ID); err != nil {
				return fmt.Errorf("failed to delete conversion: %w", err)
			}

			fmt.Printf("Deleted conversion %s\n", c.ID[:8])
			return nil
		},
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

// signalContext is canceled on interrupt so a batch stops starting new files.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
