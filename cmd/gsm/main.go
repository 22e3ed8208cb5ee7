package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"gsm-go/internal/app"
	"gsm-go/internal/config"
	"gsm-go/internal/gsm"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newApp reads the config and creates a GSMApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "snapshot create").
func newApp(cmd *cobra.Command, operation string) (*app.GSMApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config (run 'gsm config init' first): %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewGSMApp(cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// failed prints every per-unit error of err on stderr and returns one
// summary error for cobra to report.
func failed(what string, err error) error {
	errs := gsm.UnitErrors(err)
	if len(errs) <= 1 {
		return fmt.Errorf("%s failed: %w", what, err)
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", e)
	}
	return fmt.Errorf("%s failed with %d error(s)", what, len(errs))
}

var rootCmd = &cobra.Command{
	Use:          "gsm",
	Short:        "Game save manager",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := defaults.Config()
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		a, err := newApp(cmd, "config init")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.InitStore(); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Global Config: %s\n", a.ConfigPath())
		fmt.Printf("Scratch Dir:   %s\n", cfg.ScratchDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		a, err := newApp(cmd, "config list")
		if err != nil {
			return err
		}
		defer a.Close()

		global, err := a.Config()
		if err != nil {
			return err
		}
		global.Settings.Cloud.Backend = global.Settings.Cloud.Backend.Sanitized()

		if asJSON {
			data, err := gsm.EncodeConfig(global)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		cloud := global.Settings.Cloud
		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Global Config:   %s\n", a.ConfigPath())
		fmt.Printf("Version:         %s\n", global.Version)
		fmt.Printf("Backup Path:     %s\n", global.BackupPath)
		fmt.Printf("Games:           %d\n", len(global.Games))
		fmt.Printf("Extra Backup:    %t\n", global.Settings.ExtraBackupWhenApply)
		fmt.Printf("Delete Before:   %t\n", global.Settings.DefaultDeleteBeforeApply)
		fmt.Printf("Cloud Backend:   %s\n", cloud.Backend.Type)
		fmt.Printf("Cloud Root:      %s\n", cloud.RootPath)
		fmt.Printf("Always Sync:     %t\n", cloud.AlwaysSync)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change restore policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		var extra, deleteBefore *bool
		if cmd.Flags().Changed("extra-backup") {
			v, _ := cmd.Flags().GetBool("extra-backup")
			extra = &v
		}
		if cmd.Flags().Changed("delete-before-apply") {
			v, _ := cmd.Flags().GetBool("delete-before-apply")
			deleteBefore = &v
		}
		if extra == nil && deleteBefore == nil {
			return fmt.Errorf("nothing to change: pass --extra-backup or --delete-before-apply")
		}

		a, err := newApp(cmd, "config set")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetApplyPolicy(cmd.Context(), extra, deleteBefore)
	},
}

// game command
var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage games",
}

var gameAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a game and its save files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")
		folders, _ := cmd.Flags().GetStringArray("folder")
		gamePath, _ := cmd.Flags().GetString("game-path")

		a, err := newApp(cmd, "game add")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddGame(cmd.Context(), args[0], files, folders, gamePath); err != nil {
			return fmt.Errorf("adding game: %w", err)
		}
		fmt.Printf("Registered %s with %d save unit(s)\n", args[0], len(files)+len(folders))
		return nil
	},
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered games",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "game list")
		if err != nil {
			return err
		}
		defer a.Close()

		games, err := a.Games()
		if err != nil {
			return err
		}
		if len(games) == 0 {
			fmt.Println("No games registered.")
			return nil
		}
		for _, g := range games {
			fmt.Println(g.Name)
			for _, u := range g.SavePaths {
				flag := ""
				if u.DeleteBeforeApply {
					flag = "  [delete before apply]"
				}
				fmt.Printf("  %-6s  %s%s\n", u.UnitType, u.Path, flag)
			}
		}
		return nil
	},
}

var gameRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Unregister a game and delete its backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "game remove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveGame(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("removing game: %w", err)
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage snapshots of a game",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create GAME",
	Short: "Archive the current save files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		describe, _ := cmd.Flags().GetString("describe")

		a, err := newApp(cmd, "snapshot create")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.CreateSnapshot(cmd.Context(), args[0], describe)
		if err != nil {
			return failed("snapshot", err)
		}
		fmt.Printf("Created snapshot %s\n", snap.Date)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list GAME",
	Short: "List snapshots, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd, "snapshot list")
		if err != nil {
			return err
		}
		defer a.Close()

		idx, infos, err := a.Snapshots(args[0])
		if err != nil {
			return err
		}
		if asJSON {
			data, err := gsm.EncodeIndex(idx)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if len(infos) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, s := range infos {
			size := humanize.Bytes(uint64(s.Size))
			if s.Missing {
				size = "missing"
			}
			fmt.Printf("%s  %9s  %s\n", s.Date, size, s.Describe)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore GAME [DATE]",
	Short: "Restore a snapshot (latest when DATE is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := ""
		if len(args) > 1 {
			date = args[1]
		}

		a, err := newApp(cmd, "snapshot restore")
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := a.RestoreSnapshot(cmd.Context(), args[0], date)
		if err != nil {
			return failed("restore", err)
		}
		fmt.Printf("Restored snapshot %s\n", restored)
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete GAME DATE",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "snapshot delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteSnapshot(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("deleting snapshot: %w", err)
		}
		fmt.Printf("Deleted snapshot %s\n", args[1])
		return nil
	},
}

var snapshotDescribeCmd = &cobra.Command{
	Use:   "describe GAME DATE TEXT",
	Short: "Replace the description of a snapshot",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "snapshot describe")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.DescribeSnapshot(cmd.Context(), args[0], args[1], args[2])
	},
}

// bulk commands
var backupAllCmd = &cobra.Command{
	Use:   "backup-all",
	Short: "Snapshot every registered game",
	RunE: func(cmd *cobra.Command, args []string) error {
		describe, _ := cmd.Flags().GetString("describe")

		a, err := newApp(cmd, "backup-all")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupAll(cmd.Context(), describe); err != nil {
			return failed("backup", err)
		}
		fmt.Println("All games backed up.")
		return nil
	},
}

var applyAllCmd = &cobra.Command{
	Use:   "apply-all",
	Short: "Restore the latest snapshot of every registered game",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "apply-all")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ApplyAll(cmd.Context()); err != nil {
			return failed("apply", err)
		}
		fmt.Println("All games restored.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-17s  %s  %-8s  %-8s  %s\n",
				op.ID,
				op.Name,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
			if op.Message != "" {
				fmt.Printf("    %s\n", op.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configListCmd.Flags().Bool("json", false, "Print the global config as JSON (credentials masked)")
	configCmd.AddCommand(configSetCmd)
	configSetCmd.Flags().Bool("extra-backup", true, "Snapshot current saves before every restore")
	configSetCmd.Flags().Bool("delete-before-apply", false, "Default delete_before_apply for new save units")

	// game subcommands
	gameCmd.AddCommand(gameAddCmd)
	gameAddCmd.Flags().StringArrayP("file", "f", nil, "Save file to track (repeatable)")
	gameAddCmd.Flags().StringArrayP("folder", "d", nil, "Save folder to track (repeatable)")
	gameAddCmd.Flags().String("game-path", "", "Game install location")
	gameCmd.AddCommand(gameListCmd)
	gameCmd.AddCommand(gameRemoveCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCreateCmd.Flags().StringP("describe", "m", "", "Description of the snapshot")
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotListCmd.Flags().Bool("json", false, "Print the raw index")
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotDescribeCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(gameCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(backupAllCmd)
	backupAllCmd.Flags().StringP("describe", "m", "", "Description of every snapshot")
	rootCmd.AddCommand(applyAllCmd)
	rootCmd.AddCommand(cloudCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
