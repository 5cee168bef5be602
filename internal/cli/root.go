// Package cli implements the healthlog command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/internal/paths"
	"github.com/mesh-intelligence/healthlog/pkg/journal"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app carries the global flags and the state loaded before a command runs.
type app struct {
	configDir   string
	dataDir     string
	jsonMode    bool
	metricsFile string

	// resolvedConfigDir is set by the pre-run hook.
	resolvedConfigDir string
	cfg               *viper.Viper
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

// NewRootCmd creates the top-level "healthlog" command with its global
// flags and every subcommand registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "healthlog",
		Short: "A personal health-event journal",
		Long: "healthlog records timestamped entries of what you did and how you felt,\n" +
			"built from a catalog of types, categories, items and bundles.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsFile == "" {
				return nil
			}
			return a.metrics.WriteTextfile(a.metricsFile)
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "journal directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newTypesCmd(a),
		newCategoriesCmd(a),
		newItemsCmd(a),
		newItemCmd(a),
		newBundlesCmd(a),
		newBundleCmd(a),
		newLogCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "healthlog:", err)
		return exitCode(err)
	}
	return exitSuccess
}

func exitCode(err error) int {
	for _, target := range []error{
		types.ErrNotFound,
		types.ErrInvalidID,
		types.ErrInvalidName,
		types.ErrDuplicateName,
		types.ErrInvalidData,
		types.ErrInvalidTimestamp,
		types.ErrInvalidBundleMember,
		types.ErrInvalidBackup,
		types.ErrUnsupportedVersion,
		types.ErrInvalidImportMode,
		types.ErrBackendEmpty,
		types.ErrBackendUnknown,
		types.ErrDataDirRequired,
		errUsage,
	} {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// setup loads config.yaml, builds the logger and, when requested, the
// metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	a.resolvedConfigDir = dir
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.GetString(cfgKeyLogLevel), cfg.GetString(cfgKeyLogFormat))

	if a.metricsFile != "" {
		m, err := metrics.New(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		a.metrics = m
	}
	return nil
}

func (a *app) resolveDataDir() (string, error) {
	return paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
}

// open attaches the configured journal. The caller must Detach it.
func (a *app) open() (types.Journal, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{Backend: a.cfg.GetString(cfgKeyBackend), DataDir: dataDir}
	j, err := journal.Open(cfg, journal.WithLogger(a.logger), journal.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

// withJournal opens the journal, runs fn and detaches.
func (a *app) withJournal(cmd *cobra.Command, fn func(ctx context.Context, j types.Journal) error) (err error) {
	j, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if derr := j.Detach(); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn(cmd.Context(), j)
}
