package main

import (
	"fmt"
	"io"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	authmanager "github.com/goliatone/go-authmanager"
	"github.com/goliatone/go-authmanager/activitymap"
	"github.com/goliatone/go-authmanager/config"
	"github.com/goliatone/go-authmanager/storage/relational"
)

// app holds what every subcommand needs once the root command resolved the
// configuration.
type app struct {
	configPath string
	dsn        string
	driver     string

	cfg     *config.Config
	logger  *zap.Logger
	backend *relational.Backend
	manager *authmanager.Manager
	out     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "authmanager",
		Short: "Manage users, groups, roles and api keys.",
		Long: `authmanager administers the identity store: it creates and inspects users,
moves accounts through their lifecycle, manages groups and role grants and
issues api keys. Every command runs as the system operator.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&a.dsn, "dsn", "", "database dsn, overrides database.dsn")
	flags.StringVar(&a.driver, "driver", "", "database driver (sqlite or postgres), overrides database.driver")

	root.AddCommand(
		newMigrateCmd(a),
		newUserCmd(a),
		newGroupCmd(a),
		newAPIKeyCmd(a),
		newLoginCmd(a),
		newRefreshCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dsn != "" {
		cfg.Set(config.KeyDatabaseDSN, a.dsn)
	}
	if a.driver != "" {
		cfg.Set(config.KeyDatabaseDriver, a.driver)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.logger = logger
	log := authmanager.NewZapLogger(logger)

	backend, err := relational.Open(cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN(), relational.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.backend = backend
	opts := append(cfg.ManagerOptions(log),
		authmanager.WithActivitySink(activitymap.NewLogSink(logger.Named("audit"))),
	)
	a.manager = authmanager.NewManager(backend, opts...)
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.manager != nil {
		return a.manager.Close()
	}
	return nil
}

func (a *app) print(v any) {
	fmt.Fprintln(a.out, print.MaybePrettyJSON(v))
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "migrations applied")
			return nil
		},
	}
}
