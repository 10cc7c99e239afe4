package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/df-mc/dragonfly/server"
	"github.com/samber/oops"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/spf13/cobra"

	"github.com/oriumgames/deathchest"
	"github.com/oriumgames/deathchest/df"
)

// serveConfig holds the flags of the serve command.
type serveConfig struct {
	listen      string
	metricsAddr string
	admins      []string
	permissions []string
	console     bool
}

const (
	defaultListen      = ":19132"
	defaultMetricsAddr = ":9100"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a Dragonfly server with death chests",
		Long: `Run a Dragonfly server with death chests enabled. The configuration
file is created with default values if it does not exist.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.listen, "listen", defaultListen, "address the server listens on")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "address to serve /metrics on (empty to disable)")
	cmd.Flags().StringSliceVar(&cfg.admins, "admins", nil, "names of players with the deathchest.admin permission")
	cmd.Flags().StringSliceVar(&cfg.permissions, "permissions", df.DefaultPermissions, "permission patterns granted to every player")
	cmd.Flags().BoolVar(&cfg.console, "console", true, "read death chest commands from stdin")
	cmd.Flags().Int("chest-break-time", deathchest.DefaultBreakTime, "seconds before a death chest breaks, overrides the config file")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *serveConfig) error {
	log := setupLogging("deathchest", version, logFormat, cmd.ErrOrStderr())
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if written, err := deathchest.WriteDefaultConfig(configFile); err != nil {
		return oops.Code("SERVE_CONFIG_FAILED").With("path", configFile).Wrap(err)
	} else if written {
		log.Info("wrote default configuration", "path", configFile)
	}
	perms, err := df.NewPermissions(cfg.permissions, cfg.admins)
	if err != nil {
		return err
	}

	uc := server.DefaultConfig()
	uc.Network.Address = cfg.listen
	conf, err := uc.Config(log)
	if err != nil {
		return oops.Code("SERVE_SERVER_FAILED").Wrapf(err, "creating server config")
	}
	srv := conf.New()

	// A configuration that cannot be parsed disables death chests instead of
	// running them with unknown settings.
	var (
		deps     *df.Deps
		shutdown = func() {}
	)
	settings, err := deathchest.LoadSettings(configFile, cmd.Flags(), log)
	if err != nil {
		log.Error("death chests disabled: configuration cannot be loaded", "path", configFile, "error", err)
	} else {
		deps, shutdown, err = startDeathChests(ctx, cmd, cfg, srv, settings, perms, log)
		if err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		shutdown()
		if err := srv.Close(); err != nil {
			log.Error("closing server", "error", err)
		}
	}()

	log.Info("starting server", "listen", cfg.listen, "death_chests", deps != nil)
	srv.Listen()
	for p := range srv.Accept() {
		if deps != nil {
			df.Attach(p, *deps)
		}
	}
	return nil
}

// startDeathChests wires the death chest manager into srv. The returned
// function breaks every chest and must run before the server closes its worlds.
func startDeathChests(ctx context.Context, cmd *cobra.Command, cfg *serveConfig, srv *server.Server, settings *deathchest.Settings, perms *df.Permissions, log *slog.Logger) (*df.Deps, func(), error) {
	caps := deathchest.DetectCapabilities(protocol.CurrentVersion)
	worlds := df.NewWorlds(log, srv.World(), srv.Nether(), srv.End())
	players := df.NewPlayers()

	sched := deathchest.NewTickScheduler(log)
	sched.Start(context.Background())

	mngr, err := deathchest.NewBuilder().
		World(worlds).
		Scheduler(sched).
		Settings(settings).
		Holograms(worlds).
		Broadcaster(players).
		Capabilities(caps).
		Logger(log).
		Init()
	if err != nil {
		sched.Stop()
		return nil, nil, err
	}
	commands := deathchest.NewCommands(mngr, version, log)
	df.RegisterCommand()

	if cfg.metricsAddr != "" {
		go serveMetrics(ctx, cfg.metricsAddr, newRegistry(), log)
	}
	if cfg.console {
		go runConsole(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), commands)
	}

	shutdown := func() {
		report := mngr.Shutdown()
		for _, err := range report.Errors {
			log.Warn("death chest shutdown error", "error", err)
		}
		sched.Stop()
	}

	log.Info("death chests enabled", "capabilities", caps.String(), "config", settings.Path())
	return &df.Deps{
		Manager:     mngr,
		Commands:    commands,
		Players:     players,
		Permissions: perms,
		Logger:      log,
	}, shutdown, nil
}
