package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/presbrey/ircserv/irc/admind"
	"github.com/presbrey/ircserv/irc/config"
	"github.com/presbrey/ircserv/irc/server"
	"github.com/presbrey/ircserv/irc/transport"
)

const usage = "usage: ircserv [flags] <port> <password>"

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "ircserv",
		Usage:     "multi-client IRC chat relay",
		ArgsUsage: "<port> <password>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load settings from a YAML, TOML or JSON file", Sources: cli.EnvVars("IRCSERV_CONFIG")},
			&cli.StringFlag{Name: "server-name", Usage: "name used as the prefix of server replies"},
			&cli.StringFlag{Name: "admin", Usage: "admin HTTP listen address, e.g. 127.0.0.1:8080 (disabled when empty)"},
			&cli.DurationFlag{Name: "poll-interval", Usage: "upper bound on a single readiness wait"},
			&cli.BoolFlag{Name: "hashed", Usage: "the password argument is a bcrypt hash"},
			&cli.BoolFlag{Name: "debug", Usage: "log every dispatched command"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored log output"},
		},
		Action: runServer,
	}
}

// options are the command-line values layered over the loaded config.
type options struct {
	port     int
	password string

	serverName   string
	admin        string
	pollInterval time.Duration
	hashed       bool
	debug        bool
	noColor      bool
}

// parseArgs validates the two positional arguments.
func parseArgs(args []string) (int, string, error) {
	if len(args) != 2 {
		return 0, "", fmt.Errorf("expected 2 arguments, got %d", len(args))
	}

	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 1024 || port >= 65536 {
		return 0, "", fmt.Errorf("invalid port %q: must be between 1025 and 65535", args[0])
	}
	if args[1] == "" {
		return 0, "", errors.New("password must not be empty")
	}
	return port, args[1], nil
}

// apply overrides cfg with explicitly given command-line values.
func (o options) apply(cfg *config.Config) {
	cfg.Server.Port = o.port
	cfg.Server.Password = o.password
	if o.serverName != "" {
		cfg.Server.Name = o.serverName
	}
	if o.admin != "" {
		cfg.Admin.Addr = o.admin
	}
	if o.pollInterval > 0 {
		cfg.Loop.PollInterval = o.pollInterval
	}
	if o.hashed {
		cfg.Server.Hashed = true
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	if o.noColor {
		cfg.Log.NoColor = true
	}
}

func newLogger(debug, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	port, password, err := parseArgs(cmd.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error()+"\n"+usage, 1)
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	options{
		port:         port,
		password:     password,
		serverName:   cmd.String("server-name"),
		admin:        cmd.String("admin"),
		pollInterval: cmd.Duration("poll-interval"),
		hashed:       cmd.Bool("hashed"),
		debug:        cmd.Bool("debug"),
		noColor:      cmd.Bool("no-color"),
	}.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := newLogger(cfg.Log.Debug, cfg.Log.NoColor)
	logger.Info("starting ircserv", "server", cfg.Server.Name, "port", cfg.Server.Port, "config", cfg.Source)

	tr := transport.New()
	tr.Backlog = cfg.Loop.Backlog

	srv, err := server.NewServer(cfg, tr, logger)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := srv.Listen(); err != nil {
		logger.Error("listen failed", "err", err)
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop only observes the flag; all teardown happens after Run.
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()

	if cfg.Admin.Addr != "" {
		admin := admind.New(cfg.Admin.Addr, srv, logger)
		go func() {
			if err := admin.Run(ctx); err != nil {
				logger.Error("admin server failed", "err", err)
			}
		}()
	}

	runErr := srv.Run()
	srv.Shutdown()
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}

	logger.Info("ircserv stopped")
	return nil
}
