package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JeffCSZ/vms/internal/config"
	"github.com/JeffCSZ/vms/internal/server"
	"github.com/JeffCSZ/vms/internal/telemetry"
)

const banner = `
__   ____  __ ___
\ \ / /  \/  / __|
 \ V /| |\/| \__ \
  \_/ |_|  |_|___/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the visitor management API server",
		Long:  "Start the HTTP server that both the issuer and verifier apps talk to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg := config.FromViper()
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := newLogger(cfg.Logging, dev)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "driver", cfg.Database.Driver, "data_dir", resolveDataDir())

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is not set - using an insecure development secret")
	}
	authSvc := newAuthService(st, cfg)

	hasAny, err := st.HasAnyIdentity(context.Background())
	if err != nil {
		logger.Warn("failed to check for accounts", "error", err)
	}
	if !hasAny {
		logger.Warn("no accounts found - register via the API or run: vms account create")
	}

	tracker := telemetry.New(context.Background(), st, logger, func() telemetry.Properties {
		identities, _ := st.CountIdentities(context.Background())
		requests, _ := st.CountRequests(context.Background())
		return telemetry.Properties{
			Version:    versionString(),
			GoVersion:  runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			Driver:     cfg.Database.Driver,
			Identities: identities,
			Requests:   requests,
		}
	})
	tracker.Start()
	defer tracker.Shutdown()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeoutDuration()
	srvCfg.CORSOrigins = cfg.Server.CORSOrigins

	srv := server.New(srvCfg, st, authSvc, logger)

	fmt.Printf("→ vms %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

// newLogger builds the process logger from the logging configuration. Dev
// mode forces debug level regardless of the configured one.
func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
