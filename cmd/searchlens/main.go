package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"searchlens/internal/bing"
	"searchlens/internal/browser"
	"searchlens/internal/config"
	"searchlens/internal/gsc"
	"searchlens/internal/mcpserver"
	"searchlens/internal/metrics"
	"searchlens/internal/session"
	"searchlens/internal/tool"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "searchlens",
		Short:         "Search analytics tools for agents, backed by your browser's Google session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newLoginCmd(&configPath),
		newStatusCmd(&configPath),
		newRefreshCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}

// setupLogger builds the process logger. Logs go to stderr (or the configured
// file); stdout is reserved for protocol traffic and command output.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

// components is everything the commands wire together.
type components struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	sessions  *session.Provider
	registry  *tool.Registry
}

func buildComponents(configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	reader := session.NewStoreReader(session.StoreConfig{
		Browser: cfg.Google.Browser,
		Profile: cfg.Google.Profile,
		Path:    cfg.Google.CookiePath,
		Logger:  logger,
	})
	sessions := session.NewProvider(session.ProviderConfig{
		Reader:   reader,
		TTL:      time.Duration(cfg.Google.CookieTTLSeconds) * time.Second,
		Logger:   logger,
		Recorder: collector,
	})

	table := gsc.DefaultCodeTable()
	if cfg.Google.CodeTablePath != "" {
		table, err = gsc.LoadCodeTable(cfg.Google.CodeTablePath)
		if err != nil {
			return nil, err
		}
		logger.Info("wire code table loaded", "path", cfg.Google.CodeTablePath, "version", table.Version)
	}

	channel := gsc.NewChannel(gsc.ChannelConfig{
		BaseURL:  cfg.Google.BaseURL,
		Origin:   cfg.Google.Origin,
		Client:   &http.Client{Timeout: time.Duration(cfg.Google.TimeoutSeconds) * time.Second},
		Sessions: sessions,
		TokenTTL: time.Duration(cfg.Google.TokenTTLSeconds) * time.Second,
		Logger:   logger,
		Recorder: collector,
	})
	client := gsc.NewClient(gsc.ClientConfig{Caller: channel, Table: table, Logger: logger})

	registry := tool.NewRegistry(logger, collector)
	limits := tool.Limits{DefaultRows: cfg.Tools.DefaultRowLimit, MaxRows: cfg.Tools.MaxRowLimit}
	for _, t := range tool.NewGSCTools(client, limits, nil) {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(tool.NewSessionTool(sessions)); err != nil {
		return nil, err
	}
	if cfg.Bing.Enabled {
		bc := bing.NewClient(bing.Config{
			BaseURL: cfg.Bing.BaseURL,
			APIKey:  cfg.Bing.APIKey,
			Client:  &http.Client{Timeout: time.Duration(cfg.Bing.TimeoutSeconds) * time.Second},
			Logger:  logger,
		})
		for _, t := range tool.NewBingTools(bc, limits) {
			if err := registry.Register(t); err != nil {
				return nil, err
			}
		}
	}

	return &components{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		sessions:  sessions,
		registry:  registry,
	}, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c.collector != nil {
				mux := http.NewServeMux()
				mux.Handle("/metrics", c.collector.Handler())
				srv := &http.Server{Addr: c.cfg.Metrics.Addr, Handler: mux}
				go func() {
					c.logger.Info("metrics listening", "addr", c.cfg.Metrics.Addr)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						c.logger.Error("metrics server failed", "err", err)
					}
				}()
				defer srv.Close()
			}

			server := mcpserver.New(mcpserver.Config{
				Registry: c.registry,
				Logger:   c.logger,
				Version:  version,
			})
			return server.Run(ctx)
		},
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a browser window to sign in to Google",
		Long:  "Opens a visible browser at the Google sign-in page. Complete the login there; the session is then readable from the cookie store. Close the browser before serving.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			bridge := browser.NewBridge(browser.BridgeConfig{Logger: c.logger})
			if err := bridge.Login(ctx); err != nil {
				return err
			}
			fmt.Println("Login complete. Close the browser, then run: searchlens status")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the login to finish")
	return cmd
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a usable Google session is present",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*configPath)
			if err != nil {
				return err
			}
			cookies, err := c.sessions.Cookies(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Session OK: %d cookies read from the browser store.\n", len(cookies))
			return nil
		},
	}
}

func newRefreshCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Discard the cached session and re-read the cookie store",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*configPath)
			if err != nil {
				return err
			}
			cookies, err := c.sessions.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Session refreshed: %d cookies.\n", len(cookies))
			return nil
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
	}
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Println(*configPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every config key with its current value",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				paths, err := config.ListPaths(cfg)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Println(p)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one config value by dotted path",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				v, err := config.GetByPath(cfg, args[0])
				if err != nil {
					return err
				}
				fmt.Println(v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set one config value and save the file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
					return err
				}
				if err := config.Save(cfg, *configPath); err != nil {
					return err
				}
				fmt.Printf("%s set.\n", args[0])
				return nil
			},
		},
	)
	return configCmd
}
