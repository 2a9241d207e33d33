package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/partychat/internal/app"
	"github.com/vovakirdan/partychat/internal/backend"
	"github.com/vovakirdan/partychat/internal/config"
	applog "github.com/vovakirdan/partychat/internal/log"
	"github.com/vovakirdan/partychat/internal/terminal"
)

type rootFlags struct {
	configPath string
	logLevel   string
	backendURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "partychat: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "partychat",
		Short:         "Group chat client for party-chat backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	root.PersistentFlags().StringVar(&flags.backendURL, "backend", "", "backend websocket URL")

	root.AddCommand(newServeCmd(flags), newChatCmd(flags), newDevServerCmd(flags))
	return root
}

// load resolves configuration and builds the logger. Flags win over file and env.
func load(flags *rootFlags) (config.Config, *zerolog.Logger, error) {
	bootstrap := applog.New("warn")
	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, nil, err
	}
	cfg.UpdateFrom(config.Config{LogLevel: flags.logLevel, BackendURL: flags.backendURL})

	logger := applog.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the backend and serve the browser bridge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(flags)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Addr: addr})

			application := app.New(&cfg, logger)
			logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.BackendURL).Msg("starting partychat bridge")
			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	var opts terminal.Options

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat from the terminal; creates a room unless --room is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(flags)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Nickname: opts.Nickname, Icon: opts.Icon})
			opts.Nickname = cfg.Nickname
			opts.Icon = cfg.Icon

			ctrl := app.NewSession(&cfg, logger)
			defer ctrl.Close()

			view := terminal.New(ctrl, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
			return view.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Nickname, "nickname", "", "display name (defaults to config)")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "avatar icon")
	cmd.Flags().StringVar(&opts.RoomID, "room", "", "room id to join")
	return cmd
}

func newDevServerCmd(flags *rootFlags) *cobra.Command {
	var (
		addr    string
		history int
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local party-chat backend for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(flags)
			if err != nil {
				return err
			}

			server := app.NewDevServer(addr, history, cfg.ReadHeaderTimeout, logger)
			logger.Info().Str("addr", addr).Msg("starting development backend")
			return app.Serve(cmd.Context(), server, cfg.ShutdownTimeout, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().IntVar(&history, "history", backend.DefaultHistoryLimit, "messages kept per room")
	return cmd
}
