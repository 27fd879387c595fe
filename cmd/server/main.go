package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dotsync/dotsync/internal/server"
	"github.com/dotsync/dotsync/internal/version"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:     "dotsync-server",
	Short:   "Dotsync Server",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		slog.Info("dotsync server",
			"version", version.Version,
			"revision", version.Revision,
			"addr", cfg.HTTP.Addr,
			"db", cfg.DBPath,
			"auth", cfg.Auth.Enabled,
		)

		s, err := server.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("db", server.DefaultDBPath, "Path to the sqlite database")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a config file (yaml or json)")
}

func main() {
	// local overrides for development, absence is fine
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configPath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config read %q: %w", configPath, err)
		}
	} else {
		viper.SetConfigName("dotsync-server")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config read %q: %w", viper.ConfigFileUsed(), err)
			}
		}
	}

	viper.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("db_path", cmd.Flags().Lookup("db"))

	// e.g. DOTSYNC_AUTH_ACCESS_TOKEN_SECRET -> auth.access_token_secret
	viper.SetEnvPrefix("DOTSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return nil
}

func loadConfig() (*server.Config, error) {
	var cfg server.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
