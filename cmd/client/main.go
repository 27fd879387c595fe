package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dotsync/dotsync/internal/client"
	"github.com/dotsync/dotsync/internal/client/config"
	"github.com/dotsync/dotsync/internal/version"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _        = os.UserHomeDir()
	defaultDataDir = filepath.Join(home, ".dotsync", "data")
)

var rootCmd = &cobra.Command{
	Use:     "dotsync",
	Short:   "Dotsync CLI",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:           viper.ConfigFileUsed(),
			Email:          viper.GetString("email"),
			DataDir:        viper.GetString("data_dir"),
			ServerURL:      viper.GetString("server_url"),
			AccessToken:    viper.GetString("access_token"),
			IgnorePatterns: viper.GetStringSlice("ignore_patterns"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true

		c, err := client.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return c.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("email", "e", "", "Account email")
	rootCmd.Flags().StringP("datadir", "d", defaultDataDir, "Directory kept in sync")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Dotsync server URL")
	rootCmd.Flags().StringP("token", "t", "", "Access token for the server")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Dotsync config file")
}

func main() {
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

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".dotsync"))
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config read %q: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("email", cmd.Flags().Lookup("email"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("access_token", cmd.Flags().Lookup("token"))

	viper.SetEnvPrefix("DOTSYNC")
	viper.AutomaticEnv()

	return nil
}
