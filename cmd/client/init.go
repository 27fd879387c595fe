package main

import (
	"fmt"
	"os"

	"github.com/dotsync/dotsync/internal/client/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

// newInitCmd writes a fresh config file from flags so the daemon can start
// without any interactive setup.
func newInitCmd() *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the dotsync config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			configPath := cmd.Flag("config").Value.String()
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config already exists at %q, use --force to overwrite", configPath)
			}

			email, _ := cmd.Flags().GetString("email")
			dataDir, _ := cmd.Flags().GetString("datadir")
			serverURL, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")

			cfg := &config.Config{
				Email:       email,
				DataDir:     dataDir,
				ServerURL:   serverURL,
				AccessToken: token,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("config save: %w", err)
			}

			fmt.Printf("Wrote config to %s\n", configPath)
			return nil
		},
	}

	initCmd.Flags().SortFlags = false
	initCmd.Flags().StringP("email", "e", "", "Account email")
	initCmd.Flags().StringP("datadir", "d", defaultDataDir, "Directory kept in sync")
	initCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Dotsync server URL")
	initCmd.Flags().StringP("token", "t", "", "Access token for the server")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return initCmd
}
