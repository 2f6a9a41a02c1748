package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nodebase/backend/internal/config"
)

var (
	configFile string
	envFile    string

	rootCmd = &cobra.Command{
		Use:           "nodebase-server",
		Short:         "Workflow graph persistence service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server (default)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "Path to config.yaml (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file loaded before the environment")
	rootCmd.PersistentFlags().String("addr", "", "Listen address, overrides server.addr")
	rootCmd.PersistentFlags().String("log-level", "", "Log level, overrides log.level")

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads the configuration with command line flags taking
// precedence over file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		if err := v.BindPFlag("server.addr", f); err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		if err := v.BindPFlag("log.level", f); err != nil {
			return nil, err
		}
	}
	return config.Load(v, envFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
