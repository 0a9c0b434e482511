// Command localmind is a terminal client for the LocalMind chat server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/localmind/backend/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose    bool
	configPath string
	outputFmt  string

	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "localmind",
	Short: "LocalMind CLI - chat with your local model from the terminal",
	Long: `localmind talks to a LocalMind server: send messages and watch the reply
stream in, browse and delete conversations, and stop running generations.

Settings are read from ~/.config/localmind/config.yaml and LOCALMIND_* environment
variables (LOCALMIND_API_BASE_URL, LOCALMIND_API_TOKEN, LOCALMIND_API_TIMEOUT).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(configPath); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		initLogger(verbose)

		if outputFmt != "text" && outputFmt != "json" {
			return fmt.Errorf("unknown output format %q (text, json)", outputFmt)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/localmind/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format: text, json")
	rootCmd.PersistentFlags().String("server", "", "Server URL (overrides api.base_url)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (overrides api.token)")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(promptsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initConfig(path string) error {
	viper.SetDefault("api.base_url", "http://localhost:3000")
	viper.SetDefault("api.timeout", 30)

	viper.SetEnvPrefix("LOCALMIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		return viper.ReadInConfig()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	// the config file is optional; flags and env are enough
	path = filepath.Join(home, ".config", "localmind", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	viper.SetConfigFile(path)
	return viper.ReadInConfig()
}

func initLogger(verbose bool) {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "localmind",
	})
	logger.SetLevel(log.WarnLevel)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

func newClient() *client.Client {
	return client.New(client.Config{
		BaseURL: viper.GetString("api.base_url"),
		Token:   viper.GetString("api.token"),
		Timeout: time.Duration(viper.GetInt("api.timeout")) * time.Second,
		Debug: func(msg string, keyvals ...any) {
			logger.Debug(msg, keyvals...)
		},
	})
}
