// Package cmd implements the Marquee viewer agent CLI
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marqueehq/marquee/internal/mrqview/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mrqview",
	Short: "Marquee viewer agent",
	Long: `mrqview keeps a viewer endpoint's rendered content synchronized with
server-side schedule state over a push channel with a polling fallback.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mrqview/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "authority API address")
	rootCmd.PersistentFlags().String("token", "", "authentication token")

	// Add commands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	// Allow command line flags to override config file
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		cfg.Server = server
	}
	if token, _ := rootCmd.PersistentFlags().GetString("token"); token != "" {
		cfg.Token = token
	}
}
