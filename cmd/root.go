// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string

	// globalConfig is loaded before any subcommand runs.
	globalConfig *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "frer",
	Short: "frer - IEEE 802.1CB R-TAG generator and duplicate elimination analyzer",
	Long: `frer validates IEEE 802.1CB Frame Replication and Elimination for Reliability
on a live Ethernet segment.

It crafts R-TAG frames and sends every sequence number as an original plus
duplicates, and it captures or replays traffic to count how many copies of
each sequence number arrive and which ones a receiver would eliminate.

Commands:
  send      generate R-TAG traffic scenarios
  analyze   capture live traffic and eliminate duplicates
  replay    analyze pcap/pcapng files
  inspect   dissect pcap frames, R-TAG included
  validate  check a configuration file`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		// Console reporters own stdout.
		if err := log.InitWithOutput(cfg.Log, os.Stderr); err != nil {
			return err
		}
		globalConfig = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override: trace, debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}
