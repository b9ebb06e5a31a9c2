// Package commands implements the yakd command line.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "yakd",
	Short: "yakd - storage daemon for a version control client",
	Long: `yakd keeps the objects of a version control system (files, symlinks,
trees and commits) in a content-addressed in-memory store, and serves each
registered workspace as a working copy over NFSv3.

Clients talk to the daemon over ONC RPC. Use "yakd [command] --help" for
more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command without fang; tests use it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/yak/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
