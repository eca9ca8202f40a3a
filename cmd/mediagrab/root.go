package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mediagrab",
	Short: "Download media timelines from social platforms",
	Long: `mediagrab crawls a creator's media timeline and downloads every image,
video and gif into a templated directory layout.

Features:
  - Resumable crawls: state is persisted after every page
  - Concurrent downloads with atomic writes, safe to re-run
  - Unlocks direct video URLs on platforms that hide them
  - Date and blocked-word filtering
  - Secure credential storage using the system keychain`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .mediagrab.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`mediagrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
