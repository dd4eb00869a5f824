package main

import (
	"fmt"
	"os"

	"github.com/franz/scma/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "scma",
		Short: "Secure creative media archive - encrypted catalogue of songs, lyrics, scores and recordings",
		Long: `scma keeps a catalogue of creative works (artifacts) together with their
lyrics, music scores and audio recordings. Every stored field is encrypted
with a key unique to its artifact, every access is written to an append-only
journal, and what a user may do is decided by their role (admin, creator,
viewer).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/scma.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "database", "directory holding the table files")
	rootCmd.PersistentFlags().String("backend", "csv", "storage backend: csv or sqlite")
	rootCmd.PersistentFlags().String("sqlite-path", "", "database file for the sqlite backend (default <data-dir>/scma.db)")
	rootCmd.PersistentFlags().String("events-dir", "logs", "directory for session event logs (empty disables)")
	rootCmd.PersistentFlags().String("events-level", "info", "minimum session event level: debug, info, warning, error")
	rootCmd.PersistentFlags().Bool("no-ffprobe", false, "do not use ffprobe for audio durations")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable coloured output")

	// Bind flags to viper
	for _, name := range []string{"data-dir", "backend", "sqlite-path", "events-dir", "events-level",
		"no-ffprobe", "verbose", "quiet", "no-color"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("scma")
		viper.SetConfigType("yaml")
	}

	// SCMA_DATA_DIR, SCMA_BACKEND, ...
	viper.SetEnvPrefix("SCMA")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	applyLogging()
	if err := viper.ReadInConfig(); err == nil {
		applyLogging()
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
