package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "calltrace",
	Short: "Produce and inspect call-trace segments",
	Long: `calltrace works with the segment format used by the call-trace
facility. It reports the provider identity and counter calibration of this
host, emits synthetic traces through the segment allocator into a file or a
NATS subject, and verifies segment files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	fs := rootCmd.PersistentFlags()
	fs.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.StringVarP(&cfgFile, "config", "C", "",
		"Read configuration from `FILE` (JSON, TOML, YAML)")

	viper.SetEnvPrefix("CALLTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		printError("failed to read configuration file (%s): %v\n", cfgFile, err)
		os.Exit(1)
	}
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// newLogger builds the process logger: discarded unless verbose, JSON when
// --json is set.
func newLogger() *slog.Logger {
	if !verbose || quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// bindFlags exposes every local flag of cmd through viper, so each one can
// also come from the config file or a CALLTRACE_ environment variable.
func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(cmd.Name()+"."+f.Name, f)
	})
}
