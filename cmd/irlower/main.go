package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"irlower/internal/config"
	"irlower/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "irlower",
	Short: "Lower, verify and cache Fortran IR modules",
	Long: `irlower runs the lowering pipeline over serialized IR units,
checks them with the verifier and manages the module cache`,
	SilenceUsage:      true,
	PersistentPreRunE: applyColorMode,
}

// main registers subcommands and persistent flags, then executes the root
// command. Any command error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	// Команды
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(passesCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to "+config.FileName+" (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|pass|detail|debug), overrides the config")
	rootCmd.PersistentFlags().String("trace-format", "", "trace format (text|ndjson), overrides the config")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage (stream|ring); ring dumps only on failure")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
