package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"irlower/internal/config"
	"irlower/internal/passes"
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List the lowering passes and which of them the configuration enables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := passes.NewManager(cfg, nil)
		if err != nil {
			return err
		}
		if path == "" {
			path = "defaults"
		}
		renderPasses(cmd.OutOrStdout(), path, cfg, m.Names())
		return nil
	},
}

var (
	enabledColor  = color.New(color.FgGreen)
	disabledColor = color.New(color.Faint)
)

// renderPasses prints the registry in default order followed by any
// explicitly configured pass that is not part of it.
func renderPasses(out io.Writer, source string, cfg config.Config, enabled []string) {
	fmt.Fprintf(out, "pipeline (%s):\n", source)
	all := slices.Clone(passes.DefaultOrder)
	for _, name := range enabled {
		if !slices.Contains(all, name) {
			all = append(all, name)
		}
	}
	for _, name := range all {
		mark, c := "-", disabledColor
		if pos := slices.Index(enabled, name); pos >= 0 {
			mark, c = fmt.Sprintf("%d", pos+1), enabledColor
		}
		var notes []string
		if passes.IsFastOnly(name) {
			notes = append(notes, "fast")
		}
		if slices.Contains(cfg.Pipeline.Skip, name) {
			notes = append(notes, "skipped")
		}
		line := fmt.Sprintf("  %2s  %-26s", mark, name)
		if len(notes) > 0 {
			line += fmt.Sprintf(" %v", notes)
		}
		fmt.Fprintln(out, c.Sprint(line))
	}
}
