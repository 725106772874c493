package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"irlower/internal/diag"
	"irlower/internal/passes"
	"irlower/internal/ui"
)

var lowerCmd = &cobra.Command{
	Use:   "lower FILE",
	Short: "Run the lowering pipeline over a modfile",
	Long: `lower decodes FILE, runs the configured passes and writes the lowered unit
to --output (FILE itself when omitted)`,
	Args: cobra.ExactArgs(1),
	RunE: runLower,
}

func init() {
	lowerCmd.Flags().StringP("output", "o", "", "output modfile (default: overwrite FILE)")
	lowerCmd.Flags().Bool("text", false, "write the text encoding")
	lowerCmd.Flags().Bool("fast", false, "enable the numeric peepholes (div_to_mul, sign_from_value, fma)")
	lowerCmd.Flags().StringSlice("skip", nil, "passes to skip")
	lowerCmd.Flags().StringSlice("passes", nil, "explicit pass list, replacing the default order")
	lowerCmd.Flags().Bool("timings", false, "show per-pass timing information")
	lowerCmd.Flags().String("timings-format", "text", "timing output format (text|json)")
	lowerCmd.Flags().Bool("no-verify", false, "do not verify between passes")
	lowerCmd.Flags().String("ui", "auto", "show pass progress (auto|on|off)")
	lowerCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	addProfileFlags(lowerCmd)
}

func runLower(cmd *cobra.Command, args []string) (err error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if fast, _ := flags.GetBool("fast"); fast {
		cfg.Pipeline.Fast = true
	}
	if skip, _ := flags.GetStringSlice("skip"); len(skip) > 0 {
		cfg.Pipeline.Skip = append(cfg.Pipeline.Skip, skip...)
	}
	if list, _ := flags.GetStringSlice("passes"); len(list) > 0 {
		cfg.Pipeline.Passes = list
	}
	if timings, _ := flags.GetBool("timings"); timings {
		cfg.Pipeline.TimeReport = true
	}
	if noVerify, _ := flags.GetBool("no-verify"); noVerify {
		cfg.Pipeline.Verify = false
	}
	uiValue, _ := flags.GetString("ui")
	mode, err := readColorMode(uiValue)
	if err != nil {
		return fmt.Errorf("invalid --ui value %q (expected auto|on|off)", uiValue)
	}
	maxDiags, _ := flags.GetInt("max-diagnostics")

	tracing, err := setupTracing(cmd, &cfg)
	if err != nil {
		return err
	}
	defer func() { tracing.Close(err != nil) }()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	in, err := readIRFile(args[0])
	if err != nil {
		return err
	}
	bag := diag.NewBag(maxDiags)
	m, err := passes.NewManager(cfg, diag.NewDedupReporter(diag.BagReporter{Bag: bag}))
	if err != nil {
		return err
	}

	if useColor(mode, os.Stdout) {
		err = runWithUI(cmd.Context(), m, in)
	} else {
		err = m.Run(cmd.Context(), in.Unit)
	}
	if bag.Len() > 0 {
		bag.Sort()
		fmt.Fprint(cmd.ErrOrStderr(), diag.FormatShort(bag.Items(), in.Locs, true))
	}
	if err != nil {
		return err
	}
	if t := m.Timer(); t != nil {
		format, _ := flags.GetString("timings-format")
		if err := printTimings(cmd.OutOrStdout(), t, format); err != nil {
			return err
		}
	}

	out, _ := flags.GetString("output")
	if out == "" {
		out = in.Path
	}
	return writeIRFile(out, in.Unit, in.Locs, outputFormat(cmd, in.Format))
}

type lowerOutcome struct {
	err error
}

func runWithUI(ctx context.Context, m *passes.Manager, in *irFile) error {
	// Буфер вмещает все события прогона, поэтому Run не блокируется,
	// даже если UI завершился раньше.
	events := make(chan passes.Event, 3*len(m.Names())+1)
	outcomeCh := make(chan lowerOutcome, 1)
	m.SetProgress(passes.ChannelSink{Ch: events})
	defer m.SetProgress(nil)

	go func() {
		err := m.Run(ctx, in.Unit)
		outcomeCh <- lowerOutcome{err: err}
		close(events)
	}()

	model := ui.NewProgressModel("lower "+in.Path, m.Names(), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return uiErr
	}
	return outcome.err
}
