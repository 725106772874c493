package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"irlower/internal/prof"
)

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("cpu-profile", "", "write a CPU profile to this file")
	cmd.Flags().String("mem-profile", "", "write a heap profile to this file on exit")
	cmd.Flags().String("runtime-trace", "", "write a Go runtime trace to this file")
}

// setupProfiling starts the profilers requested by the command flags. The
// returned cleanup is safe to call more than once.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	var opts prof.Options
	for flag, dst := range map[string]*string{
		"cpu-profile":   &opts.CPU,
		"mem-profile":   &opts.Mem,
		"runtime-trace": &opts.Trace,
	} {
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		*dst = v
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	s, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := s.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write profiles: %v\n", err)
		}
	}, nil
}
