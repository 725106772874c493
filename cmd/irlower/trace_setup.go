package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"irlower/internal/config"
	"irlower/internal/trace"
)

// traceSession owns the tracer of one command run.
type traceSession struct {
	tracer trace.Tracer
	cfg    trace.Config
}

// setupTracing builds the tracer from the [trace] section, applies the
// --trace* overrides and attaches it to the command context.
func setupTracing(cmd *cobra.Command, cfg *config.Config) (*traceSession, error) {
	flags := cmd.Root().PersistentFlags()
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"trace", &cfg.Trace.Output},
		{"trace-level", &cfg.Trace.Level},
		{"trace-format", &cfg.Trace.Format},
		{"trace-mode", &cfg.Trace.Mode},
	}
	for _, o := range overrides {
		v, err := flags.GetString(o.flag)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", o.flag, err)
		}
		if v != "" {
			*o.dst = v
		}
	}
	// Файл трассировки без уровня - значит нужны границы проходов.
	if cfg.Trace.Output != "" && (cfg.Trace.Level == "" || cfg.Trace.Level == "off") {
		cfg.Trace.Level = "pass"
	}

	tcfg, err := cfg.TraceConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid trace settings: %w", err)
	}
	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))
	return &traceSession{tracer: tracer, cfg: tcfg}, nil
}

// Close flushes the tracer. A ring tracer is dumped only when the command
// failed.
func (s *traceSession) Close(failed bool) {
	if ring, ok := s.tracer.(*trace.RingTracer); ok && failed {
		if err := ring.DumpTo(s.cfg.OutputPath, s.cfg.Format); err != nil {
			fmt.Fprintf(os.Stderr, "failed to dump trace: %v\n", err)
		}
	}
	_ = s.tracer.Flush()
	_ = s.tracer.Close()
}
