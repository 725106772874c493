package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"irlower/internal/config"
	"irlower/internal/ir"
	"irlower/internal/modfile"
	"irlower/internal/source"
)

// loadConfig honours --config and otherwise searches upwards from the
// working directory. A missing file yields the defaults.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, err := config.Find(".")
		if err != nil {
			return config.Config{}, "", err
		}
		if !ok {
			return config.Default(), "", nil
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// irFile is a modfile read from disk.
type irFile struct {
	Path   string
	Format modfile.Format
	Unit   *ir.Unit
	Locs   *source.Locations
}

// readIRFile decodes path, detecting the encoding from its first byte. The
// unit is decoded as is: modules are not marked as cache loads.
func readIRFile(path string) (*irFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := modfile.Sniff(data)
	u := ir.NewUnit(ir.NewContext())
	locs, err := modfile.ReadRaw(bytes.NewReader(data), u, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &irFile{Path: path, Format: f, Unit: u, Locs: locs}, nil
}

// writeIRFile replaces path atomically.
func writeIRFile(path string, u *ir.Unit, locs *source.Locations, f modfile.Format) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".irlower-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	if err := modfile.SaveFormat(w, u, locs, f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// outputFormat picks the encoding for written files: --text wins, then the
// input's own encoding.
func outputFormat(cmd *cobra.Command, in modfile.Format) modfile.Format {
	text, err := cmd.Flags().GetBool("text")
	if err == nil && text {
		return modfile.FormatText
	}
	return in
}
