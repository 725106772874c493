package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/modfile"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the module cache",
}

var cachePutCmd = &cobra.Command{
	Use:   "put FILE...",
	Short: "Store every module of the given modfiles in the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, bag, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer flushDiagnostics(cmd, bag)
		for _, path := range args {
			in, err := readIRFile(path)
			if err != nil {
				return err
			}
			for _, name := range moduleNames(in.Unit) {
				key, err := c.Put(in.Unit, name, in.Locs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
			}
		}
		return nil
	},
}

var cacheCheckCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Report which modules of the given modfiles are cached and loadable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, bag, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer flushDiagnostics(cmd, bag)
		stopProfiling, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		defer stopProfiling()
		var keys []modfile.Key
		for _, path := range args {
			in, err := readIRFile(path)
			if err != nil {
				return err
			}
			for _, name := range moduleNames(in.Unit) {
				key, err := modfile.KeyOf(in.Unit, name)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
		}
		jobs, _ := cmd.Flags().GetInt("jobs")
		loaded, err := c.LoadMany(cmd.Context(), ir.NewContext(), keys, jobs)
		if err != nil {
			return err
		}
		for _, l := range loaded {
			status := failColor.Sprint("miss")
			if l.Hit {
				status = okColor.Sprint("hit ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", status, l.Key)
		}
		return nil
	},
}

var cacheDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Remove every cached module",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, bag, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer flushDiagnostics(cmd, bag)
		if err := c.DropAll(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", c.Dir())
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().String("dir", "", "cache directory (default: [cache] dir from the config)")
	cachePutCmd.Flags().Bool("text", false, "store the text encoding")
	cacheCheckCmd.Flags().IntP("jobs", "j", 0, "parallel loads (0 = GOMAXPROCS)")
	addProfileFlags(cacheCheckCmd)
	cacheCmd.AddCommand(cachePutCmd, cacheCheckCmd, cacheDropCmd)
}

func openCache(cmd *cobra.Command) (*modfile.Cache, *diag.Bag, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if text, err := cmd.Flags().GetBool("text"); err == nil && text {
		cfg.Cache.Text = true
	}
	bag := diag.NewBag(0)
	c, err := modfile.OpenConfig(cfg.Cache, diag.NewDedupReporter(diag.BagReporter{Bag: bag}))
	if err != nil {
		return nil, nil, err
	}
	return c, bag, nil
}

// flushDiagnostics prints what the cache reported, notes excluded.
func flushDiagnostics(cmd *cobra.Command, bag *diag.Bag) {
	var shown []diag.Diagnostic
	for _, d := range bag.Items() {
		if d.Severity > diag.SevNote {
			shown = append(shown, d)
		}
	}
	if len(shown) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), diag.FormatShort(shown, nil, false))
	}
}
