package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"irlower/internal/verify"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

var verifyCmd = &cobra.Command{
	Use:   "verify FILE...",
	Short: "Run the IR verifier over modfiles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			in, err := readIRFile(path)
			if err != nil {
				return err
			}
			err = verify.Check(in.Unit)
			if err == nil {
				fmt.Fprintf(out, "%s %s\n", okColor.Sprint("ok"), path)
				continue
			}
			failed++
			var verr *verify.Error
			if !errors.As(err, &verr) {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", failColor.Sprint("FAIL"), path)
			for _, v := range verr.Violations {
				fmt.Fprintf(out, "  %s\n", v)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed verification", failed, len(args))
		}
		return nil
	},
}
