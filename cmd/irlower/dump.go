package main

import (
	"github.com/spf13/cobra"

	"irlower/internal/ir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print the textual dump of a modfile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := readIRFile(args[0])
		if err != nil {
			return err
		}
		return ir.Dump(cmd.OutOrStdout(), in.Unit)
	},
}
