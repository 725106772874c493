package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irlower/internal/ir"
	"irlower/internal/modfile"
)

var hashCmd = &cobra.Command{
	Use:   "hash FILE",
	Short: "Print the structural hash of a unit and the cache key of each module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := readIRFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "unit %s\n", in.Unit.StructuralHash(in.Unit.Global))
		for _, name := range moduleNames(in.Unit) {
			key, err := modfile.KeyOf(in.Unit, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "module %s %s\n", name, key.Hash)
		}
		return nil
	},
}

// moduleNames lists the modules of the global scope in name order.
func moduleNames(u *ir.Unit) []string {
	var names []string
	for _, id := range u.SortedSymbols(u.Global) {
		if sym := u.Symbol(id); sym.Alive() && sym.Kind == ir.SymModule {
			names = append(names, u.Name(id))
		}
	}
	return names
}
