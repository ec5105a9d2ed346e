package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nfc-command/ncc/internal/nfc"
)

func newDeriveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "derive <uid> [block4...]",
		Short: "Print the writer commands for one tag",
		Long: `Derives the base command and the block 4 to 8 write commands for a tag.

The block may be given as one quoted argument or as 16 separate bytes.
Omit it, or pass 0, to use the default block:
  ` + nfc.DefaultBlock,
		Example: `  ncc derive 04:69:62:e2:58:70:80
  ncc derive 046962e2587080 "00 00 4A 44 00 00 41 30 00 20 11 16 00 48 49 34"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, block := args[0], strings.Join(args[1:], " ")

			set, err := nfc.Derive(identifier, block)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(set)
			}
			for _, line := range set.Lines() {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full command set as JSON")
	return cmd
}
