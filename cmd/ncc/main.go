// Command ncc derives tag writer commands from a tag UID and a block 4
// payload, either one-shot from the command line or as a Telegram bot with an
// optional HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "ncc",
		Short: "NFC tag command generator",
		Long: `ncc turns a 7-byte tag UID and a 16-byte block 4 payload into the
command lines a tag writer expects.

Run "ncc serve" to start the Telegram bot (and the HTTP API when enabled),
or "ncc derive" to print the commands for a single tag.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: ncc.yaml or $NCC_CONFIG)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newDeriveCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
