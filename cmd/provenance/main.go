package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile   string
	serverURL string
	format    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "provenance",
		Short: "Supply-chain provenance CLI",
		Long: `provenance reads product provenance from the ledger contract, either
directly over JSON-RPC, from a running viewer (--server), or from the
built-in demo ledger (--demo).

  provenance fetch organic-cotton-tshirt --demo
  provenance fetch organic-cotton-tshirt --server http://localhost:5000 --format json
  provenance hash "Manufacturing" "Vietnam" "Fair Trade Certified" "45.0 kg CO2" "Solar-powered factory"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
			return config.LoadDotEnv()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "viewer config file (default configs/viewer.yaml)")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "viewer base URL (e.g. http://localhost:5000); reads the ledger directly when empty")
	root.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	root.AddCommand(newFetchCmd(opts))
	root.AddCommand(newHashCmd(opts))
	root.AddCommand(newCatalogCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the provenance CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "provenance %s\n", version)
		},
	})
	return root
}
