package main

import (
	"github.com/pterm/pterm"

	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
)

type bannerInfo struct {
	Mode      string
	Connected bool
	Contract  string
	Explorer  string
	Port      int
	Product   string
}

// printBanner shows the connection state on the console at startup.
func printBanner(b bannerInfo) {
	pterm.DefaultHeader.WithFullWidth().Println("Supply-chain provenance viewer")

	switch {
	case b.Mode == config.ModeMemory:
		pterm.Info.Println("Serving the built-in demo ledger (memory mode)")
	case b.Connected:
		pterm.Success.Println("Connected to the ledger RPC endpoint")
	default:
		pterm.Error.Println("Not connected to the ledger RPC endpoint")
		pterm.Info.Println("Check ledger.rpc_url (INFURA_URL) and your network connection")
	}

	if b.Mode != config.ModeMemory {
		pterm.Info.Printfln("Reading from contract: %s", b.Contract)
	}
	if b.Explorer != "" {
		pterm.Info.Printfln("View on block explorer: %s", b.Explorer)
	}
	pterm.Info.Printfln("Listening on http://localhost:%d (redirects to /version-b/%s)", b.Port, b.Product)
	pterm.Println()
}
