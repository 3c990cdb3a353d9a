package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
)

func newHashCmd(root *rootOptions) *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "hash <stage> <location> <verification> <carbon-footprint> [additional-info]",
		Short: "Derive the content hash of a supply-chain stage",
		Long: `hash computes the Keccak-256 fingerprint shown next to a stage on the
verified page. Pass --expect to check it against a published hash.`,
		Args: cobra.RangeArgs(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := ledger.StageRecord{
				Stage:           args[0],
				Location:        args[1],
				Verification:    args[2],
				CarbonFootprint: args[3],
			}
			if len(args) == 5 {
				rec.AdditionalInfo = args[4]
			}
			entry := provenance.NewStageEntry(rec)

			w := cmd.OutOrStdout()
			if root.format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(entry); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(w, entry.ContentHash)
				if entry.HasRenewableEnergy() {
					fmt.Fprintf(w, "%s %s\n", pterm.Green("renewable:"), *entry.RenewableEnergyNote)
				}
			}

			if expect != "" && !provenance.VerifyStage(provenance.StageEntry{ContentHash: expect}, rec) {
				return fmt.Errorf("hash mismatch: expected %s, derived %s", expect, entry.ContentHash)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "Fail unless the derived hash equals this value")
	return cmd
}
