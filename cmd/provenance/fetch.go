package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
	"github.com/jmerrifield20/SupplyChainLedger/pkg/client"
)

// fetchRow holds the outcome of a single product lookup.
type fetchRow struct {
	productID string
	result    *client.Provenance
	err       error
}

type fetchOptions struct {
	*rootOptions
	demo    bool
	timeout time.Duration
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "fetch <product-id> [product-id] ...",
		Short: "Fetch and display the supply-chain provenance of one or more products",
		Long: `fetch aggregates the product header and every recorded stage, derives each
stage's content hash and prints the timeline.

Multiple products are fetched concurrently and printed in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Read from the built-in demo ledger instead of the network")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-product timeout (default ledger.call_timeout)")
	return cmd
}

// lookupFunc fetches one product's provenance.
type lookupFunc func(ctx context.Context, productID string) (*client.Provenance, error)

func runFetch(ctx context.Context, w io.Writer, opts *fetchOptions, productIDs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lookup, timeout, closeFn, err := newLookup(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	rows := make([]fetchRow, len(productIDs))
	var wg sync.WaitGroup
	for i, id := range productIDs {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := lookup(callCtx, id)
			rows[i] = fetchRow{productID: id, result: res, err: err}
		}()
	}
	wg.Wait()

	if opts.format == "json" {
		return printFetchJSON(w, rows)
	}
	return printFetchText(w, rows)
}

// newLookup picks the data source: a remote viewer, the demo ledger, or the
// ledger contract named in the viewer configuration.
func newLookup(ctx context.Context, opts *fetchOptions) (lookupFunc, time.Duration, func(), error) {
	timeout := opts.timeout
	if opts.serverURL != "" {
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		c, err := client.New(opts.serverURL, client.WithTimeout(timeout))
		if err != nil {
			return nil, 0, nil, err
		}
		return c.Provenance, timeout, func() {}, nil
	}

	if opts.demo {
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		agg := provenance.NewAggregator(ledger.Demo(), memorySourceID, zap.NewNop())
		return aggregateLookup(agg), timeout, func() {}, nil
	}

	cfg, _, err := config.Load(config.New(), opts.cfgFile)
	if err != nil {
		return nil, 0, nil, err
	}
	if timeout == 0 {
		timeout = cfg.Ledger.CallTimeout
	}
	if cfg.Ledger.Mode == config.ModeMemory {
		agg := provenance.NewAggregator(ledger.Demo(), memorySourceID, zap.NewNop())
		return aggregateLookup(agg), timeout, func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Ledger.CallTimeout)
	defer cancel()
	cc, eth, err := ledger.Dial(dialCtx, cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress)
	if err != nil {
		return nil, 0, nil, err
	}
	agg := provenance.NewAggregator(cc, cc.Address(), zap.NewNop(),
		provenance.WithParallelStages(cfg.Ledger.ParallelStages))
	return aggregateLookup(agg), timeout, eth.Close, nil
}

const memorySourceID = "memory"

func aggregateLookup(agg *provenance.Aggregator) lookupFunc {
	return func(ctx context.Context, productID string) (*client.Provenance, error) {
		res, err := agg.Aggregate(ctx, productID)
		if err != nil {
			if hint := provenance.Hints(err); hint != "" {
				return nil, fmt.Errorf("%w\nhint: %s", err, hint)
			}
			return nil, err
		}
		return fromAggregated(res), nil
	}
}

func fromAggregated(r *provenance.AggregatedResult) *client.Provenance {
	p := &client.Provenance{
		TransactionHash: r.ShortenedSourceID,
		Timestamp:       r.FormattedTimestamp,
		Stages:          make([]client.Stage, len(r.Stages)),
		TotalCarbon:     r.TotalCarbon,
		CarbonOffset:    r.CarbonOffset,
	}
	for i, s := range r.Stages {
		p.Stages[i] = client.Stage{
			Stage:           s.Stage,
			Location:        s.Location,
			Verification:    s.Verification,
			CarbonFootprint: s.CarbonFootprint,
			Hash:            s.ContentHash,
			RenewableEnergy: s.RenewableEnergyNote,
		}
	}
	return p
}

func printFetchJSON(w io.Writer, rows []fetchRow) error {
	type jsonRow struct {
		ProductID string `json:"product_id"`
		*client.Provenance
		Error string `json:"error,omitempty"`
	}
	out := make([]jsonRow, len(rows))
	var failed error
	for i, r := range rows {
		out[i] = jsonRow{ProductID: r.productID, Provenance: r.result}
		if r.err != nil {
			out[i].Error = r.err.Error()
			failed = fmt.Errorf("%d of %d lookups failed", countFailed(rows), len(rows))
		}
	}
	// Single result: unwrap from array for convenience.
	var v any = out
	if len(out) == 1 {
		v = out[0]
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return failed
}

func printFetchText(w io.Writer, rows []fetchRow) error {
	for i, r := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, pterm.LightCyan(r.productID))
		if r.err != nil {
			fmt.Fprintf(w, "%s %v\n", pterm.Red("error:"), r.err)
			continue
		}
		p := r.result
		fmt.Fprintf(w, "Ledger record: %s\n", p.TransactionHash)
		fmt.Fprintf(w, "Recorded:      %s\n", p.Timestamp)

		if len(p.Stages) == 0 {
			fmt.Fprintln(w, "No stages recorded.")
		} else {
			data := pterm.TableData{{"#", "Stage", "Location", "Verification", "Carbon", "Renewable", "Hash"}}
			for j, s := range p.Stages {
				renewable := ""
				if s.RenewableEnergy != nil {
					renewable = *s.RenewableEnergy
				}
				data = append(data, []string{
					strconv.Itoa(j + 1), s.Stage, s.Location, s.Verification, s.CarbonFootprint, renewable, s.Hash,
				})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, table)
		}
		fmt.Fprintf(w, "Total carbon:  %s\n", p.TotalCarbon)
		fmt.Fprintf(w, "Carbon offset: %s\n", p.CarbonOffset)
	}
	if n := countFailed(rows); n > 0 {
		return fmt.Errorf("%d of %d lookups failed", n, len(rows))
	}
	return nil
}

func countFailed(rows []fetchRow) int {
	n := 0
	for _, r := range rows {
		if r.err != nil {
			n++
		}
	}
	return n
}
