package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
	"github.com/jmerrifield20/SupplyChainLedger/pkg/client"
)

func newCatalogCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the garments known to the viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			garments, err := loadGarments(cmd.Context(), root, file)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if root.format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(garments)
			}

			data := pterm.TableData{{"ID", "Name", "Price", "Claims"}}
			for _, g := range garments {
				data = append(data, []string{g.ID, g.Name, g.Price, strconv.Itoa(len(g.ESGClaims))})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, table)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog file (default catalog.file, then the built-in catalog)")
	return cmd
}

// loadGarments reads the catalog from a remote viewer, a YAML file, or the
// built-in defaults.
func loadGarments(ctx context.Context, root *rootOptions, file string) ([]client.Garment, error) {
	if root.serverURL != "" {
		c, err := client.New(root.serverURL, client.WithTimeout(30*time.Second))
		if err != nil {
			return nil, err
		}
		return c.Catalog(ctx)
	}

	if file == "" {
		v := config.New()
		if root.cfgFile != "" {
			v.SetConfigFile(root.cfgFile)
		}
		_ = v.ReadInConfig()
		file = v.GetString("catalog.file")
	}

	var store catalog.Store = catalog.NewMemoryStore(catalog.Defaults()...)
	if file != "" {
		s, err := catalog.LoadFile(file)
		if err != nil {
			return nil, err
		}
		store = s
	}

	items, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]client.Garment, len(items))
	for i, g := range items {
		out[i] = client.Garment{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Image:       g.Image,
			Price:       g.Price,
			ESGClaims:   g.ESGClaims,
		}
	}
	return out, nil
}
