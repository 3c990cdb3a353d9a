// Package client is the Go SDK for the supply-chain provenance viewer API.
//
// # Fetching a product's provenance
//
//	c, err := client.New("http://localhost:5000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := c.Provenance(ctx, "organic-cotton-tshirt")
//	for _, s := range p.Stages {
//	    fmt.Println(s.Stage, s.Location, s.Hash)
//	}
//
// A failed lookup returns an *APIError carrying the HTTP status and the
// ledger query that failed:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Step == "stage" {
//	    fmt.Println("stage", apiErr.Index, "could not be read")
//	}
//
// # Checking a stage fingerprint
//
// HashStage asks the viewer for the content hash of a raw stage, which lets
// a third party confirm the hash shown next to a timeline entry:
//
//	h, _ := c.HashStage(ctx, client.StageInput{
//	    Stage:           "Manufacturing",
//	    Location:        "Vietnam",
//	    Verification:    "Fair Trade Certified",
//	    CarbonFootprint: "45.0 kg CO2",
//	    AdditionalInfo:  "Solar-powered factory",
//	})
//	fmt.Println(h.Hash)
package client
