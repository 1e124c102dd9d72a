// Package enrich expands search candidates into full place records with a
// bounded worker pool.
//
// Each candidate is fetched independently. A failed or timed-out fetch
// degrades that one item to a record built from the candidate's own fields;
// it never fails the batch. Output order always equals input order.
//
// Example:
//
//	enricher := enrich.New(placesClient, enrich.DefaultConfig())
//	result := enricher.Enrich(ctx, candidates)
//	for _, d := range result.Details {
//	    fmt.Println(d.Name, d.WebsiteURI)
//	}
package enrich
