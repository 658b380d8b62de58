// Package workbench provides the public API for the Expel Workbench client.
//
// The Workbench API is JSON:API shaped: every record is a resource document
// with a type, an id, attributes, and relationships. Rather than hand-writing
// one struct per resource type, this package maps resources through a
// descriptor registry: each resource type is described once (attributes,
// relationships, read-only fields) and records are handled as dynamic
// Instance values validated against their descriptor.
//
// Typical usage goes through pkg/exclient to construct an authenticated
// client, then through the per-type resource accessors:
//
//	client, err := exclient.New(ctx, &workbench.Config{
//		APIEndpoint: "https://workbench.expel.io",
//		APIKey:      os.Getenv("WORKBENCH_API_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cursor := client.Investigations().Search(
//		workbench.Where("status", "OPEN"),
//		workbench.Where("created_at", workbench.Gt(since)),
//		workbench.Limit(50),
//	)
//	for {
//		inv, err := cursor.Next(ctx)
//		if errors.Is(err, workbench.ErrNoMoreItems) {
//			break
//		}
//		...
//	}
//
// Search filters serialize to the Workbench query-string contract
// (filter[attr]=value with operator sigils, flag[...], page[limit], sort,
// include). Serialization is deterministic: the same filters always produce
// a byte-identical query string.
package workbench
