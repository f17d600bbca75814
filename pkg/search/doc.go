// Package search debounces search term edits into store resets.
//
// Every OnTermChange restarts a quiet period. When it elapses without a
// further edit the debouncer loads page 1 for the last term and resets the
// target store with the result:
//
//	d := search.NewDebouncer[Item](search.StoreTarget(store), func(ctx context.Context, page int, q string) ([]Item, int, error) {
//		res, err := src.Load(ctx, loader.Request{Page: page, Query: q})
//		return res.Items, res.TotalPages, err
//	}, search.Options{Quiet: 300 * time.Millisecond})
//	defer d.Close()
//
//	d.OnTermChange("a")
//	d.OnTermChange("ab") // only "ab" is loaded
//
// A load for an older term is cancelled when a newer edit arrives, and its
// result is never committed.
package search
