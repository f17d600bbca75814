// Package pagination provides the page store behind incrementally loaded views.
//
// A Store holds the committed pages of one view, the current page, the page
// count and a loading flag. Advance requests the next page through a
// LoadFunc and commits it; Reset replaces everything with a fresh page 1
// (used when the search query changes).
//
// Example usage:
//
//	store := pagination.NewStore(pagination.Options[Item]{
//		InitialItems: firstPage,
//		TotalPages:   3,
//	})
//	outcome, err := store.Advance(ctx, func(ctx context.Context, page int) ([]Item, error) {
//		return fetchItems(ctx, page)
//	})
//
// The store guarantees:
//   - At most one Advance load in flight (later calls return OutcomeSuppressed)
//   - No request past TotalPages (OutcomeOutOfRange)
//   - Gapless pages 1..Page, the derived Items list is their concatenation
//   - Failures leave pages untouched and are exposed through LastError
//   - Loads that complete after a Reset are discarded (OutcomeStale)
package pagination
