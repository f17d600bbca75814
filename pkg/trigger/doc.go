// Package trigger decides when a view should request its next page.
//
// Two triggers are provided:
//
//   - VisibilityTrigger watches a Sentinel placed after the last item and
//     fires once when it becomes visible (edge-triggered).
//   - ScrollTrigger watches a Container and fires once when the distance to
//     the bottom drops below a tolerance.
//
// Both work from a snapshot taken when they are armed. Callers re-arm them
// after every commit so the snapshot follows the store:
//
//	st := trigger.NewScrollTrigger(region, func(next int) {
//		store.Advance(ctx, load)
//	}, logger)
//	store.Subscribe(func(s pagination.State[Item]) {
//		st.Arm(trigger.ScrollOptions{Page: s.Page, PageCount: s.TotalPages})
//	})
//
// Cancellation is synchronous: after Stop, Detach or Close returns no
// callback of that registration runs.
package trigger
