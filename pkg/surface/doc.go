/*
Package surface models the scrollable region a feed is rendered into.

A Region tracks scroll geometry (content height, viewport height, scroll
offset), emits scroll events to trigger.Attach and carries a Sentinel that
becomes visible when the end of the content enters the viewport:

	region := surface.NewRegion(surface.Options{MaxHeight: 20})
	region.SetViewportHeight(height)
	region.SetContentHeight(len(lines))
	region.ScrollBy(1)

StyleMap returns the container styles (overflow, height, max-height) with
caller overrides applied; Attrs are handed to the renderer as given.
*/
package surface
