/*
Package feed combines a loader, a pagination store, the scroll and
visibility triggers and the search debouncer into one infinitely scrolling,
searchable listing.

	src, err := loader.NewHTTPSource[Item](loader.DefaultConfig(baseURL), nil)
	if err != nil {
		return err
	}
	f := feed.New[Item](src, feed.Options[Item]{})
	defer f.Close()

	f.ObserveSentinel(region.Sentinel())
	f.Start("")
	unsub := f.Subscribe(func(s feed.Snapshot[Item]) {
		render(s.DataList, s.IsLoading)
	})
	defer unsub()

Triggers are re-armed from every store change: the scroll trigger when the
page or page count moves, the sentinel whenever the page, page count,
generation or enabled state changes. A triggered advance runs in the
background; NextPage runs one synchronously.
*/
package feed
