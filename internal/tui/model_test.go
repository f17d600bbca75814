package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lazyload/internal/catalog"
	"github.com/Sternrassler/lazyload/pkg/feed"
	"github.com/Sternrassler/lazyload/pkg/loader"
	"github.com/Sternrassler/lazyload/pkg/surface"
)

func newTestModel(t *testing.T) (*Model[catalog.Item], *feed.Feed[catalog.Item], *surface.Region) {
	t.Helper()
	cat := catalog.New(catalog.Generate("item", 30), 15)
	src := loader.Sequence(func(ctx context.Context, page int, query string) ([]catalog.Item, error) {
		items, _ := cat.Page(page, query)
		return items, nil
	})
	first, _ := cat.Page(1, "")

	f := feed.New[catalog.Item](src, feed.Options[catalog.Item]{
		InitialItems: first,
		TotalPages:   2,
	})
	region := surface.NewRegion(surface.Options{
		MaxHeight: 10,
		Styles:    map[string]string{"border": "rounded"},
	})
	m := New(f, region, Options[catalog.Item]{
		Format: func(it catalog.Item) string { return it.Name },
	})
	t.Cleanup(func() {
		m.Close()
		f.Close()
	})
	return m, f, region
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_ResizeCapsViewport(t *testing.T) {
	m, _, region := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	assert.Equal(t, 10, m.viewport.Height)
	assert.Equal(t, 10, region.Metrics().ClientHeight)
	assert.Equal(t, 16, region.Metrics().ScrollHeight)

	view := m.View()
	assert.Contains(t, view, "item 1")
	assert.Contains(t, view, "page 1/2")
	assert.NotContains(t, view, "item 15")
}

func TestModel_ScrollKeysMoveRegion(t *testing.T) {
	m, _, region := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	m.Update(runes("j"))
	assert.Equal(t, 1, region.Metrics().ScrollTop)

	m.Update(runes("G"))
	assert.Equal(t, 6, region.Metrics().ScrollTop)

	m.Update(runes("g"))
	assert.Equal(t, 0, region.Metrics().ScrollTop)
}

func TestModel_SearchBoxFeedsDebouncer(t *testing.T) {
	m, f, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	m.Update(runes("/"))
	require.True(t, m.searching)
	m.Update(runes("ab"))
	assert.Equal(t, "ab", f.Snapshot().Search)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.searching)

	// Browsing keys no longer reach the search box.
	m.Update(runes("j"))
	assert.Equal(t, "ab", m.input.Value())
}

func TestModel_ChangedMsgRendersNewPage(t *testing.T) {
	m, f, region := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	_, err := f.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 31, region.Metrics().ScrollHeight)

	m.Update(changedMsg{})
	assert.Len(t, m.snap.DataList, 30)
	m.Update(runes("G"))
	assert.Contains(t, m.View(), "item 30")
	assert.Contains(t, m.View(), "end of results")
}

func TestModel_RetryKeyLoadsNextPage(t *testing.T) {
	m, f, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	_, cmd := m.Update(runes("r"))
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, nextPageMsg{}, msg)
	assert.NoError(t, msg.(nextPageMsg).err)
	assert.Equal(t, 2, f.Snapshot().Page)
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestStyleFromMap(t *testing.T) {
	s := StyleFromMap(map[string]string{
		"overflow": "auto",
		"border":   "rounded",
		"width":    "30px",
		"padding":  "2",
		"height":   "100%",
	})

	assert.Equal(t, lipgloss.RoundedBorder(), s.GetBorderStyle())
	assert.Equal(t, 30, s.GetWidth())
	assert.Equal(t, 2, s.GetPaddingLeft())
	assert.Equal(t, 0, s.GetPaddingTop())

	plain := StyleFromMap(map[string]string{"border": "wavy", "width": "wide"})
	assert.Equal(t, lipgloss.Border{}, plain.GetBorderStyle())
	assert.Equal(t, 0, plain.GetWidth())
}
