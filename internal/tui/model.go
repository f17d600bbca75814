// Package tui renders a feed in the terminal with Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/pkg/feed"
	"github.com/Sternrassler/lazyload/pkg/pagination"
	"github.com/Sternrassler/lazyload/pkg/surface"
)

// Options configures a Model.
type Options[T any] struct {
	// Format renders one item on one line (default fmt.Sprint).
	Format func(T) string

	// Placeholder of the search box.
	Placeholder string

	// InitialSearch pre-fills the search box.
	InitialSearch string

	Logger *zerolog.Logger
}

type changedMsg struct{}

type nextPageMsg struct {
	outcome pagination.Outcome
	err     error
}

// Model is the Bubble Tea model of the feed browser. The viewport is the
// scroll container; its geometry is mirrored into a surface.Region so the
// feed's triggers see it.
type Model[T any] struct {
	feed      *feed.Feed[T]
	region    *surface.Region
	format    func(T) string
	container lipgloss.Style
	logger    zerolog.Logger

	viewport  viewport.Model
	input     textinput.Model
	searching bool

	snap    feed.Snapshot[T]
	updates chan struct{}
	done    chan struct{}
	unsub   func()

	width, height int
	ready         bool
}

// New creates the model. Close releases the feed subscription.
func New[T any](f *feed.Feed[T], region *surface.Region, opts Options[T]) *Model[T] {
	if opts.Format == nil {
		opts.Format = func(v T) string { return fmt.Sprint(v) }
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "tui").Logger()
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = opts.Placeholder
	input.SetValue(opts.InitialSearch)

	m := &Model[T]{
		feed:      f,
		region:    region,
		format:    opts.Format,
		container: StyleFromMap(region.StyleMap()),
		logger:    logger,
		viewport:  viewport.New(0, 0),
		input:     input,
		snap:      f.Snapshot(),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	region.SetContentHeight(contentHeight(m.snap))

	m.unsub = f.Subscribe(func(s feed.Snapshot[T]) {
		// Geometry first: the feed re-arms its triggers right after.
		region.SetContentHeight(contentHeight(s))
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})
	return m
}

// Close stops listening to the feed.
func (m *Model[T]) Close() {
	select {
	case <-m.done:
		return
	default:
	}
	m.unsub()
	close(m.done)
}

// Init implements tea.Model.
func (m *Model[T]) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// Update implements tea.Model.
func (m *Model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.ready = true
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case nextPageMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Msg("Manual page load failed")
		} else {
			m.logger.Debug().Str("outcome", msg.outcome.String()).Msg("Manual page load finished")
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.syncScroll()
		return m, cmd
	}
	return m, nil
}

func (m *Model[T]) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
		m.input.Blur()
		return m, nil
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != prev {
		m.feed.Search(v)
	}
	return m, cmd
}

func (m *Model[T]) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, m.input.Focus()
	case "r":
		return m, m.nextPage()
	case "g", "home":
		m.viewport.GotoTop()
		m.syncScroll()
		return m, nil
	case "G", "end":
		m.viewport.GotoBottom()
		m.syncScroll()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.syncScroll()
	return m, cmd
}

// View implements tea.Model.
func (m *Model[T]) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.input.View(),
		m.container.Render(m.viewport.View()),
		m.status(),
	)
}

func (m *Model[T]) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return changedMsg{}
		case <-m.done:
			return nil
		}
	}
}

func (m *Model[T]) nextPage() tea.Cmd {
	return func() tea.Msg {
		outcome, err := m.feed.NextPage(context.Background())
		return nextPageMsg{outcome: outcome, err: err}
	}
}

// resize fits the viewport between the search box and the status line.
func (m *Model[T]) resize() {
	avail := m.height - 2 - m.container.GetVerticalFrameSize()
	m.region.SetViewportHeight(max(avail, 1))
	m.viewport.Height = m.region.Metrics().ClientHeight
	m.viewport.Width = max(m.width-m.container.GetHorizontalFrameSize(), 1)
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
}

// refresh re-renders the content and restores the region's scroll offset,
// which a trigger may have moved.
func (m *Model[T]) refresh() {
	m.snap = m.feed.Snapshot()
	lines := m.lines()
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.region.SetContentHeight(len(lines))
	m.viewport.SetYOffset(m.region.Metrics().ScrollTop)
}

func (m *Model[T]) syncScroll() {
	m.region.ScrollTo(m.viewport.YOffset)
}

// lines renders one line per item plus the footer line. contentHeight
// must agree with it.
func (m *Model[T]) lines() []string {
	clip := lipgloss.NewStyle().MaxWidth(max(m.viewport.Width, 1))
	out := make([]string, 0, len(m.snap.DataList)+1)
	for _, item := range m.snap.DataList {
		line := strings.ReplaceAll(m.format(item), "\n", " ")
		out = append(out, clip.Render(line))
	}
	return append(out, clip.Render(m.footer()))
}

func contentHeight[T any](s feed.Snapshot[T]) int {
	return len(s.DataList) + 1
}

func (m *Model[T]) footer() string {
	switch {
	case m.snap.IsLoading:
		return footerStyle.Render("loading...")
	case m.snap.LastError != nil:
		return errorStyle.Render("load failed, press r to retry")
	case m.snap.HasMore():
		return footerStyle.Render("more below")
	case len(m.snap.DataList) == 0:
		return footerStyle.Render("no results")
	default:
		return footerStyle.Render("end of results")
	}
}

func (m *Model[T]) status() string {
	parts := []string{
		fmt.Sprintf("page %d/%d", m.snap.Page, m.snap.TotalPages),
		fmt.Sprintf("%d items", len(m.snap.DataList)),
	}
	if m.snap.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.snap.Search))
	}
	line := statusStyle.Render(strings.Join(parts, "  "))
	if m.snap.LastError != nil {
		line += "  " + errorStyle.Render(m.snap.LastError.Error())
	}
	return line
}
