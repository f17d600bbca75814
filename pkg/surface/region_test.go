package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lazyload/pkg/trigger"
)

func TestRegion_StyleMap(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want map[string]string
	}{
		{
			name: "defaults",
			opts: Options{MaxHeight: 400},
			want: map[string]string{"overflow": "auto", "height": "100%", "max-height": "400px"},
		},
		{
			name: "no max height",
			opts: Options{},
			want: map[string]string{"overflow": "auto", "height": "100%"},
		},
		{
			name: "overrides win",
			opts: Options{MaxHeight: 400, Styles: map[string]string{"overflow": "hidden", "border": "rounded"}},
			want: map[string]string{"overflow": "hidden", "height": "100%", "max-height": "400px", "border": "rounded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegion(tt.opts)
			assert.Equal(t, tt.want, r.StyleMap())
		})
	}
}

func TestRegion_AttrsPassThrough(t *testing.T) {
	attrs := map[string]string{"id": "results", "data-kind": "items"}
	r := NewRegion(Options{Attrs: attrs})

	got := r.Attrs()
	assert.Equal(t, attrs, got)
	assert.Equal(t, []string{"data-kind", "id"}, r.AttrKeys())

	got["id"] = "changed"
	attrs["id"] = "changed"
	assert.Equal(t, "results", r.Attrs()["id"])
}

func TestRegion_ScrollToClampsAndEmits(t *testing.T) {
	r := NewRegion(Options{})
	r.SetContentHeight(1000)
	r.SetViewportHeight(500)

	var events []trigger.ScrollMetrics
	unsub := r.Subscribe(func(m trigger.ScrollMetrics) { events = append(events, m) })

	r.ScrollTo(480)
	r.ScrollTo(480)
	r.ScrollTo(2000)
	r.ScrollTo(-5)

	require.Len(t, events, 3)
	assert.Equal(t, trigger.ScrollMetrics{ScrollHeight: 1000, ScrollTop: 480, ClientHeight: 500}, events[0])
	assert.Equal(t, 500, events[1].ScrollTop)
	assert.Equal(t, 0, events[2].ScrollTop)

	unsub()
	r.ScrollBy(100)
	assert.Len(t, events, 3)
	assert.Equal(t, 100, r.Metrics().ScrollTop)
}

func TestRegion_ViewportCappedByMaxHeight(t *testing.T) {
	r := NewRegion(Options{MaxHeight: 20})
	r.SetViewportHeight(50)
	assert.Equal(t, 20, r.Metrics().ClientHeight)
	assert.Equal(t, 20, r.MaxHeight())
}

func TestRegion_ShrinkingContentClampsScrollTop(t *testing.T) {
	r := NewRegion(Options{})
	r.SetViewportHeight(10)
	r.SetContentHeight(100)
	r.ScrollTo(90)

	r.SetContentHeight(30)
	assert.Equal(t, 20, r.Metrics().ScrollTop)
}

func TestRegion_DrivesScrollAttachment(t *testing.T) {
	r := NewRegion(Options{})
	r.SetViewportHeight(500)
	r.SetContentHeight(1000)

	var reached []int
	att := trigger.Attach(r, func(next int) { reached = append(reached, next) },
		trigger.ScrollOptions{Page: 1, PageCount: 3})
	defer att.Detach()

	r.ScrollTo(470)
	assert.Empty(t, reached)

	r.ScrollTo(480)
	assert.Equal(t, []int{2}, reached)
}

func TestSentinel_FollowsScrollPosition(t *testing.T) {
	r := NewRegion(Options{})
	r.SetViewportHeight(10)
	r.SetContentHeight(30)

	var seen []bool
	unsub := r.Sentinel().Subscribe(func(v bool) { seen = append(seen, v) })
	defer unsub()

	r.ScrollTo(10)
	r.ScrollTo(20)
	r.ScrollTo(20)
	r.SetContentHeight(60)

	assert.Equal(t, []bool{false, true, false}, seen)
	assert.False(t, r.Sentinel().Visible())
}

func TestSentinel_VisibleWhenContentFits(t *testing.T) {
	r := NewRegion(Options{})
	r.SetViewportHeight(10)
	r.SetContentHeight(4)

	var seen []bool
	r.Sentinel().Subscribe(func(v bool) { seen = append(seen, v) })
	assert.Equal(t, []bool{true}, seen)
}

func TestSentinel_Margin(t *testing.T) {
	r := NewRegion(Options{SentinelMargin: 3})
	r.SetViewportHeight(10)
	r.SetContentHeight(30)

	r.ScrollTo(16)
	assert.False(t, r.Sentinel().Visible())
	r.ScrollTo(17)
	assert.True(t, r.Sentinel().Visible())
}

func TestSentinel_DrivesObserve(t *testing.T) {
	r := NewRegion(Options{})
	r.SetViewportHeight(10)
	r.SetContentHeight(30)

	fired := 0
	reg := trigger.Observe(r.Sentinel(), func() { fired++ }, false)

	r.ScrollTo(20)
	r.ScrollTo(0)
	r.ScrollTo(20)

	assert.Equal(t, 1, fired)
	assert.True(t, reg.Done())
}
