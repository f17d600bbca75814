package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StyleFromMap builds the container style from a region style map.
//
// Recognized keys: width and padding ("<n>" or "<n>px", in cells), border
// (normal, rounded, thick, double, hidden), border-color, color and
// background. max-height is applied to the viewport through the region;
// overflow and height have no terminal equivalent and are ignored.
func StyleFromMap(styles map[string]string) lipgloss.Style {
	s := lipgloss.NewStyle()
	for k, v := range styles {
		switch strings.ToLower(k) {
		case "width":
			if n, ok := cells(v); ok {
				s = s.Width(n)
			}
		case "padding":
			if n, ok := cells(v); ok {
				s = s.Padding(0, n)
			}
		case "border":
			if b, ok := border(v); ok {
				s = s.Border(b)
			}
		case "border-color":
			s = s.BorderForeground(lipgloss.Color(v))
		case "color":
			s = s.Foreground(lipgloss.Color(v))
		case "background":
			s = s.Background(lipgloss.Color(v))
		}
	}
	return s
}

func cells(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func border(name string) (lipgloss.Border, bool) {
	switch strings.ToLower(name) {
	case "normal":
		return lipgloss.NormalBorder(), true
	case "rounded":
		return lipgloss.RoundedBorder(), true
	case "thick":
		return lipgloss.ThickBorder(), true
	case "double":
		return lipgloss.DoubleBorder(), true
	case "hidden":
		return lipgloss.HiddenBorder(), true
	default:
		return lipgloss.Border{}, false
	}
}

var (
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	footerStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)
