package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle is used for table headers in command output.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// IDStyle renders backup ids.
var IDStyle = lipgloss.NewStyle().Foreground(ColorBlue)

// MutedStyle renders secondary columns such as relative times.
var MutedStyle = lipgloss.NewStyle().Foreground(ColorGray)

// HintStyle is used for follow-up hints printed after a command.
var HintStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// SuccessStyle marks a completed action.
var SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)

// ErrorStyle marks a failed action.
var ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

// LoadStateStyle returns a color-coded style for a sync domain load state
// as rendered by State.String.
func LoadStateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch state {
	case "loaded":
		return base.Foreground(ColorGreen)
	case "loading":
		return base.Foreground(ColorYellow)
	case "error":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// Pad renders s in style and right-pads it to width visible cells.
func Pad(style lipgloss.Style, s string, width int) string {
	return style.Width(width).Render(s)
}
