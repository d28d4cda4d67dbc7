// Package styles provides the lipgloss styles used by CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Style exports.
var (
	HeaderStyle  lipgloss.Style
	MutedStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style

	// Task status column styles.
	StatusPendingStyle   lipgloss.Style
	StatusPrincipalStyle lipgloss.Style
	StatusDoneStyle      lipgloss.Style

	// Urgency tier styles.
	TierCriticalStyle lipgloss.Style
	TierWarningStyle  lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	HeaderStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)

	StatusPendingStyle = lipgloss.NewStyle().Foreground(p.Foreground)
	StatusPrincipalStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	StatusDoneStyle = lipgloss.NewStyle().Foreground(p.Muted).Strikethrough(true)

	TierCriticalStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	TierWarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
}

// Status returns the style for a task status name.
func Status(status string) lipgloss.Style {
	switch status {
	case "principal":
		return StatusPrincipalStyle
	case "done":
		return StatusDoneStyle
	default:
		return StatusPendingStyle
	}
}

// Tier returns the style for an urgency tier name. Unknown tiers are muted.
func Tier(tier string) lipgloss.Style {
	switch tier {
	case "critical":
		return TierCriticalStyle
	case "warning":
		return TierWarningStyle
	default:
		return MutedStyle
	}
}

func init() {
	p, _ := GetPalette(DefaultTheme)
	SetTheme(p)
}
