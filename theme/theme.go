// Package theme holds the console colour palettes. Only the handful of
// styles the gateway's log surface actually renders are kept.
package theme

import (
	"github.com/pterm/pterm"
)

// Theme is the colour scheme for console output.
type Theme struct {
	// slog key styling
	Info  *pterm.Style
	Muted *pterm.Style

	// inline accents used by the styled logger
	Secondary pterm.Color
	Danger    pterm.Color
	Good      pterm.Color
}

func Default() *Theme {
	return &Theme{
		Info:      pterm.NewStyle(pterm.FgGreen),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Secondary: pterm.FgCyan,
		Danger:    pterm.FgRed,
		Good:      pterm.FgGreen,
	}
}

func Dark() *Theme {
	return &Theme{
		Info:      pterm.NewStyle(pterm.FgLightGreen),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Secondary: pterm.FgLightCyan,
		Danger:    pterm.FgLightRed,
		Good:      pterm.FgLightGreen,
	}
}

func Light() *Theme {
	return &Theme{
		Info:      pterm.NewStyle(pterm.FgBlack),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Secondary: pterm.FgCyan,
		Danger:    pterm.FgRed,
		Good:      pterm.FgGreen,
	}
}

// GetTheme maps a configured theme name to its palette, defaulting on
// anything unrecognised.
func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	case "light":
		return Light()
	default:
		return Default()
	}
}

// ColourSplash styles the startup banner.
func ColourSplash(message ...any) string {
	return pterm.LightCyan(message...)
}

// ColourVersion styles version numbers in the banner.
func ColourVersion(message ...any) string {
	return pterm.LightYellow(message...)
}

// StyleUrl styles URLs and hyperlinks.
func StyleUrl(message ...any) string {
	return pterm.LightBlue(message...)
}

// Hyperlink emits an OSC 8 terminal hyperlink.
func Hyperlink(uri string, text string) string {
	return "\x1b]8;;" + uri + "\x07" + text + "\x1b]8;;\x07" + "\x1b[0m"
}
