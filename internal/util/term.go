package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ShouldUseColors decides whether console output gets colour. NO_COLOR wins,
// then FORCE_COLOR, then the gateway's own override, then the TTY check.
// See https://no-color.org/.
func ShouldUseColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force := os.Getenv("FORCE_COLOR"); force != "" {
		return force != "0"
	}
	if gate := os.Getenv("OLLAGATE_FORCE_COLORS"); gate != "" {
		return strings.EqualFold(gate, "true")
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}
