package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/ollagate/ollagate/theme"
)

var (
	Name        = "ollagate"
	Description = "OpenAI-compatible gateway for Ollama"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/ollagate/ollagate"
	GithubHomeUri   = "https://github.com/ollagate/ollagate"
	GithubLatestUri = "https://github.com/ollagate/ollagate/releases/latest"
)

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder

	b.WriteString(theme.ColourSplash(`
╔──────────────────────────────────────────────────────╗
│   ██████╗ ██╗     ██╗      █████╗  ██████╗  █████╗   │
│  ██╔═══██╗██║     ██║     ██╔══██╗██╔════╝ ██╔══██╗  │
│  ██║   ██║██║     ██║     ███████║██║  ███╗███████║  │
│  ██║   ██║██║     ██║     ██╔══██║██║   ██║██╔══██║  │
│  ╚██████╔╝███████╗███████╗██║  ██║╚██████╔╝██║  ██║  │
│   ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═╝  │` + "\n"))

	b.WriteString(theme.ColourSplash("│ "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString(" ")
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(theme.ColourSplash(strings.Repeat(" ", 18) + "│\n"))
	b.WriteString(theme.ColourSplash("╚──────────────────────────────────────────────────────╝"))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
