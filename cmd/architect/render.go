package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"architect/internal/advisor"
	"architect/internal/results"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBanner = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("10"))

	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// markdownRenderer falls back to raw text when glamour cannot be set up.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w-4, 120)
	}
	style := glamour.WithStandardStyle("dark")
	if !isTTY() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

func (m *markdownRenderer) Render(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// roadmapMarkdown lays out the match and curriculum.
func roadmapMarkdown(view results.View) string {
	var b strings.Builder
	name := view.FirstName
	if name == "" {
		name = "Your"
	} else {
		name += "'s"
	}
	fmt.Fprintf(&b, "# %s career architecture\n\n", name)
	fmt.Fprintf(&b, "**Programme:** %s  \n**Focus area:** %s\n\n", view.Program, orDash(view.FocusArea))

	rm := view.Roadmap
	if rm == nil {
		if view.Loading.Roadmap {
			b.WriteString("_Building your roadmap..._\n")
		} else {
			b.WriteString("_No roadmap yet._\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "## Top match: %s", rm.TopRole.Title)
	if rm.TopRole.MatchPercentage > 0 {
		fmt.Fprintf(&b, " (%.0f%%)", rm.TopRole.MatchPercentage)
	}
	b.WriteString("\n\n")
	if rm.TopRole.Description != "" {
		b.WriteString(rm.TopRole.Description + "\n\n")
	}
	if rm.TopRole.PersonalityNotes != "" {
		b.WriteString("> " + rm.TopRole.PersonalityNotes + "\n\n")
	}
	if len(rm.Top5Roles) > 0 {
		b.WriteString("### Other strong fits\n\n")
		for _, role := range rm.Top5Roles {
			fmt.Fprintf(&b, "- %s", role.Title)
			if role.Percentage > 0 {
				fmt.Fprintf(&b, " (%.0f%%)", role.Percentage)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Roadmap\n\n")
	writeYear(&b, "Year 1", rm.Roadmap.Year1)
	writeYear(&b, "Year 2", rm.Roadmap.Year2)
	writeYear(&b, "Year 3", rm.Roadmap.Year3)
	return b.String()
}

func writeYear(b *strings.Builder, title string, year advisor.Year) {
	fmt.Fprintf(b, "### %s\n\n", title)
	if year.MandatoryMajor != "" {
		fmt.Fprintf(b, "- **Major:** %s\n", year.MandatoryMajor)
	}
	if year.ContinuedMajor != "" {
		fmt.Fprintf(b, "- **Continued major:** %s\n", year.ContinuedMajor)
	}
	if len(year.Semester1) > 0 {
		fmt.Fprintf(b, "- **Semester 1:** %s\n", year.Semester1)
	}
	if len(year.Semester2) > 0 {
		fmt.Fprintf(b, "- **Semester 2:** %s\n", year.Semester2)
	}
	b.WriteString("\n")
}

func pivotMarkdown(p *advisor.PivotResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Career pivot (feasibility %.0f%%)\n\n", p.FeasibilityScore)
	fmt.Fprintf(&b, "**Gap analysis:** %s\n\n**Richfield bridge:** %s\n", p.GapAnalysis, p.RichfieldBridge)
	if p.MarketReality != "" {
		fmt.Fprintf(&b, "\n**Market reality:** %s\n", p.MarketReality)
	}
	return b.String()
}

func postgradMarkdown(p *advisor.PostgradResult) string {
	return fmt.Sprintf("## Postgraduate outlook\n\n**Career multiplier:** %s\n\n**Focus areas:** %s\n\n%s\n",
		p.CareerMultiplier, p.FocusAreas, p.ComparisonNote)
}

// chatMarkdown renders only the turns after skip.
func chatMarkdown(turns []results.ChatTurn, skip int) string {
	var b strings.Builder
	for i := skip; i < len(turns); i++ {
		turn := turns[i]
		if turn.Role == results.RoleUser {
			fmt.Fprintf(&b, "**You:** %s\n\n", turn.Text)
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", turn.Text)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
