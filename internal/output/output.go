// Package output provides terminal output formatting helpers.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

// Color helpers
var (
	Red     = color.New(color.FgRed, color.Bold)
	Green   = color.New(color.FgGreen, color.Bold)
	Yellow  = color.New(color.FgYellow, color.Bold)
	Blue    = color.New(color.FgBlue, color.Bold)
	Cyan    = color.New(color.FgCyan, color.Bold)
	Magenta = color.New(color.FgMagenta)
	Dim     = color.New(color.Faint)
)

// Lip Gloss styles for enhanced terminal output
var (
	// Card style for bundle summaries
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2).
			MarginTop(1)

	// Title style for bundle names
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	// Subtle text style
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okBadge = lipgloss.NewStyle().
			Background(lipgloss.Color("28")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			MarginRight(1)

	warnBadge = lipgloss.NewStyle().
			Background(lipgloss.Color("214")).
			Foreground(lipgloss.Color("232")).
			Padding(0, 1).
			MarginRight(1)

	failBadge = lipgloss.NewStyle().
			Background(lipgloss.Color("160")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			MarginRight(1)
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 96

// Error prints an error message to stderr.
func Error(format string, args ...interface{}) {
	Red.Fprint(os.Stderr, "Error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	Green.Printf(format+"\n", args...)
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	Yellow.Print("Warning: ")
	fmt.Printf(format+"\n", args...)
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	Blue.Print("Info: ")
	fmt.Printf(format+"\n", args...)
}

// JSON prints data as formatted JSON.
func JSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(data)
}

// Table creates and returns a configured table writer.
func Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("  ")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// TableWithTitle creates a table with a title.
func TableWithTitle(title string, headers []string) *tablewriter.Table {
	fmt.Printf("%s\n", title)
	fmt.Println()
	return Table(headers)
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the stdout width, or a default when unknown.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// KindColor returns a color for a policy kind.
func KindColor(kind string) *color.Color {
	switch strings.ToLower(kind) {
	case "javascript", "javacallout", "pythonscript":
		return Magenta
	case "assignmessage", "extractvariables":
		return Blue
	case "quota", "spikearrest", "verifyapikey", "oauthv2":
		return Yellow
	default:
		return color.New(color.FgWhite)
	}
}

// gridLayout returns the column count and cell width for names printed ls-style.
func gridLayout(names []string, width int) (columns, cellWidth int) {
	longest := 1
	for _, n := range names {
		if w := lipgloss.Width(n); w > longest {
			longest = w
		}
	}
	cellWidth = longest + 2
	columns = width / cellWidth
	if columns < 1 {
		columns = 1
	}
	return columns, cellWidth
}

// PrintGrid prints names in a grid layout like Unix ls, coloured per name.
func PrintGrid(names []string, colorFor func(string) *color.Color) {
	columns, cellWidth := gridLayout(names, TerminalWidth())
	for i, name := range names {
		c := colorFor(name)
		fmt.Print(c.Sprint(name) + strings.Repeat(" ", cellWidth-lipgloss.Width(name)))
		if (i+1)%columns == 0 {
			fmt.Println()
		}
	}
	if len(names)%columns != 0 {
		fmt.Println()
	}
}

// Badge renders a status badge.
func Badge(status string) string {
	switch status {
	case "ok":
		return okBadge.Render("ok")
	case "findings":
		return warnBadge.Render("findings")
	case "failed":
		return failBadge.Render("failed")
	default:
		return status
	}
}

// BundleCard holds the values shown in a bundle summary card.
type BundleCard struct {
	Name       string
	Status     string
	Lines      []string
	Subtitle   string
	ErrorLines []string
}

// PrintCard prints a bordered summary card for one bundle.
func PrintCard(card BundleCard) {
	var content strings.Builder

	content.WriteString(titleStyle.Render(card.Name))
	content.WriteString("  ")
	content.WriteString(Badge(card.Status))
	content.WriteString("\n")

	if card.Subtitle != "" {
		content.WriteString(subtleStyle.Render(card.Subtitle))
		content.WriteString("\n")
	}
	for _, line := range card.Lines {
		content.WriteString("\n" + line)
	}
	for _, line := range card.ErrorLines {
		content.WriteString("\n" + Red.Sprint(line))
	}

	fmt.Println(cardStyle.Render(content.String()))
}

// RenderMarkdown prints markdown rendered for the terminal, falling back to
// the raw text when rendering fails.
func RenderMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Println(md)
		return
	}

	rendered, err := renderer.Render(md)
	if err != nil {
		fmt.Println(md)
		return
	}

	fmt.Print(rendered)
}

// ConfigValue represents a config key-value pair for display.
type ConfigValue struct {
	Key   string
	Value string
}

// PrintConfigTable prints configuration as a table.
func PrintConfigTable(values []ConfigValue) {
	table := TableWithTitle("Configuration", []string{"Key", "Value"})

	for _, v := range values {
		table.Append([]string{v.Key, v.Value})
	}

	table.Render()
}

// Truncate truncates a string to maxLen, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// Bytes formats a byte count for display.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
