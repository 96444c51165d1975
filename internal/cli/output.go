// Package cli provides the command-line interface for the tariff tracker.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Format is an output format selected with --format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, yaml or csv)", s)
	}
}

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	errWriter    io.Writer
	format       Format
	colorEnabled bool
}

// NewOutput creates a new Output instance. --json wins over --format.
func NewOutput(cmd *cobra.Command) *Output {
	format := FormatTable
	if s, err := cmd.Flags().GetString("format"); err == nil {
		if f, err := ParseFormat(s); err == nil {
			format = f
		}
	}
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		format = FormatJSON
	}
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		errWriter:    cmd.ErrOrStderr(),
		format:       format,
		colorEnabled: format == FormatTable && !color.NoColor && w == os.Stdout,
	}
}

// Format returns the selected output format.
func (o *Output) Format() Format {
	return o.format
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.format == FormatJSON
}

// Structured reports whether output is machine-readable.
func (o *Output) Structured() bool {
	return o.format != FormatTable
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML outputs data as YAML.
func (o *Output) YAML(data interface{}) error {
	encoder := yaml.NewEncoder(o.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// CSV writes rows, a slice of csv-tagged structs.
func (o *Output) CSV(rows interface{}) error {
	return gocsv.Marshal(rows, o.writer)
}

// Emit writes data in the structured format. rows is the flat form used for
// CSV; nil means the command has no tabular form.
func (o *Output) Emit(data interface{}, rows interface{}) error {
	switch o.format {
	case FormatYAML:
		return o.YAML(data)
	case FormatCSV:
		if rows == nil {
			return fmt.Errorf("csv output is not available for this command")
		}
		return o.CSV(rows)
	default:
		return o.JSON(data)
	}
}

// Print prints a message.
func (o *Output) Print(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(o.writer, format, args, color.FgGreen)
}

// Error prints an error message in red to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(o.errWriter, format, args, color.FgRed)
}

// Warning prints a warning in yellow. Structured output keeps stdout
// clean, so warnings go to stderr there.
func (o *Output) Warning(format string, args ...interface{}) {
	w := o.writer
	if o.Structured() {
		w = o.errWriter
	}
	o.colored(w, format, args, color.FgYellow)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(o.writer, format, args, color.FgCyan)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(o.writer, format, args, color.Bold)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(o.writer, format, args, color.Faint)
}

func (o *Output) colored(w io.Writer, format string, args []interface{}, attrs ...color.Attribute) {
	fmt.Fprintln(w, o.paint(fmt.Sprintf(format, args...), attrs...))
}

func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint(text, color.FgGreen) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint(text, color.FgRed) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint(text, color.FgYellow) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.paint(text, color.FgCyan) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint(text, color.Bold) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.paint(text, color.Faint) }

// Notice prints a data quality note, if any.
func (o *Output) Notice(notice string) {
	if notice == "" {
		return
	}
	o.Warning("⚠ %s", notice)
}

// Table represents a simple table for output.
type Table struct {
	headers   []string
	rows      [][]string
	maxWidths map[int]int
	output    *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers:   headers,
		rows:      make([][]string, 0),
		maxWidths: map[int]int{},
		output:    output,
	}
}

// SetMaxWidth truncates cells of column col to width display cells.
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.maxWidths[col] = width
	return t
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	for i, cell := range cells {
		if limit, ok := t.maxWidths[i]; ok && displayWidth(cell) > limit {
			cells[i] = runewidth.Truncate(stripANSI(cell), limit, "…")
		}
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		padded := cell + strings.Repeat(" ", widths[i]-displayWidth(cell))
		if isHeader {
			padded = t.output.BoldText(padded)
		}
		parts[i] = padded
	}
	t.output.Println(strings.Join(parts, "  "))
}

func (t *Table) printSeparator(widths []int) {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// displayWidth is the number of terminal cells s occupies.
func displayWidth(s string) int {
	return runewidth.StringWidth(stripANSI(s))
}

// Box draws a box around content.
func (o *Output) Box(title string, content []string) {
	maxLen := displayWidth(title)
	for _, line := range content {
		if w := displayWidth(line); w > maxLen {
			maxLen = w
		}
	}

	border := strings.Repeat("─", maxLen+2)
	o.Println(o.DimText("┌" + border + "┐"))
	o.Printf("%s %s%s %s\n", o.DimText("│"), o.BoldText(title), strings.Repeat(" ", maxLen-displayWidth(title)), o.DimText("│"))
	o.Println(o.DimText("├" + border + "┤"))
	for _, line := range content {
		o.Printf("%s %s%s %s\n", o.DimText("│"), line, strings.Repeat(" ", maxLen-displayWidth(line)), o.DimText("│"))
	}
	o.Println(o.DimText("└" + border + "┘"))
}

// Bar renders a proportional bar of at most width cells.
func Bar(value, peak float64, width int) string {
	if peak <= 0 || value <= 0 || width <= 0 {
		return ""
	}
	n := int(value / peak * float64(width))
	if n == 0 {
		n = 1
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}
