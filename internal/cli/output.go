package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trading-agent/pkg/utils"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor && isTerminal(),
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
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
	o.colored(color.New(color.FgGreen), format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(color.New(color.FgRed), format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(color.New(color.FgYellow), format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(color.New(color.FgCyan), format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(color.New(color.Bold), format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(color.New(color.Faint), format, args...)
}

func (o *Output) colored(c *color.Color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if o.colorEnabled {
		c.EnableColor()
		msg = c.Sprint(msg)
	}
	fmt.Fprintln(o.writer, msg)
}

func (o *Output) paint(c *color.Color, text string) string {
	if !o.colorEnabled {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

// PnL formats a P&L amount, green when positive and red when negative.
func (o *Output) PnL(pnl float64) string {
	text := utils.FormatPnL(pnl)
	switch {
	case pnl > 0:
		return o.paint(color.New(color.FgGreen), text)
	case pnl < 0:
		return o.paint(color.New(color.FgRed), text)
	default:
		return text
	}
}

// Decision colors a decision or outcome label.
func (o *Output) Decision(label string) string {
	switch label {
	case "EXECUTE", "EXECUTED", "BUY":
		return o.paint(color.New(color.FgGreen, color.Bold), label)
	case "CAUTION", "NOT_SIZED", "REJECTED":
		return o.paint(color.New(color.FgYellow), label)
	case "SKIP", "EXTERNAL_ERROR", "SELL":
		return o.paint(color.New(color.FgRed), label)
	default:
		return label
	}
}

// Table returns a rounded go-pretty table writing to the output.
func (o *Output) Table(title string, headers ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(o.writer)
	if title != "" {
		t.SetTitle(title)
	}
	t.SetStyle(table.StyleRounded)
	if len(headers) > 0 {
		t.AppendHeader(table.Row(headers))
	}
	return t
}

func row(cells ...interface{}) table.Row {
	return table.Row(cells)
}
