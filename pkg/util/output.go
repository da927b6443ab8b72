package util

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// Printer writes user-facing messages, styled when the output is a terminal
type Printer struct {
	out   io.Writer
	err   io.Writer
	color bool
	quiet bool
}

// NewPrinter creates a printer for stdout and stderr
func NewPrinter(quiet bool) *Printer {
	return &Printer{
		out:   os.Stdout,
		err:   os.Stderr,
		color: colorEnabled(os.Stdout),
		quiet: quiet,
	}
}

// NewPlainPrinter creates an unstyled printer writing both streams to w
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{out: w, err: w}
}

func colorEnabled(f *os.File) bool {
	if os.Getenv("DEV_NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Writer returns the stream used for regular output
func (p *Printer) Writer() io.Writer {
	if p.quiet {
		return io.Discard
	}
	return p.out
}

// Info prints an informational line
func (p *Printer) Info(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// Header prints a bold line
func (p *Printer) Header(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintln(p.out, p.style(headerStyle, fmt.Sprintf(format, args...)))
	}
}

// Success prints a line in green
func (p *Printer) Success(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintln(p.out, p.style(successStyle, fmt.Sprintf(format, args...)))
	}
}

// Muted prints a faint line
func (p *Printer) Muted(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintln(p.out, p.style(mutedStyle, fmt.Sprintf(format, args...)))
	}
}

// Warn prints a warning to stderr
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(p.err, p.style(warnStyle, "Warning: "+fmt.Sprintf(format, args...)))
}

// Error prints an error to stderr, even in quiet mode
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.err, p.style(errorStyle, "Error: "+fmt.Sprintf(format, args...)))
}
