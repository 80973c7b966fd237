package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusTags = map[statusKind]struct {
	tag   string
	color text.Color
}{
	statusInfo:  {"INFO", text.FgBlue},
	statusOK:    {"OK", text.FgGreen},
	statusWarn:  {"WARN", text.FgYellow},
	statusError: {"ERROR", text.FgRed},
}

var severityKinds = map[string]statusKind{
	"ok":      statusOK,
	"warn":    statusWarn,
	"warning": statusWarn,
	"error":   statusError,
}

const statusLabelWidth = 20

// statusKindFromSeverity maps a dependency summary severity to a kind.
// Unknown severities are informational.
func statusKindFromSeverity(severity string) statusKind {
	return severityKinds[strings.ToLower(strings.TrimSpace(severity))]
}

// renderStatusLine formats "  Label:   [TAG] message". Only the tag is
// colored so long messages stay readable.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusTags[kind]
	tag := "[" + style.tag + "]"
	if colorize {
		tag = style.color.Sprint(tag)
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if message != "" {
		line += " " + message
	}
	return line
}

// statusPage writes titled sections separated by blank lines.
type statusPage struct {
	out      io.Writer
	colorize bool
	sections int
}

func (p *statusPage) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.out)
	}
	p.sections++
	rule := strings.Repeat("─", utf8.RuneCountInString(title))
	if p.colorize {
		title = text.Bold.Sprint(title)
	}
	fmt.Fprintln(p.out, title)
	fmt.Fprintln(p.out, rule)
}

func (p *statusPage) lines(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(p.out, line)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
