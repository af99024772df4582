package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// severity drives the bracketed tag and colour of a status line.
type severity int

const (
	severityInfo severity = iota
	severityOK
	severityWarn
	severityError
)

const (
	ansiReset = "\x1b[0m"
	labelCol  = 20
	indent    = "  "
)

var severityStyles = map[severity]struct{ tag, color string }{
	severityInfo:  {"INFO", "\x1b[34m"},
	severityOK:    {"OK", "\x1b[32m"},
	severityWarn:  {"WARN", "\x1b[33m"},
	severityError: {"ERROR", "\x1b[31m"},
}

var titleCaser = cases.Title(language.Und)

func (s severity) paint(text string, colorize bool) string {
	if !colorize {
		return text
	}
	return severityStyles[s].color + text + ansiReset
}

// statusLine renders "  Label:               [TAG] message".
func statusLine(label string, sev severity, message string, colorize bool) string {
	tag := "[" + severityStyles[sev].tag + "]"
	if message != "" {
		tag += " " + message
	}
	return sev.paint(fmt.Sprintf("%s%-*s %s", indent, labelCol, label+":", tag), colorize)
}

func sectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		severityInfo.paint(heading, colorize),
		severityInfo.paint(strings.Repeat("-", len(heading)), colorize),
	}
}

func jobSeverity(status string) severity {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return severityOK
	case "processing":
		return severityWarn
	case "failed":
		return severityError
	default:
		return severityInfo
	}
}

// formatJobStatus title-cases a lifecycle status, coloured by severity.
func formatJobStatus(status string, colorize bool) string {
	label := titleCaser.String(strings.TrimSpace(status))
	if label == "" {
		label = "Unknown"
	}
	return jobSeverity(status).paint(label, colorize)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
