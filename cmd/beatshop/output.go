package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout. Payloads use
// the same DTOs as the HTTP API so scripts can consume either.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// listing is a rounded go-pretty table with an optional footer row.
type listing struct {
	headers []string
	rows    [][]string
	footer  []string
	// right holds the zero-based indexes of right-aligned (numeric) columns.
	right map[int]bool
}

func newListing(headers ...string) *listing {
	return &listing{headers: headers, right: make(map[int]bool)}
}

func (l *listing) alignRight(columns ...int) *listing {
	for _, c := range columns {
		l.right[c] = true
	}
	return l
}

func (l *listing) add(cells ...string) {
	l.rows = append(l.rows, cells)
}

func (l *listing) total(cells ...string) {
	l.footer = cells
}

func (l *listing) row(cells []string) table.Row {
	r := make(table.Row, len(l.headers))
	for i := range r {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

func (l *listing) String() string {
	if len(l.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(l.row(l.headers))
	for _, cells := range l.rows {
		tw.AppendRow(l.row(cells))
	}
	if len(l.footer) > 0 {
		tw.AppendFooter(l.row(l.footer))
		tw.Style().Format.Footer = text.FormatDefault
	}

	configs := make([]table.ColumnConfig, 0, len(l.headers))
	for i := range l.headers {
		align := text.AlignLeft
		if l.right[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 26

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

// statusReport accumulates the sectioned output of `beatshop status`.
type statusReport struct {
	colorize bool
	lines    []string
	failures int
}

func newStatusReport(w io.Writer) *statusReport {
	return &statusReport{colorize: shouldColorize(w)}
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(heading))
	r.lines = append(r.lines, r.paint(statusInfo, heading), r.paint(statusInfo, rule))
}

func (r *statusReport) line(label string, kind statusKind, message string) {
	if kind == statusError {
		r.failures++
	}
	badge := "[" + kind.label() + "]"
	if message != "" {
		badge += " " + message
	}
	r.lines = append(r.lines, r.paint(kind, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", badge)))
}

func (r *statusReport) paint(kind statusKind, s string) string {
	if !r.colorize {
		return s
	}
	return kind.color() + s + ansiReset
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
