package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes left-aligned columns sized by display width, so rationale text with
// non-ASCII characters still lines up.
type table struct {
	header []string
	rows   [][]string
	max    int // per-cell display width cap; 0 means none
}

func (t *table) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) write(w io.Writer) {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(t.clip(c)))
			}
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			c := ""
			if i < len(cells) {
				c = t.clip(cells[i])
			}
			if i == len(widths)-1 {
				parts[i] = c
			} else {
				parts[i] = runewidth.FillRight(c, widths[i])
			}
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(t.header)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, strings.Join(rule, "+-"))
	for _, r := range t.rows {
		line(r)
	}
}

func (t *table) clip(s string) string {
	if t.max <= 0 {
		return s
	}
	return runewidth.Truncate(s, t.max, "…")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
