package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// column describes one table column. styleFor, when set, colors each cell
// by its value instead of the fixed style.
type column struct {
	header   string
	width    int
	style    lipgloss.Style
	styleFor func(value string) lipgloss.Style
}

// boxTable renders rows inside a rounded box with a header separator.
type boxTable struct {
	columns []column
	rows    [][]string
}

func newBoxTable(columns ...column) *boxTable {
	return &boxTable{columns: columns}
}

func (t *boxTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *boxTable) border(left, mid, right string) string {
	var sb strings.Builder
	sb.WriteString(BorderStyle.Render(left))
	for i, c := range t.columns {
		sb.WriteString(BorderStyle.Render(strings.Repeat(Horizontal, c.width+2)))
		if i < len(t.columns)-1 {
			sb.WriteString(BorderStyle.Render(mid))
		}
	}
	sb.WriteString(BorderStyle.Render(right))
	sb.WriteString("\n")
	return sb.String()
}

func (t *boxTable) render(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(t.border(TopLeft, TopT, TopRight))

	sb.WriteString(BorderStyle.Render(Vertical))
	for _, c := range t.columns {
		sb.WriteString(HeaderStyle.Render(" " + padRight(c.header, c.width) + " "))
		sb.WriteString(BorderStyle.Render(Vertical))
	}
	sb.WriteString("\n")

	sb.WriteString(t.border(LeftT, Cross, RightT))

	for _, row := range t.rows {
		sb.WriteString(BorderStyle.Render(Vertical))
		for i, c := range t.columns {
			var value string
			if i < len(row) {
				value = row[i]
			}
			style := c.style
			if c.styleFor != nil {
				style = c.styleFor(value)
			}
			sb.WriteString(style.Render(" " + padRight(value, c.width) + " "))
			sb.WriteString(BorderStyle.Render(Vertical))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(t.border(BottomLeft, BottomT, BottomRight))

	_, err := fmt.Fprint(w, sb.String())
	return err
}
