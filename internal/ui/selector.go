package ui

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

const (
	listHeight       = 8
	detailLabelWidth = 13
	minWidth         = 60
	maxWidth         = 120
)

// ErrCancelled is returned when the user leaves the selector without a choice.
var ErrCancelled = errors.New("selection cancelled")

// VPCSelector is the bubbletea model that picks the VPC to tear down.
// VPCs created by stratus are listed first; the default VPC is shown but
// cannot be chosen.
type VPCSelector struct {
	vpcs         []pkgtypes.VPC
	filtered     []pkgtypes.VPC
	cursor       int
	offset       int
	search       string
	selected     *pkgtypes.VPC
	notice       string
	quitting     bool
	cancelled    bool
	termWidth    int
	contentWidth int
}

// NewVPCSelector creates a selector over vpcs.
func NewVPCSelector(vpcs []pkgtypes.VPC) VPCSelector {
	sorted := append([]pkgtypes.VPC(nil), vpcs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Environment != "" && sorted[j].Environment == ""
	})

	m := VPCSelector{
		vpcs:      sorted,
		filtered:  sorted,
		termWidth: 80,
	}
	m.calculateWidths()
	return m
}

func (m *VPCSelector) calculateWidths() {
	m.contentWidth = min(max(m.termWidth-2, minWidth), maxWidth)
}

// Selected returns the chosen VPC, or nil.
func (m VPCSelector) Selected() *pkgtypes.VPC {
	return m.selected
}

// Cancelled reports whether the user quit without choosing.
func (m VPCSelector) Cancelled() bool {
	return m.cancelled
}

// Init implements tea.Model
func (m VPCSelector) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model
func (m VPCSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.calculateWidths()
		return m, nil

	case tea.KeyMsg:
		m.notice = ""
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.cancelled = true
			return m, tea.Quit

		case tea.KeyEnter:
			if len(m.filtered) == 0 {
				return m, nil
			}
			vpc := m.filtered[m.cursor]
			if vpc.IsDefault {
				m.notice = "the default VPC cannot be deleted here"
				return m, nil
			}
			m.selected = &vpc
			m.quitting = true
			return m, tea.Quit

		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}

		case tea.KeyDown:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				if m.cursor >= m.offset+listHeight {
					m.offset = m.cursor - listHeight + 1
				}
			}

		case tea.KeyBackspace:
			if len(m.search) > 0 {
				r := []rune(m.search)
				m.search = string(r[:len(r)-1])
				m.filter()
			}

		case tea.KeyRunes:
			m.search += string(msg.Runes)
			m.filter()
		}
	}

	return m, nil
}

func (m *VPCSelector) filter() {
	if m.search == "" {
		m.filtered = m.vpcs
	} else {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, vpc := range m.vpcs {
			for _, field := range []string{vpc.ID, vpc.Name, vpc.CIDR, vpc.Environment} {
				if strings.Contains(strings.ToLower(field), query) {
					m.filtered = append(m.filtered, vpc)
					break
				}
			}
		}
	}
	m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
	m.offset = 0
}

// View implements tea.Model
func (m VPCSelector) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(BorderStyle.Render(TopLeft + strings.Repeat(Horizontal, w) + TopRight))
	sb.WriteString("\n")
	sb.WriteString(m.line(NameStyle.Render(padRight(" > "+m.search, w))))
	sb.WriteString(m.blank())

	end := min(m.offset+listHeight, len(m.filtered))
	for i := m.offset; i < end; i++ {
		sb.WriteString(m.renderRow(i))
	}
	for i := end - m.offset; i < listHeight; i++ {
		sb.WriteString(m.blank())
	}

	sb.WriteString(BorderStyle.Render(LeftT + strings.Repeat(Horizontal, w) + RightT))
	sb.WriteString("\n")
	sb.WriteString(m.renderDetails())
	sb.WriteString(BorderStyle.Render(BottomLeft + strings.Repeat(Horizontal, w) + BottomRight))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())

	return sb.String()
}

func (m VPCSelector) line(content string) string {
	return BorderStyle.Render(Vertical) + content + BorderStyle.Render(Vertical) + "\n"
}

func (m VPCSelector) blank() string {
	return m.line(strings.Repeat(" ", m.contentWidth))
}

func (m VPCSelector) renderRow(idx int) string {
	vpc := m.filtered[idx]
	w := m.contentWidth

	cursor := "   "
	if idx == m.cursor {
		cursor = " > "
	}

	env := vpc.Environment
	if vpc.IsDefault {
		env = "default"
	}

	nameWidth := max(w-3-22-2-18-2-12-2, 10)
	row := cursor +
		IDStyle.Render(padRight(vpc.ID, 22)) + "  " +
		IPStyle.Render(padRight(vpc.CIDR, 18)) + "  " +
		MutedStyle.Render(padRight(env, 12)) + "  " +
		NameStyle.Render(padRight(vpc.Name, nameWidth))

	plain := 3 + 22 + 2 + 18 + 2 + 12 + 2 + nameWidth
	if plain < w {
		row += strings.Repeat(" ", w-plain)
	}
	return m.line(row)
}

func (m VPCSelector) renderDetails() string {
	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(m.line(HeaderStyle.Render(padRight(" VPC Details", w))))

	if len(m.filtered) == 0 {
		sb.WriteString(m.line(MutedStyle.Render(padRight(" No VPCs found", w))))
		return sb.String()
	}

	vpc := m.filtered[m.cursor]
	managed := "No"
	if vpc.Environment != "" {
		managed = "Yes (" + vpc.Environment + ")"
	}

	details := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"ID:", vpc.ID, IDStyle},
		{"Name:", vpc.Name, NameStyle},
		{"CIDR:", vpc.CIDR, IPStyle},
		{"State:", vpc.State, stateStyle(vpc.State)},
		{"Created by:", managed, MutedStyle},
		{"Default:", formatBool(vpc.IsDefault), MutedStyle},
	}

	for _, d := range details {
		value := d.value
		if maxValue := w - 1 - detailLabelWidth; runewidth.StringWidth(value) > maxValue {
			value = runewidth.Truncate(value, maxValue, "...")
		}
		plain := 1 + detailLabelWidth + runewidth.StringWidth(value)

		row := MutedStyle.Render(" "+padRight(d.label, detailLabelWidth)) + d.style.Render(value)
		if plain < w {
			row += strings.Repeat(" ", w-plain)
		}
		sb.WriteString(m.line(row))
	}

	return sb.String()
}

func (m VPCSelector) renderStatusBar() string {
	w := m.contentWidth + 2

	left := fmt.Sprintf("  %d/%d VPCs", len(m.filtered), len(m.vpcs))
	if m.notice != "" {
		left = "  " + m.notice
	}
	hints := "[Enter:delete] [Esc:cancel]"

	padding := w - runewidth.StringWidth(left) - runewidth.StringWidth(hints)
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + HintStyle.Render(hints) + "\n"
}

// SelectVPC runs the selector on the terminal and returns the chosen VPC.
// The UI is drawn on out so stdout stays free for results.
func SelectVPC(vpcs []pkgtypes.VPC, out io.Writer) (*pkgtypes.VPC, error) {
	if len(vpcs) == 0 {
		return nil, fmt.Errorf("no VPCs available")
	}

	p := tea.NewProgram(NewVPCSelector(vpcs), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running selector: %w", err)
	}

	result := final.(VPCSelector)
	if result.Cancelled() || result.Selected() == nil {
		return nil, ErrCancelled
	}
	return result.Selected(), nil
}
