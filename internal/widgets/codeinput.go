package widgets

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CodeInput is a fixed-length, digit-by-digit code entry.
//
// With n filled slots, a digit is only accepted while slot n is focused, so
// digits can neither skip ahead nor overwrite. Focus moves over slots 0..n,
// clamped to the last slot once the code is full.
type CodeInput struct {
	length int
	digits []byte
	focus  int

	// Err is shown beside the slots until cleared.
	Err string
}

func NewCodeInput(length int) CodeInput {
	if length <= 0 {
		length = 3
	}
	return CodeInput{length: length}
}

func (c CodeInput) Len() int      { return c.length }
func (c CodeInput) Value() string { return string(c.digits) }
func (c CodeInput) Focus() int    { return c.focus }
func (c CodeInput) Complete() bool {
	return len(c.digits) == c.length
}

func (c CodeInput) lastFocusable() int {
	n := len(c.digits)
	if n >= c.length {
		return c.length - 1
	}
	return n
}

// Type accepts r at the focused slot if it is a digit and the slot is the
// first empty one.
func (c *CodeInput) Type(r rune) bool {
	n := len(c.digits)
	if r < '0' || r > '9' || n >= c.length || c.focus != n {
		return false
	}
	c.digits = append(c.digits, byte(r))
	c.focus = c.lastFocusable()
	return true
}

// Backspace clears the last filled slot and focuses it.
func (c *CodeInput) Backspace() bool {
	n := len(c.digits)
	if n == 0 {
		return false
	}
	c.digits = c.digits[:n-1]
	c.focus = n - 1
	return true
}

func (c *CodeInput) Left() {
	if c.focus > 0 {
		c.focus--
	}
}

func (c *CodeInput) Right() {
	if c.focus < c.lastFocusable() {
		c.focus++
	}
}

// Paste replaces the whole value. Anything that is not all digits, or longer
// than the code, is ignored.
func (c *CodeInput) Paste(s string) bool {
	if s == "" || len(s) > c.length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	c.digits = []byte(s)
	c.focus = c.lastFocusable()
	return true
}

// Reset clears every slot and focuses the first. Err is kept.
func (c *CodeInput) Reset() {
	c.digits = nil
	c.focus = 0
}

func (c CodeInput) Update(msg tea.Msg) (CodeInput, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}
	switch k.Type {
	case tea.KeyRunes:
		if k.Paste {
			c.Paste(string(k.Runes))
			break
		}
		for _, r := range k.Runes {
			c.Type(r)
		}
	case tea.KeyBackspace:
		c.Backspace()
	case tea.KeyLeft:
		c.Left()
	case tea.KeyRight:
		c.Right()
	}
	return c, nil
}

var (
	slotStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	focusStyle   = slotStyle.BorderForeground(lipgloss.Color("12"))
	codeErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (c CodeInput) View() string {
	slots := make([]string, c.length)
	for i := range slots {
		d := " "
		if i < len(c.digits) {
			d = string(c.digits[i])
		}
		if i == c.focus {
			slots[i] = focusStyle.Render(d)
		} else {
			slots[i] = slotStyle.Render(d)
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Center, slots...)
	if c.Err == "" {
		return row
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, row, "  ", codeErrStyle.Render(strings.TrimSpace(c.Err)))
}
