package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	domain "github.com/hanko-field/namegen/internal/domain"
)

var (
	accent = lipgloss.Color("#0071E3")
	muted  = lipgloss.Color("#86868B")

	headerStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	cardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 2).Width(34)
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	pinyinStyle  = lipgloss.NewStyle().Italic(true)
	labelStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#28A745"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#17A2B8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC3545")).Bold(true)
)

// TerminalRenderer draws suggestion cards side by side.
type TerminalRenderer struct {
	out io.Writer
}

// NewTerminalRenderer writes cards to out.
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{out: out}
}

// Render implements Renderer.
func (r *TerminalRenderer) Render(englishName string, names []domain.NameSuggestion) error {
	cards := make([]string, 0, len(names))
	for _, n := range names {
		cards = append(cards, renderCard(n))
	}
	view := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(fmt.Sprintf("Chinese names for %s", englishName)),
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
	)
	_, err := fmt.Fprintln(r.out, view)
	return err
}

func renderCard(n domain.NameSuggestion) string {
	body := strings.Join([]string{
		nameStyle.Render(n.ChineseName),
		pinyinStyle.Render(n.Pinyin),
		"",
		labelStyle.Render("Chinese Meaning"),
		n.ChineseMeaning,
		"",
		labelStyle.Render("English Meaning"),
		n.EnglishMeaning,
	}, "\n")
	return cardStyle.Render(body)
}

// TerminalNotifier prints coloured one-line messages.
type TerminalNotifier struct {
	out io.Writer
}

// NewTerminalNotifier writes messages to out.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

// Notify implements Notifier.
func (n *TerminalNotifier) Notify(level Level, message string) {
	style := infoStyle
	switch level {
	case LevelSuccess:
		style = successStyle
	case LevelError:
		style = errorStyle
	}
	fmt.Fprintln(n.out, style.Render(message))
}
