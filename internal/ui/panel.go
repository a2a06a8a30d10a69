package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/shoplist/internal/model"
)

// CreatedPlaceholder stands in for a timestamp the server has not set yet.
const CreatedPlaceholder = "…"

const createdLayout = "2006-01-02 15:04"

// FormatCreated renders a creation time in local time, or the placeholder.
func FormatCreated(t *time.Time) string {
	if t == nil {
		return CreatedPlaceholder
	}
	return t.Local().Format(createdLayout)
}

// Box is the checkbox symbol for a purchase state.
func Box(purchased bool) string {
	if purchased {
		return current.Success.Render(current.BoxChecked)
	}
	return current.Muted.Render(current.BoxUnchecked)
}

// Header is the title line with live counts.
func Header(rows []model.Row) string {
	p, n := model.Stats(rows)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		current.Title.Render("Shopping list"),
		current.Success.Render(current.SymOK), p,
		current.Pending.Render("•"), n,
		current.Accent.Render("Total"), len(rows),
	)
}

// ProgressBar renders a Unicode progress bar with a purchased/total count.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, done, total)
}

// RowLines renders numbered cards for non-interactive output.
func RowLines(rows []model.Row) []string {
	if len(rows) == 0 {
		return []string{current.Muted.Render("no items")}
	}
	out := make([]string, 0, len(rows))
	for i, r := range rows {
		text := truncate(r.Text, 60)
		if r.IsPurchased {
			text = current.Purchased.Render(text)
		}
		out = append(out, fmt.Sprintf("%s %s %s  %s",
			current.Muted.Render(fmt.Sprintf("%2d.", i+1)),
			Box(r.IsPurchased),
			text,
			current.Muted.Render(FormatCreated(r.CreatedAt)),
		))
	}
	return out
}

// ListPanel is the full non-interactive view of a snapshot.
func ListPanel(rows []model.Row, group bool) string {
	p, _ := model.Stats(rows)
	lines := []string{
		Header(rows),
		current.Muted.Render(ProgressBar(p, len(rows), 28)),
		"",
	}
	if group {
		lines = append(lines, GroupLines(rows)...)
	} else {
		lines = append(lines, RowLines(rows)...)
	}
	lines = append(lines, "", current.Muted.Render("Tip: add with `shoplist add \"Milk\"`"))
	return Panel(lines)
}

// Panel draws a framed box using the current theme.
func Panel(lines []string) string {
	border := lipgloss.NewStyle().
		Border(current.Border).
		BorderForeground(current.BorderColor).
		Padding(0, 1)
	return border.Render(strings.Join(lines, "\n"))
}

func OK(w io.Writer, msg string) {
	fmt.Fprintln(w, current.Success.Render(current.SymOK+" "+msg))
}

func Fail(w io.Writer, msg string) {
	fmt.Fprintln(w, current.Error.Render(current.SymFail+" "+msg))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// GroupLines splits rows into pending and purchased sections. Numbering
// follows the snapshot order so indexes stay valid for done/rm.
func GroupLines(rows []model.Row) []string {
	all := RowLines(rows)
	if len(rows) == 0 {
		return all
	}
	var pend, done []string
	for i, r := range rows {
		if r.IsPurchased {
			done = append(done, all[i])
		} else {
			pend = append(pend, all[i])
		}
	}
	section := func(title string, lines []string) []string {
		out := []string{current.Accent.Render(title)}
		if len(lines) == 0 {
			return append(out, current.Muted.Render("(none)"))
		}
		return append(out, lines...)
	}
	lines := section("To buy", pend)
	lines = append(lines, "")
	return append(lines, section("Purchased", done)...)
}
