package ui

import (
	"fmt"
	"strings"
)

// renderHeader renders the two status lines above the log pane: the
// logo line with store and queue counters, and the filter line.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	st := m.pipeline.Store()
	parts := []string{
		styles.Logo.Render("LANTERN"),
		styles.MutedText.Render("Matched:") + " " + styles.Text.Render(humanizeCount(len(m.entries))),
		styles.MutedText.Render("Store:") + " " + styles.Text.Render(
			fmt.Sprintf("%s/%s", humanizeCount(st.Len()), humanizeCount(st.Cap()))),
	}

	if dropped := m.pipeline.Dropped(); dropped > 0 {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("Dropped: %d", dropped)))
	}
	if m.degraded {
		parts = append(parts, styles.DangerText.Render("DEGRADED"))
	}
	if !m.follow {
		parts = append(parts, styles.WarningText.Render("PAUSED"))
	}
	if m.notice != "" {
		text := truncate(m.notice, 60)
		if m.noticeErr {
			parts = append(parts, styles.DangerText.Render(text))
		} else {
			parts = append(parts, styles.SuccessText.Render(text))
		}
	}

	header := styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
	return header + "\n" + m.renderFilterLine()
}

// renderFilterLine renders the active filter clauses, or the live query
// input while it is being edited.
func (m Model) renderFilterLine() string {
	styles := m.theme.Styles()

	if m.editingQuery {
		return styles.Header.Width(m.width).Render(
			styles.AccentText.Render("query> ") + m.queryInput.View())
	}

	parts := []string{
		styles.MutedText.Render("Level:") + " " +
			styles.SeverityStyle(m.filter.MinSeverity).Render(m.filter.MinSeverity.String()),
	}

	if m.filter.Query != "" {
		mode := "substr"
		if m.filter.Regexp {
			mode = "regex"
		}
		if m.filter.CaseSensitive {
			mode += ",case"
		}
		parts = append(parts,
			styles.MutedText.Render("Query:")+" "+
				styles.Text.Render(truncate(m.filter.Query, 40))+
				styles.FaintText.Render(" ("+mode+")"))
	}
	if len(m.filter.Sources) > 0 {
		parts = append(parts,
			styles.MutedText.Render("Sources:")+" "+
				styles.Text.Render(truncate(strings.Join(m.filter.Sources, ","), 40)))
	}
	if !m.filter.Since.IsZero() || !m.filter.Until.IsZero() {
		parts = append(parts, styles.MutedText.Render("Time range active"))
	}

	return m.theme.Styles().Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderFooter renders the key hint bar.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	hints := []string{
		"f level",
		"/ query",
		"r regex",
		"c case",
		"space pause",
		"s export",
		"C clear",
		"h help",
		"q quit",
	}
	return styles.Footer.Width(m.width).Render(strings.Join(hints, "  "))
}
