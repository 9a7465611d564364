package hours

import (
	"strconv"
	"strings"
)

// Dashboard labels. The rendered layout places each value two lines below its label.
const (
	LabelHoursPending  = "Hours pending review"
	LabelHoursApproved = "Hours approved in past 7 days"
)

// valueOffset is the line distance from a label to its value. The line in between
// is a layout artifact of the rendered dashboard and is never inspected.
const valueOffset = 2

// ReadyText lists the strings a renderer must wait for before reading the page.
func ReadyText() []string {
	return []string{LabelHoursPending, LabelHoursApproved}
}

// ParseFailure describes a label whose value line could not be parsed.
type ParseFailure struct {
	Label string
	// Line is the raw value line, or "N/A" when the label was too close to the end.
	Line string
}

// SplitLines splits rendered page text into lines.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// Extract scans rendered lines for the dashboard labels and parses their values.
// A failure on one label never prevents the other from being extracted.
func Extract(lines []string) Metrics {
	m, _ := ExtractWithFailures(lines)
	return m
}

// ExtractWithFailures behaves like Extract and also reports every label whose value failed to parse.
func ExtractWithFailures(lines []string) (Metrics, []ParseFailure) {
	var (
		m        Metrics
		failures []ParseFailure
	)
	for i, line := range lines {
		var target **int
		switch strings.TrimSpace(line) {
		case LabelHoursPending:
			target = &m.HoursPending
		case LabelHoursApproved:
			target = &m.HoursApproved
		}
		if target != nil {
			label := strings.TrimSpace(line)
			if v, ok := valueAt(lines, i+valueOffset); ok {
				*target = IntPtr(v)
			} else {
				failures = append(failures, ParseFailure{Label: label, Line: lineAt(lines, i+valueOffset)})
			}
		}
		if m.Complete() {
			break
		}
	}
	return m, failures
}

// ExtractText splits text into lines and extracts the metrics.
func ExtractText(text string) Metrics {
	return Extract(SplitLines(text))
}

func valueAt(lines []string, idx int) (int, bool) {
	if idx >= len(lines) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(lines[idx]))
	if err != nil {
		return 0, false
	}
	return v, true
}

func lineAt(lines []string, idx int) string {
	if idx >= len(lines) {
		return "N/A"
	}
	return lines[idx]
}
