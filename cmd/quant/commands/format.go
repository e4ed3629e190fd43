package commands

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일

const lineWidth = 59

// out is where every Print* helper writes; tests swap it
var out io.Writer = os.Stdout

func line(ch string) string {
	return strings.Repeat(ch, lineWidth)
}

// PrintHeader prints a titled block
func PrintHeader(title string) {
	fmt.Fprintf(out, "\n%s\n  %s\n%s\n", line("═"), title, line("─"))
}

func PrintSeparator() {
	fmt.Fprintln(out, line("─"))
}

func PrintDoubleSeparator() {
	fmt.Fprintln(out, line("═"))
}

func PrintWarning(message string) {
	fmt.Fprintf(out, "\n⚠️  %s\n\n", message)
}

func PrintSuccess(message string) {
	fmt.Fprintf(out, "✅ %s\n", message)
}

func PrintInfo(message string) {
	fmt.Fprintf(out, "ℹ️  %s\n", message)
}

// PrintTableHeader prints the column names and an underline spanning all columns
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	fmt.Fprintln(out, strings.Repeat("─", total))
}

// PrintTableRow pads each value to its column width
func PrintTableRow(values []string, widths []int) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = fmt.Sprintf("%-*s", widths[i], v)
	}
	fmt.Fprintln(out, strings.TrimRight(strings.Join(cells, "  "), " "))
}

func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(out, "   • %s\n", item)
	}
}

func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(out, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintMetrics prints the headline metrics; undefined values show as n/a
func PrintMetrics(m contracts.Metrics) {
	PrintKeyValue("IC", formatMetric(m.IC, 4), 8)
	PrintKeyValue("Sharpe", formatMetric(m.Sharpe, 3), 8)
	PrintKeyValue("MaxDD", formatPercent(m.MaxDD), 8)
	PrintKeyValue("Turnover", "n/a", 8)
}

func undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func formatMetric(v float64, prec int) string {
	if undefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func formatPercent(v float64) string {
	if undefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
