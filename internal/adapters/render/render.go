// Package render рисует графики и тепловую карту в терминале.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/heatmap"
)

// DefaultWidth — ширина самой длинной полосы по умолчанию.
const DefaultWidth = 40

var seriesColors = []*color.Color{
	color.New(color.FgBlue),
	color.New(color.FgYellow),
	color.New(color.FgRed),
	color.New(color.FgGreen),
	color.New(color.FgMagenta),
	color.New(color.FgCyan),
}

var levelColors = []*color.Color{
	color.New(color.FgHiBlack),
	color.New(color.FgGreen),
	color.New(color.FgHiGreen),
	color.New(color.FgYellow),
	color.New(color.FgHiYellow),
}

var levelGlyphs = []string{"·", "░", "▒", "▓", "█"}

// Chart печатает горизонтальные полосы: для каждой серии по строке на подпись.
// Полосы масштабируются по общему максимуму всех серий.
func Chart(w io.Writer, chart domain.Chart, width int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if len(chart.Labels) == 0 || len(chart.Series) == 0 {
		_, err := fmt.Fprintln(w, "нет данных")
		return err
	}

	labelWidth := 0
	for _, label := range chart.Labels {
		labelWidth = max(labelWidth, len([]rune(label)))
	}
	peak := 0.0
	for _, s := range chart.Series {
		for _, v := range s.Values {
			peak = math.Max(peak, v)
		}
	}

	for idx, s := range chart.Series {
		c := seriesColors[idx%len(seriesColors)]
		if _, err := c.Fprintln(w, s.Name); err != nil {
			return err
		}
		for i, label := range chart.Labels {
			value := 0.0
			if i < len(s.Values) {
				value = s.Values[i]
			}
			bar := c.Sprint(strings.Repeat("█", barLength(value, peak, width)))
			if _, err := fmt.Fprintf(w, "  %-*s %s %s\n", labelWidth, label, bar, formatValue(value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Heatmap печатает сетку: строки — дни недели от начала окна, столбцы — недели.
func Heatmap(w io.Writer, res heatmap.Result) error {
	if len(res.Weeks) == 0 {
		_, err := fmt.Fprintln(w, "нет данных")
		return err
	}
	for row := 0; row < 7; row++ {
		var line strings.Builder
		for _, week := range res.Weeks {
			if row >= len(week) {
				line.WriteString(" ")
				continue
			}
			line.WriteString(Cell(week[row].Level))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s..%s, максимум %s XP (%s)\n",
		res.Days[0].Date, res.Days[len(res.Days)-1].Date, formatValue(res.MaxDailyXP), res.Timezone)
	return err
}

// Cell возвращает раскрашенный символ уровня интенсивности.
func Cell(level int) string {
	level = min(max(level, 0), len(levelGlyphs)-1)
	return levelColors[level].Sprint(levelGlyphs[level])
}

func barLength(value, peak float64, width int) int {
	if value <= 0 || peak <= 0 {
		return 0
	}
	n := int(math.Round(value / peak * float64(width)))
	// Ненулевое значение всегда видно.
	return max(n, 1)
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
