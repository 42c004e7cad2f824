package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"immersion-stats/internal/usecase/calendar"
)

const dump = `{
  "user": {"_id": "u1", "timezone": "UTC"},
  "records": [
    {"date": "2024-03-04T10:00:00Z", "type": "reading", "xp": 50, "time": 60, "chars": 9000},
    {"date": "2024-03-04T12:00:00Z", "type": "reading", "xp": 30, "time": 30, "chars": 6000},
    {"date": "2024-03-05T12:00:00Z", "type": "anime", "xp": 20, "time": 24}
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(dump), 0o600))

	var out bytes.Buffer
	root := NewRootCmd(&App{
		Out:    &out,
		Clock:  calendar.FixedClock(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)),
		Logger: zerolog.Nop(),
	})
	root.SetArgs(append([]string{"--file", path}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestChartJSON(t *testing.T) {
	out, err := run(t, "chart", "--timeframe", "week", "--json")
	require.NoError(t, err)

	var payload struct {
		Labels []string `json:"labels"`
		Series []struct {
			Name   string    `json:"name"`
			Values []float64 `json:"values"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Labels, 7)
	require.Len(t, payload.Series, 2)
	require.Equal(t, "Reading", payload.Series[0].Name)
	require.Equal(t, 80.0, payload.Series[0].Values[1])
	require.Equal(t, 20.0, payload.Series[1].Values[2])
}

func TestChartBars(t *testing.T) {
	out, err := run(t, "chart", "--timeframe", "week", "--width", "8")
	require.NoError(t, err)
	require.Contains(t, out, "Reading\n")
	require.Contains(t, out, "Mon ████████ 80")
}

func TestSpeedCarriesForward(t *testing.T) {
	out, err := run(t, "speed", "--timeframe", "week", "--type", "reading", "--json")
	require.NoError(t, err)
	var payload struct {
		Series []struct {
			Values []float64 `json:"values"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Series, 1)
	require.Equal(t, 10000.0, payload.Series[0].Values[1])
	require.Equal(t, 10000.0, payload.Series[0].Values[2])
}

func TestSummaryTable(t *testing.T) {
	out, err := run(t, "summary", "--timeframe", "week")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[2], "Total"))
	require.Contains(t, lines[2], "100 XP")
}

func TestHeatmapGrid(t *testing.T) {
	out, err := run(t, "heatmap")
	require.NoError(t, err)
	require.Contains(t, out, "2024-03-06, максимум 80 XP (UTC)")
	require.Contains(t, out, "активных дней: 2")
}

func TestInvalidFilter(t *testing.T) {
	_, err := run(t, "chart", "--timeframe", "decade")
	require.Error(t, err)
}

func TestTimezones(t *testing.T) {
	out, err := run(t, "timezones")
	require.NoError(t, err)
	require.Contains(t, out, "(UTC+09:00) Asia/Tokyo")
}

func TestMissingSource(t *testing.T) {
	root := NewRootCmd(&App{Out: &bytes.Buffer{}, Logger: zerolog.Nop()})
	root.SetArgs([]string{"chart", "--api", ""})
	require.Error(t, root.Execute())
}
