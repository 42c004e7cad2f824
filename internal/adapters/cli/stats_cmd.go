package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"immersion-stats/internal/adapters/render"
	"immersion-stats/internal/usecase/stats"
	"immersion-stats/internal/usecase/tzconv"
)

type filterFlags struct {
	raw   stats.RawFilter
	width int
	json  bool
}

func (f *filterFlags) bind(cmd *cobra.Command, withMetric bool) {
	cmd.Flags().StringVar(&f.raw.Timeframe, "timeframe", "week", "today|week|month|year|total|custom")
	if withMetric {
		cmd.Flags().StringVar(&f.raw.Metric, "metric", "experience", "experience|minutes|charactersPerHour")
	}
	cmd.Flags().StringVar(&f.raw.Type, "type", "", "Activity type filter")
	cmd.Flags().StringVar(&f.raw.Timezone, "tz", "", "IANA timezone")
	cmd.Flags().StringVar(&f.raw.Start, "start", "", "Custom range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.raw.End, "end", "", "Custom range end, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.raw.Locale, "locale", "en", "Month label locale")
	cmd.Flags().IntVar(&f.width, "width", render.DefaultWidth, "Bar width")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON instead of bars")
}

func newChartCmd(app *App, source *SourceFlags) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Progress chart by timeframe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChart(cmd.Context(), app, source, &f, false)
		},
	}
	f.bind(cmd, true)
	return cmd
}

func newSpeedCmd(app *App, source *SourceFlags) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Reading speed chart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChart(cmd.Context(), app, source, &f, true)
		},
	}
	f.bind(cmd, false)
	return cmd
}

func runChart(ctx context.Context, app *App, source *SourceFlags, f *filterFlags, speed bool) error {
	filter, err := stats.ParseFilter(f.raw)
	if err != nil {
		return err
	}
	svc, userID, err := app.service(source)
	if err != nil {
		return err
	}
	var out stats.ChartResult
	if speed {
		out, err = svc.Speed(ctx, userID, filter)
	} else {
		out, err = svc.Progress(ctx, userID, filter)
	}
	if err != nil {
		return err
	}
	if f.json {
		return app.printJSON(out)
	}
	if out.TimezoneFallback {
		fmt.Fprintf(app.Out, "часовой пояс %q не распознан, расчёт в UTC\n", f.raw.Timezone)
	}
	return render.Chart(app.Out, out.Chart, f.width)
}

func newSummaryCmd(app *App, source *SourceFlags) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Totals per activity type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := stats.ParseFilter(f.raw)
			if err != nil {
				return err
			}
			svc, userID, err := app.service(source)
			if err != nil {
				return err
			}
			out, err := svc.Summary(cmd.Context(), userID, filter)
			if err != nil {
				return err
			}
			if f.json {
				return app.printJSON(out)
			}
			for _, row := range append(out.ByType, out.Overall) {
				fmt.Fprintf(app.Out, "%-14s %8.0f XP %8.0f min %6d logs\n", row.Name, row.XP, row.Minutes, row.Count)
			}
			return nil
		},
	}
	f.bind(cmd, false)
	return cmd
}

func newHeatmapCmd(app *App, source *SourceFlags) *cobra.Command {
	var (
		timezone string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Daily XP heatmap for the last 24 weeks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, userID, err := app.service(source)
			if err != nil {
				return err
			}
			out, err := svc.Heatmap(cmd.Context(), userID, timezone)
			if err != nil {
				return err
			}
			if asJSON {
				return app.printJSON(out)
			}
			if err := render.Heatmap(app.Out, out.Result); err != nil {
				return err
			}
			_, err = fmt.Fprintf(app.Out, "серия: %d, лучшая: %d, активных дней: %d\n",
				out.Streak.Current, out.Streak.Longest, out.Streak.ActiveDays)
			return err
		},
	}
	cmd.Flags().StringVar(&timezone, "tz", "", "IANA timezone")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of the grid")
	return cmd
}

func newTimezonesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "timezones",
		Short: "List selectable timezones with current offsets",
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, zone := range tzconv.List(app.Clock.Now()) {
				if _, err := fmt.Fprintln(app.Out, zone.Label); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
