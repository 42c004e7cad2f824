// Package cli описывает команды immersionctl.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"immersion-stats/internal/adapters/apiclient"
	"immersion-stats/internal/adapters/dumpfile"
	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/calendar"
	"immersion-stats/internal/usecase/stats"
)

// Backend — источник записей и пользователей для команд.
type Backend interface {
	domain.RecordProvider
	domain.UserRepo
}

// SourceFlags — флаги выбора источника.
type SourceFlags struct {
	File     string
	APIURL   string
	APIToken string
	User     string
	Daily    bool
}

// App содержит зависимости команд.
type App struct {
	Out    io.Writer
	Clock  calendar.Clock
	Logger zerolog.Logger
	// Open открывает источник по флагам. По умолчанию OpenBackend.
	Open func(flags SourceFlags, logger zerolog.Logger) (Backend, string, error)
}

// NewRootCmd создаёт корневую команду immersionctl.
func NewRootCmd(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Clock == nil {
		app.Clock = calendar.SystemClock{}
	}
	if app.Open == nil {
		app.Open = OpenBackend
	}

	var flags SourceFlags
	root := &cobra.Command{
		Use:           "immersionctl",
		Short:         "Immersion log statistics in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.File, "file", "", "JSON dump of immersion logs")
	root.PersistentFlags().StringVar(&flags.APIURL, "api", os.Getenv("UPSTREAM_API_URL"), "Tracker API base URL")
	root.PersistentFlags().StringVar(&flags.APIToken, "token", os.Getenv("UPSTREAM_API_TOKEN"), "Tracker API token")
	root.PersistentFlags().StringVar(&flags.User, "user", "", "User ID")
	root.PersistentFlags().BoolVar(&flags.Daily, "daily", false, "Use server-side daily totals")

	root.AddCommand(
		newChartCmd(app, &flags),
		newSpeedCmd(app, &flags),
		newSummaryCmd(app, &flags),
		newHeatmapCmd(app, &flags),
		newTimezonesCmd(app),
	)
	return root
}

// OpenBackend открывает выгрузку из файла или клиента API. Второе значение — пользователь по умолчанию.
func OpenBackend(flags SourceFlags, logger zerolog.Logger) (Backend, string, error) {
	switch {
	case flags.File != "":
		store, err := dumpfile.Open(flags.File)
		if err != nil {
			return nil, "", err
		}
		return store, store.UserID(), nil
	case flags.APIURL != "":
		client, err := apiclient.New(flags.APIURL, apiclient.WithToken(flags.APIToken), apiclient.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return client, "", nil
	}
	return nil, "", errors.New("укажите --file или --api")
}

func (a *App) service(flags *SourceFlags) (*stats.Service, string, error) {
	backend, defaultUser, err := a.Open(*flags, a.Logger)
	if err != nil {
		return nil, "", err
	}
	userID := flags.User
	if userID == "" {
		userID = defaultUser
	}
	if userID == "" {
		return nil, "", errors.New("укажите --user")
	}
	svc := stats.NewService(backend, backend, nil, a.Clock, stats.Config{DailyTotals: flags.Daily}, a.Logger)
	return svc, userID, nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("вывод json: %w", err)
	}
	return nil
}
