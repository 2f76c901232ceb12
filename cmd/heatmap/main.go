package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/rf-sweep/cmd/heatmap/app"
	"github.com/roman-kulish/rf-sweep/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	config := app.NewConfig()

	var (
		format, theme, timeZone string
		minPower, maxPower      float64
		listRuns                bool
		mysql                   storage.MySQLConfig
	)

	cmd := &cobra.Command{
		Use:           "heatmap",
		Short:         "Render a stored sweep run as a waterfall image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if config.Storage.Driver == storage.DriverMySQL {
				config.Storage.MySQL = &mysql
			}
			if listRuns {
				return app.ListRuns(cmd.Context(), config, cmd.OutOrStdout())
			}

			flags := cmd.Flags()
			if flags.Changed("min-power") {
				config.MinPower = &minPower
			}
			if flags.Changed("max-power") {
				config.MaxPower = &maxPower
			}
			if timeZone != "" {
				loc, err := time.LoadLocation(timeZone)
				if err != nil {
					return err
				}
				config.TimeZone = loc
			}

			config.Format = app.ImageFormat(format)
			config.Theme = app.ColorTheme(theme)
			if err := config.Validate(); err != nil {
				return err
			}

			return app.Run(cmd.Context(), config, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.Storage.Driver, "driver", storage.DriverSqlite, "Database driver [sqlite3, mysql]")
	flags.StringVar(&config.Storage.Path, "db", "", "Path to the sqlite3 database file")
	flags.StringVar(&mysql.Addr, "mysql-addr", "", "MySQL server address, host:port")
	flags.StringVar(&mysql.User, "mysql-user", "", "MySQL user")
	flags.StringVar(&mysql.PasswordFile, "mysql-password-file", "", "File holding the MySQL password")
	flags.StringVar(&mysql.DBName, "mysql-db", "", "MySQL database name")
	flags.StringVarP(&config.RunID, "run", "r", "", "Run ID, the latest run when empty")
	flags.BoolVar(&listRuns, "list", false, "List stored runs and exit")
	flags.StringVarP(&config.OutputFile, "output", "o", "", "Path to the output file")
	flags.StringVarP(&format, "format", "f", string(app.ImagePNG), "Output image format [png, jpeg]")
	flags.StringVar(&theme, "theme", string(app.EnhancedTheme), "Color theme [classic, grayscale, jungle, thermal, marine, enhanced]")
	flags.IntVar(&config.Width, "width", 0, "Image width in columns, native resolution when 0")
	flags.IntVar(&config.RowHeight, "row-height", config.RowHeight, "Pixels per sweep")
	flags.Float64Var(&minPower, "min-power", 0, "Manual minimum power in dB")
	flags.Float64Var(&maxPower, "max-power", 0, "Manual maximum power in dB")
	flags.StringVar(&timeZone, "tz", "", "Time zone of the labels, local when empty")
	flags.BoolVar(&config.NoAnnotations, "no-annotations", false, "Disable scales and the information bar")
	flags.BoolVar(&config.NoMarkers, "no-markers", false, "Disable detected signal markers")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
