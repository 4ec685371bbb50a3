package cli

import (
	"fmt"
	"strconv"

	"github.com/ignatij/goschedule/internal/config"
	internal_http "github.com/ignatij/goschedule/internal/http"
	"github.com/ignatij/goschedule/internal/log"
	internal_storage "github.com/ignatij/goschedule/internal/storage"
	"github.com/ignatij/goschedule/pkg/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// session is an open store and the service on top of it, for one command invocation.
type session struct {
	cfg   config.Config
	store *internal_storage.SQLStore
	svc   *service.ScheduleService
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close store: %v", err)
	}
}

// SetupCLI registers every goschedule command on rootCmd. Configuration is read through v,
// with the --config, --db-driver and --db flags bound to it.
func SetupCLI(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: sqlite or postgres")
	rootCmd.PersistentFlags().String("db", "", "Database DSN (file path for sqlite)")
	_ = v.BindPFlag("db.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = v.BindPFlag("db.dsn", rootCmd.PersistentFlags().Lookup("db"))

	open := func() (*session, error) {
		cfg, err := config.Load(v)
		if err != nil {
			return nil, err
		}
		log.SetLevel(cfg.Log.Level)
		log.GetLogger().Debugf("Opening %s store at %s", cfg.DB.Driver, cfg.DB.DSN)
		store, err := internal_storage.InitStore(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			log.GetLogger().Errorf("Failed to initialize store: %v", err)
			return nil, err
		}
		svc := service.NewScheduleService(store, log.GetLogger(),
			service.WithRefreshWorkers(cfg.Refresh.Workers))
		return &session{cfg: cfg, store: store, svc: svc}, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			port, _ := cmd.Flags().GetString("port")
			if port == "" {
				port = s.cfg.HTTP.Port
			}
			return internal_http.StartServer(port, s.svc)
		},
	}
	serveCmd.Flags().String("port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(
		serveCmd,
		projectCommand(open),
		taskCommand(open),
		dependencyCommand(open),
		scheduleCommand(open),
		ganttCommand(open),
		importCommand(open),
		refreshCommand(open),
		historyCommand(open),
	)
}

func parseProjectID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project ID '%s'", arg)
	}
	return id, nil
}
