package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/docgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/harvest-ledger/api"
	"github.com/sksmith/harvest-ledger/config"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/db"
	"github.com/sksmith/harvest-ledger/db/ledgerrepo"
	"github.com/sksmith/harvest-ledger/db/usrrepo"
	"github.com/sksmith/harvest-ledger/queue"

	"github.com/common-nighthawk/go-figure"
)

var (
	configName = flag.String("config", "config", "name of the yaml configuration file, without extension")
	routes     = flag.Bool("routes", false, "print the REST route documentation as markdown and exit")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(*configName)

	configLogging(cfg)
	printLogHeader(cfg)
	cfg.Print()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	if *routes {
		fmt.Println(docgen.MarkdownRoutesDoc(app.router, docgen.MarkdownOpts{
			ProjectPath: "github.com/sksmith/harvest-ledger",
			Intro:       "Quantity ledger REST API.",
		}))
		return
	}

	srv := &http.Server{Addr: ":" + cfg.Port.Value, Handler: app.router}
	go func() {
		log.Info().Str("port", cfg.Port.Value).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down cleanly")
	}
}

type application struct {
	router  chi.Router
	ledgers ledger.Service
	users   user.Service
	hub     *ledger.Hub
	events  ledger.EventSink
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	ledgerRepo, userRepo, err := configRepos(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var bq *bunnyq.BunnyQ
	if !cfg.RabbitMQ.Mock.Value {
		bq = rabbit(ctx, cfg)
	}
	events := configEventQueue(bq, cfg)

	log.Info().Msg("creating ledger service...")
	hub := ledger.NewHub()
	ledgerService := ledger.NewService(ledgerRepo,
		ledger.WithMaxRetries(cfg.Ledger.MaxRetries.Value),
		ledger.WithAggregateSaleReducesTotal(cfg.Ledger.AggregateSaleReducesTotal.Value),
		ledger.WithBatchSaleReducesTotal(cfg.Ledger.BatchSaleReducesTotal.Value),
		ledger.WithStrictRelease(cfg.Ledger.StrictRelease.Value),
		ledger.WithCommitHooks(ledger.SinkHook(events), hub),
	)

	log.Info().Msg("creating user service...")
	userService := user.NewService(userRepo)
	if err = bootstrapAdmin(ctx, cfg, userService); err != nil {
		return nil, err
	}

	if bq != nil {
		log.Info().Msg("consuming ledger registrations...")
		registrations := queue.NewRegistrationQueue(bq, cfg.RabbitMQ.Registration.Queue.Value, cfg.RabbitMQ.Registration.Dlt.Exchange.Value)
		go registrations.ConsumeRegistrations(ctx, ledgerService)
	}

	log.Info().Msg("configuring router...")
	r := api.ConfigureRouter(cfg, ledgerService, userService, hub)

	return &application{
		router:  r,
		ledgers: ledgerService,
		users:   userService,
		hub:     hub,
		events:  events,
	}, nil
}

func configRepos(ctx context.Context, cfg *config.Config) (ledger.Repository, user.Repository, error) {
	if cfg.Db.InMemory.Value {
		log.Warn().Msg("keeping ledgers in memory, nothing will survive a restart")
		return ledgerrepo.NewMemoryRepo(), usrrepo.NewMemoryRepo(), nil
	}

	dbPool, err := db.ConnectDb(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return ledgerrepo.NewPostgresRepo(dbPool), usrrepo.NewPostgresRepo(dbPool, cfg.Ledger.UserCacheSize.Value), nil
}

func configEventQueue(bq *bunnyq.BunnyQ, cfg *config.Config) ledger.EventSink {
	if bq == nil {
		log.Info().Msg("creating mock queue...")
		return queue.NewMockQueue()
	}
	return queue.New(bq, cfg.RabbitMQ.Stock.Exchange.Value, cfg.RabbitMQ.Reservation.Exchange.Value)
}

// bootstrapAdmin creates the configured administrator so a fresh deployment has someone who can create users.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users user.Service) error {
	if cfg.Admin.Pass.Value == "" {
		return nil
	}

	_, err := users.Get(ctx, cfg.Admin.User.Value)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	log.Info().Str("username", cfg.Admin.User.Value).Msg("creating administrator")
	_, err = users.Create(ctx, user.CreateUserRequest{
		Username:          cfg.Admin.User.Value,
		Role:              ledger.RoleAdmin,
		PlainTextPassword: cfg.Admin.Pass.Value,
	})
	return err
}

func rabbit(ctx context.Context, cfg *config.Config) *bunnyq.BunnyQ {
	log.Info().Str("host", cfg.RabbitMQ.Host.Value).Msg("connecting to rabbitmq...")

	osChannel := make(chan os.Signal, 1)
	signal.Notify(osChannel, syscall.SIGTERM)

	return bunnyq.New(ctx,
		bunnyq.Address{
			User: cfg.RabbitMQ.User.Value,
			Pass: cfg.RabbitMQ.Pass.Value,
			Host: cfg.RabbitMQ.Host.Value,
			Port: cfg.RabbitMQ.Port.Value,
		},
		osChannel,
		bunnyq.LogHandler(logger{}),
	)
}

type logger struct {
}

func (l logger) Log(_ context.Context, level bunnyq.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case bunnyq.LogLevelTrace:
		evt = log.Trace()
	case bunnyq.LogLevelDebug:
		evt = log.Debug()
	case bunnyq.LogLevelInfo:
		evt = log.Info()
	case bunnyq.LogLevelWarn:
		evt = log.Warn()
	case bunnyq.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}

func printLogHeader(cfg *config.Config) {
	if cfg.Log.Structured.Value {
		log.Info().Str("application", cfg.AppName.Value).
			Str("revision", cfg.Revision.Value).
			Str("version", cfg.AppVersion.Value).
			Str("sha1ver", cfg.Sha1Version.Value).
			Str("build-time", cfg.BuildTime.Value).
			Str("profile", cfg.Profile.Value).
			Str("config-source", cfg.Config.Source.Value).
			Str("config-branch", cfg.Config.Spring.Branch.Value).
			Send()
	} else {
		f := figure.NewFigure(cfg.AppName.Value, "", true)
		f.Print()

		log.Info().Msg("=============================================")
		log.Info().Msg(fmt.Sprintf("       Revision: %s", cfg.Revision.Value))
		log.Info().Msg(fmt.Sprintf("        Profile: %s", cfg.Profile.Value))
		log.Info().Msg(fmt.Sprintf("  Config Server: %s - %s", cfg.Config.Source.Value, cfg.Config.Spring.Branch.Value))
		log.Info().Msg(fmt.Sprintf("    Tag Version: %s", cfg.AppVersion.Value))
		log.Info().Msg(fmt.Sprintf("   Sha1 Version: %s", cfg.Sha1Version.Value))
		log.Info().Msg(fmt.Sprintf("     Build Time: %s", cfg.BuildTime.Value))
		log.Info().Msg("=============================================")
	}
}

func configLogging(cfg *config.Config) {
	log.Info().Msg("configuring logging...")

	if !cfg.Log.Structured.Value {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Log.Level.Value)
	if err != nil {
		log.Warn().Str("loglevel", cfg.Log.Level.Value).Err(err).Msg("defaulting to info")
		level = zerolog.InfoLevel
	}
	log.Info().Str("loglevel", level.String()).Msg("setting log level")
	zerolog.SetGlobalLevel(level)
}
