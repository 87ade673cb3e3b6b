package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/orkestra/internal/activity"
	"github.com/gosuda/orkestra/internal/anomaly"
	v1 "github.com/gosuda/orkestra/internal/api/v1"
	"github.com/gosuda/orkestra/internal/api/ws"
	"github.com/gosuda/orkestra/internal/auth"
	"github.com/gosuda/orkestra/internal/config"
	"github.com/gosuda/orkestra/internal/metrics"
	"github.com/gosuda/orkestra/internal/notify"
	"github.com/gosuda/orkestra/internal/predict"
	"github.com/gosuda/orkestra/internal/server"
	"github.com/gosuda/orkestra/internal/store/memory"
	"github.com/gosuda/orkestra/internal/store/postgres"
	redisstore "github.com/gosuda/orkestra/internal/store/redis"
	"github.com/gosuda/orkestra/internal/transport/mail"
	"github.com/gosuda/orkestra/internal/transport/slack"
	"github.com/gosuda/orkestra/internal/transport/sms"
)

type flags struct {
	envFile    string
	migrate    bool
	issueToken string
}

func main() {
	var f flags
	pflag.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pflag.BoolVar(&f.migrate, "migrate", false, "apply the database schema on startup")
	pflag.StringVar(&f.issueToken, "issue-token", "", "print an access token for the given user ID and exit")
	pflag.Parse()

	if err := run(f); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run(f flags) error {
	if err := config.LoadEnvFile(f.envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var readyFns []func(context.Context) error

	// Open the configured store.
	var store v1.DataStore
	switch cfg.Store.Driver {
	case "memory":
		if f.issueToken != "" {
			return errors.New("issue-token: the memory store is empty on every start; its seeded admin token is logged at startup")
		}
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		mem := memory.New()
		if seedErr := seedAdmin(ctx, cfg, mem); seedErr != nil {
			return seedErr
		}
		store = mem
	default:
		if cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		pg, pgErr := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if pgErr != nil {
			return pgErr
		}
		defer pg.Close()

		if f.migrate || cfg.Store.Migrate {
			if migrateErr := pg.Migrate(ctx); migrateErr != nil {
				return migrateErr
			}
			log.Info().Msg("database schema applied")
		}
		store = pg
		readyFns = append(readyFns, pg.Ping)
	}

	if f.issueToken != "" {
		return issueToken(ctx, cfg, store, f.issueToken)
	}

	m := metrics.New()

	recorderOpts := []activity.RecorderOption{
		activity.WithDedupWindow(cfg.Audit.DedupWindow),
		activity.WithMetrics(m),
	}
	scannerOpts := []anomaly.Option{
		anomaly.WithWindow(cfg.Anomaly.Window),
		anomaly.WithThreshold(cfg.Anomaly.Threshold),
		anomaly.WithMetrics(m),
	}

	// Redis is optional: it feeds the live activity stream and keeps
	// anomaly sweeps from overlapping across replicas.
	var feed *ws.Hub
	if cfg.Redis.Addr != "" {
		pubsub, redisErr := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if redisErr != nil {
			return redisErr
		}
		defer pubsub.Close()

		recorderOpts = append(recorderOpts, activity.WithPublisher(pubsub))
		scannerOpts = append(scannerOpts, anomaly.WithLocker(pubsub))
		feed = ws.NewHub(pubsub)
		readyFns = append(readyFns, pubsub.Ping)
	}

	senders := notify.NewRegistry()
	if cfg.SMTP.Host != "" {
		senders.Register(mail.New(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}))
	}
	if cfg.SMS.AccountSID != "" {
		senders.Register(sms.New(sms.Config{
			BaseURL:    cfg.SMS.BaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			Timeout:    cfg.SMS.Timeout,
		}))
	}
	if cfg.Slack.BotToken != "" {
		senders.Register(slack.New(slacklib.New(cfg.Slack.BotToken)))
	}

	recorder := activity.NewRecorder(store.Activity(), store.Users(), recorderOpts...)
	hook := activity.NewHook(recorder,
		activity.WithHookTimeout(cfg.Audit.HookTimeout),
		activity.WithHookMetrics(m),
	)

	dispatcher := notify.NewDispatcher(store.Users(), store.Projects(), store.Notifications(), senders,
		notify.WithWorkers(cfg.Alert.Workers),
		notify.WithRateLimit(cfg.Alert.Rate, cfg.Alert.RateBurst),
		notify.WithDedupWindow(cfg.Alert.DedupWindow),
		notify.WithMetrics(m),
	)

	schedule := predict.New()
	delays := notify.NewDelayChecker(store.Projects(), store.Tasks(), schedule, schedule, dispatcher)
	scanner := anomaly.NewScanner(store.Users(), store.Activity(), store.Tasks(), dispatcher, scannerOpts...)

	srv := server.New(ctx, cfg, server.Deps{
		Store:    store,
		Query:    activity.NewQueryService(store.Activity(), store.Users(), store.Projects(), store.Tasks()),
		Audit:    activity.NewInterceptor(store.Users(), hook),
		Hook:     hook,
		Delays:   delays,
		Roles:    dispatcher,
		Feed:     feed,
		Metrics:  m,
		ReadyFns: readyFns,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		return srv.Start(gctx)
	})

	g.Go(func() error {
		scanner.Run(gctx, cfg.Anomaly.Interval)
		return nil
	})

	if cfg.Alert.DelayCheckInterval > 0 {
		g.Go(func() error {
			delays.Run(gctx, cfg.Alert.DelayCheckInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Flush audit entries scheduled by requests that finished during shutdown.
	hook.Wait()

	if err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

// seedAdmin gives the memory store a first Admin and logs a token for it.
func seedAdmin(ctx context.Context, cfg *config.Config, mem *memory.Store) error {
	admin, err := mem.SeedAdmin(ctx, cfg.Store.SeedAdminEmail)
	if err != nil {
		return err
	}
	tok, err := auth.IssueAccessToken(cfg.JWT.Secret, admin.ID, admin.Role, cfg.JWT.AccessTTL)
	if err != nil {
		return err
	}
	log.Warn().
		Str("user_id", admin.ID.String()).
		Str("email", admin.Email).
		Str("token", tok).
		Msg("seeded admin for the memory store")
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// issueToken prints an access token for an existing user. It bootstraps the
// first admin session, since user sign-up lives outside this service.
func issueToken(ctx context.Context, cfg *config.Config, store v1.DataStore, raw string) error {
	userID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("issue-token: invalid user id: %w", err)
	}
	u, err := store.Users().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("issue-token: %w", err)
	}
	if u.Role == "" {
		return errors.New("issue-token: user has no role")
	}
	tok, err := auth.IssueAccessToken(cfg.JWT.Secret, u.ID, u.Role, cfg.JWT.AccessTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, tok)
	return err
}
