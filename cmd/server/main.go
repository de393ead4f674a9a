package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/accounts"
	"github.com/sudo-init-do/coinclicker/internal/admin"
	"github.com/sudo-init-do/coinclicker/internal/auth"
	"github.com/sudo-init-do/coinclicker/internal/commission"
	"github.com/sudo-init-do/coinclicker/internal/config"
	"github.com/sudo-init-do/coinclicker/internal/db"
	"github.com/sudo-init-do/coinclicker/internal/feed"
	"github.com/sudo-init-do/coinclicker/internal/logging"
	"github.com/sudo-init-do/coinclicker/internal/memstore"
	"github.com/sudo-init-do/coinclicker/internal/metrics"
	mware "github.com/sudo-init-do/coinclicker/internal/middleware"
	"github.com/sudo-init-do/coinclicker/internal/reward"
	"github.com/sudo-init-do/coinclicker/internal/wallet"
)

// accountStore is everything the server asks of the account table.
type accountStore interface {
	reward.AccountStore
	reward.EarningStore
	reward.CommissionOutbox
	admin.Source
	accounts.Store
	mware.RoleChecker
	auth.RoleGranter
}

type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Recorder

	pool  *pgxpool.Pool
	redis *redis.Client

	accounts    accountStore
	withdrawals wallet.Withdrawals

	dispatcher commission.Dispatcher
	queue      *commission.Queue
	worker     *asynq.Server
	inline     *commission.Inline
	sweepDone  chan struct{}

	hub *feed.Hub
	svc *wallet.Service
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	if err := a.openStores(ctx); err != nil {
		log.WithError(err).Fatal("storage unavailable")
	}
	a.startCommissions(ctx)

	a.hub = feed.NewHub(log)
	a.svc = wallet.NewService(wallet.Deps{
		Accounts:    a.accounts,
		Earnings:    a.accounts,
		Owed:        a.accounts,
		Withdrawals: a.withdrawals,
		Dispatcher:  a.dispatcher,
		Feed:        a.hub,
		Log:         log,
		Metrics:     a.metrics,
		MaxAttempts: cfg.ClickMaxAttempts,
	})

	e := a.routes()

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	a.close()
}

func (a *app) openStores(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory storage")
		a.accounts = memstore.NewAccounts()
		a.withdrawals = memstore.NewWithdrawals()
		return nil
	}

	pool, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	a.pool = pool
	a.accounts = db.NewAccountRepository(pool)
	a.withdrawals = db.NewWithdrawalRepository(pool)
	a.log.Info("connected to Postgres")
	return nil
}

// startCommissions picks the dispatcher and starts the sweeper that replays
// commissions still owed after a lost dispatch.
func (a *app) startCommissions(ctx context.Context) {
	proc := commission.NewProcessor(a.accounts, reward.NewPropagator(a.accounts, a.accounts), a.accounts, a.log, a.metrics)

	if a.cfg.CommissionMode == config.CommissionInline {
		a.inline = commission.NewInline(proc, a.cfg.CommissionMaxRetry)
		a.dispatcher = a.inline
		a.log.Info("commission dispatch inline")
	} else {
		a.startQueue(proc)
	}

	sweeper := commission.NewSweeper(a.accounts, a.dispatcher, a.cfg.CommissionSweepAge, a.log, a.metrics)
	a.sweepDone = make(chan struct{})
	go func() {
		defer close(a.sweepDone)
		sweeper.Run(ctx, a.cfg.CommissionSweepInterval)
	}()
}

func (a *app) startQueue(proc *commission.Processor) {
	opt := asynq.RedisClientOpt{Addr: a.cfg.RedisAddr}
	a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	a.queue = commission.NewQueue(opt, a.cfg.CommissionMaxRetry)
	a.dispatcher = a.queue
	a.worker = commission.NewServer(opt, 5)
	if err := a.worker.Start(proc.ServeMux()); err != nil {
		a.log.WithError(err).Fatal("commission worker failed to start")
	}
	a.log.WithField("addr", a.cfg.RedisAddr).Info("asynq initialized")
}

func (a *app) close() {
	if a.sweepDone != nil {
		<-a.sweepDone
	}
	if a.worker != nil {
		a.worker.Shutdown()
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.inline != nil {
		a.inline.Wait()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// ready reports the first dependency that does not answer.
func (a *app) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return errors.New("db unreachable")
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return errors.New("redis unreachable")
		}
	}
	return nil
}
