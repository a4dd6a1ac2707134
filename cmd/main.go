// cmd/main.go

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/api"
	"github.com/invoicing-desk/pkg/config"
	"github.com/invoicing-desk/pkg/desk"
	"github.com/invoicing-desk/pkg/mirror"
	"github.com/invoicing-desk/pkg/render"
	"github.com/invoicing-desk/pkg/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicing-desk",
		Usage: "create, store and report on PDF invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"INVOICES_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "invoice directory (overrides configuration)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			nextNumberCommand(),
			listCommand(),
			reportsCommand(),
			createCommand(),
			deleteCommand(),
			restoreCommand(),
			openCommand(),
		},
	}
}

// env is what a command needs; close releases it.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	desk   *desk.Service
	db     *sql.DB
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("dir"); dir != "" {
		cfg.InvoicesDir = dir
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.InvoicesDir, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	renderer := render.New(render.WithCurrency(cfg.Currency), render.WithLogger(logger.Named("render")))

	e := &env{cfg: cfg, logger: logger}
	var opts []desk.Option
	if cfg.S3.Bucket != "" {
		m, err := mirror.NewS3(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			logger.Warn("s3 mirror disabled", zap.Error(err))
		} else {
			opts = append(opts, desk.WithMirror(m))
		}
	}
	if cfg.Postgres.DSN != "" {
		if ledger, err := e.openLedger(c.Context); err != nil {
			logger.Warn("postgres ledger disabled", zap.Error(err))
		} else {
			opts = append(opts, desk.WithMirror(ledger))
		}
	}
	e.desk = desk.New(st, renderer, logger.Named("desk"), opts...)
	return e, nil
}

func (e *env) openLedger(ctx context.Context) (*mirror.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := mirror.OpenPostgres(ctx, e.cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	ledger := mirror.NewLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	e.db = db
	return ledger, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.logger.Sync()
}

// action wraps a command body with setup and teardown.
func action(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(c, e)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the local HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides configuration)"},
		},
		Action: action(func(c *cli.Context, e *env) error {
			addr := e.cfg.HTTP.Addr
			if a := c.String("addr"); a != "" {
				addr = a
			}
			srv := &http.Server{
				Addr:         addr,
				Handler:      api.New(e.desk, e.logger.Named("api")).Routes(),
				IdleTimeout:  time.Minute,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownError := make(chan error, 1)
			go func() {
				<-ctx.Done()
				e.logger.Info("shutting down server")
				sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				shutdownError <- srv.Shutdown(sctx)
			}()

			e.logger.Info("starting server", zap.String("addr", addr), zap.String("dir", e.cfg.InvoicesDir))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return <-shutdownError
		}),
	}
}
