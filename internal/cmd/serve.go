package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/events"
	httpapi "github.com/tbourn/go-lead-intake/internal/http"
	"github.com/tbourn/go-lead-intake/internal/observability"
	"github.com/tbourn/go-lead-intake/internal/repo"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve starts the HTTP API, migrating the schema first. It drains
in-flight requests on SIGINT/SIGTERM for up to SHUTDOWN_TIMEOUT.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if servePort != "" {
		cfg.Port = servePort
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion())
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	pub, err := newPublisher()
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, pub, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion()).Str("driver", cfg.DB.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeLoop(gctx, db, cfg.IdempotencyPurgeInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// newPublisher connects to RabbitMQ when AMQP_URL is set. A configured but
// unreachable broker is a startup error.
func newPublisher() (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		log.Info().Msg("AMQP_URL not set; lead events disabled")
		return events.NopPublisher{}, nil
	}
	p, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing lead events")
	return p, nil
}

// purgeLoop deletes expired idempotency records until ctx is done.
func purgeLoop(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			purgeOnce(ctx, db)
		}
	}
}

func purgeOnce(ctx context.Context, db *gorm.DB) int64 {
	n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
	if err != nil {
		log.Warn().Err(err).Msg("idempotency purge failed")
		return 0
	}
	if n > 0 {
		log.Debug().Int64("deleted", n).Msg("idempotency purge")
	}
	return n
}
