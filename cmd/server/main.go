// Command server runs the terrenos marketplace API.
//
// @title                      Terrenos API
// @version                    1.0
// @description                Land-parcel marketplace: browse, publish and manage listings.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/bitafam/terrenos/docs"
	"github.com/bitafam/terrenos/internal/config"
	httpapi "github.com/bitafam/terrenos/internal/http"
	"github.com/bitafam/terrenos/internal/media"
	"github.com/bitafam/terrenos/internal/notify"
	"github.com/bitafam/terrenos/internal/observability"
	"github.com/bitafam/terrenos/internal/repo"
	"github.com/bitafam/terrenos/internal/session"
	"github.com/bitafam/terrenos/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// purgeEvery is how often expired Idempotency-Key records are removed.
const purgeEvery = time.Hour

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	dsn := cfg.DB.Path
	if cfg.DB.Driver == "postgres" {
		dsn = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Media.Backend).Msg("media store")
	}

	manager, closeRevoker, err := newSessionManager(ctx, db, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("session manager")
	}
	defer closeRevoker()
	defer manager.Close()

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Config:   cfg,
		Media:    store,
		Sessions: manager,
		Notifier: newNotifier(cfg.Contact),
	})

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newMediaStore(ctx context.Context, mc config.MediaConfig) (media.Store, error) {
	if mc.Backend == "memory" {
		log.Warn().Msg("media backend is in-memory; uploaded images are lost on restart")
		base := mc.PublicBaseURL
		if base == "" {
			base = "http://localhost/media"
		}
		return media.NewMemoryStore(base), nil
	}
	return media.NewMinioStore(ctx, media.MinioOptions{
		Endpoint:      mc.Endpoint,
		AccessKey:     mc.AccessKey,
		SecretKey:     mc.SecretKey,
		Bucket:        mc.Bucket,
		UseSSL:        mc.UseSSL,
		PublicBaseURL: mc.PublicBaseURL,
	})
}

// newSessionManager builds the session context. The returned func releases
// the revocation backend.
func newSessionManager(ctx context.Context, db *gorm.DB, ac config.AuthConfig) (*session.Manager, func(), error) {
	signer, err := session.NewSigner(ac.JWTSecret)
	if err != nil {
		return nil, nil, err
	}

	var (
		revoker session.Revoker = session.NewMemoryRevoker()
		release                 = func() {}
	)
	if ac.Revocation == "redis" {
		rr, err := session.DialRedisRevoker(ctx, ac.RedisAddr, ac.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		revoker = rr
		release = func() {
			if err := rr.Close(); err != nil {
				log.Warn().Err(err).Msg("close redis revoker")
			}
		}
	}

	m, err := session.NewManager(session.Options{
		Accounts: session.NewGormStore(db),
		Signer:   signer,
		Revoker:  revoker,
		TTL:      ac.SessionTTL,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return m, release, nil
}

func newNotifier(cc config.ContactConfig) notify.Notifier {
	if !cc.SMTPEnabled() {
		return notify.LogNotifier{}
	}
	n, err := notify.NewSMTPNotifier(cc.SMTPHost, cc.SMTPPort, cc.SMTPUser, cc.SMTPPass, cc.SMTPFrom, cc.Email)
	if err != nil {
		log.Warn().Err(err).Msg("smtp disabled; inquiries will only be logged")
		return notify.LogNotifier{}
	}
	return n
}

func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
			}
		}
	}
}
