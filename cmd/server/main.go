package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/haldane-systems/carecircle-server/internal/auth"
	"github.com/haldane-systems/carecircle-server/internal/config"
	"github.com/haldane-systems/carecircle-server/internal/database"
	"github.com/haldane-systems/carecircle-server/internal/handler"
	"github.com/haldane-systems/carecircle-server/internal/mail"
	"github.com/haldane-systems/carecircle-server/internal/otp"
	"github.com/haldane-systems/carecircle-server/internal/queue"
	"github.com/haldane-systems/carecircle-server/internal/repository"
	"github.com/haldane-systems/carecircle-server/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()

	// Redis backs the OTP store and the rate limiter. Both degrade when it
	// is unreachable: the OTP issuer falls back to the in-process store
	// (single-instance only) and the limiter disables itself.
	rdb := config.NewRedisClient()
	var otpStore otp.Store
	if rdb != nil {
		otpStore = otp.NewRedisStore(rdb)
	} else {
		log.Printf("redis unavailable; using in-process OTP store and no rate limiting")
		otpStore = otp.NewMemoryStore()
	}

	accounts := repository.NewAccountRepo(db)
	sessions := repository.NewSessionRepo(db)

	codes := otp.NewIssuer(otpStore, cfg.Auth.OTPTTL, cfg.Auth.OTPResendCooldown)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.Auth.AccessTTL)

	// Auth flows publish mail to the broker; the consumer below drains the
	// queue and delivers over SMTP (or logs, when SMTP is unconfigured).
	mailer := mail.NewQueueSender(queue.BrokerURL())
	var deliverer queue.Deliverer
	if cfg.Mail.Host != "" {
		deliverer = mail.NewSMTPSender(cfg.Mail)
	} else {
		log.Printf("smtp unconfigured; outbound mail will be logged, not delivered")
		deliverer = mail.LogSender{}
	}
	go func() {
		if err := queue.StartMailConsumer(deliverer); err != nil {
			log.Printf("mail-consumer stopped: %v", err)
		}
	}()

	svc := auth.NewService(accounts, sessions, codes, hasher, tokens, mailer, cfg.Auth)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = time.Minute
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	authHandler := handler.NewAuthHandler(svc, cfg.Env == "prod")
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, tokens, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("server stopped")
}
