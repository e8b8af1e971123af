// README: Service entrypoint. Wires config, stores, geo index, routing,
// notifications, and the HTTP surface, then runs until SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"campusride/internal/config"
	internalhttp "campusride/internal/http"
	"campusride/internal/identity"
	"campusride/internal/infra"
	"campusride/internal/logging"
	"campusride/internal/modules/account"
	"campusride/internal/modules/matching"
	"campusride/internal/modules/payment"
	"campusride/internal/modules/ride"
	"campusride/internal/notify"
	"campusride/internal/routing"
	"campusride/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New("campusride", os.Getenv("CAMPUSRIDE_ENV") != "production")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	accounts := account.NewPGStore(db)
	rideStore := ride.NewPGStore(db)

	var index matching.GeoIndex
	if cfg.Redis.Addr != "" {
		index = matching.NewRedisGeoIndex(infra.NewRedis(cfg.Redis.Addr))
		log.Info("geo index: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		index = matching.NewMemGeoIndex()
		log.Warn("geo index: in-memory, single node only")
	}

	var router routing.Router
	if cfg.Maps.APIKey != "" {
		router, err = routing.NewGoogleRouter(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("maps client", zap.Error(err))
		}
	} else {
		router = routing.NewEstimator()
		log.Warn("routing: haversine estimator, no maps api key")
	}

	notifier := buildNotifier(ctx, cfg, accounts, log)

	var verifier identity.Verifier
	if cfg.Firebase.ProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID},
			option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		if err != nil {
			log.Fatal("firebase app", zap.Error(err))
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			log.Fatal("firebase auth", zap.Error(err))
		}
		verifier = identity.NewFirebaseVerifier(authClient)
	} else {
		verifier = identity.NewJWTManager([]byte(cfg.Auth.JWTSecret), 24*time.Hour)
	}

	rides := ride.NewService(rideStore, accounts, notifier, log)
	matcher := matching.NewService(rideStore, accounts, index, router, notifier, matching.Config{
		RadiusM:       cfg.Matching.RadiusMeters,
		MaxCandidates: cfg.Matching.MaxCandidates,
		OfferWindow:   time.Duration(cfg.Matching.OfferWindowMin) * time.Minute,
		SweepInterval: time.Duration(cfg.Matching.SweepIntervalSec) * time.Second,
	}, log)
	payments := payment.NewService(rideStore, []byte(cfg.Payment.GatewaySecret), notifier, log)

	go matcher.RunExpirySweep(ctx)

	srv := internalhttp.NewServer(cfg.HTTP.Addr, internalhttp.Deps{
		Verifier: verifier,
		Matcher:  matcher,
		Rides:    rides,
		Payments: payments,
		Log:      log,
	})

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// buildNotifier prefers FCM, then AMQP, then logs.
func buildNotifier(ctx context.Context, cfg config.Config, accounts account.Store, log *zap.Logger) notify.Notifier {
	if cfg.Firebase.ProjectID != "" && cfg.Firebase.CredentialsFile != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID},
			option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		if err != nil {
			log.Warn("firebase app init failed, falling back", zap.Error(err))
		} else if client, err := app.Messaging(ctx); err != nil {
			log.Warn("fcm client init failed, falling back", zap.Error(err))
		} else {
			lookup := func(ctx context.Context, userID types.ID) (string, error) {
				u, err := accounts.GetUser(ctx, userID)
				if err != nil {
					return "", err
				}
				return u.DeviceToken, nil
			}
			log.Info("notifier: fcm")
			return notify.NewFCMNotifier(client, lookup)
		}
	}

	if cfg.AMQP.URL != "" {
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			log.Warn("amqp dial failed, falling back to log notifier", zap.Error(err))
		} else if ch, err := conn.Channel(); err != nil {
			log.Warn("amqp channel failed, falling back to log notifier", zap.Error(err))
		} else if n, err := notify.NewAMQPNotifier(ch); err != nil {
			log.Warn("amqp exchange declare failed, falling back to log notifier", zap.Error(err))
		} else {
			log.Info("notifier: amqp")
			return n
		}
	}

	log.Info("notifier: log only")
	return notify.NewLogNotifier(log)
}
