package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formdesk/formdesk/internal/access"
	"github.com/formdesk/formdesk/internal/auth"
	"github.com/formdesk/formdesk/internal/forms"
	"github.com/formdesk/formdesk/internal/logger"
	"github.com/formdesk/formdesk/internal/notify"
	"github.com/formdesk/formdesk/internal/server"
	"github.com/formdesk/formdesk/internal/store"
	memorystore "github.com/formdesk/formdesk/internal/store/memory"
	mongostore "github.com/formdesk/formdesk/internal/store/mongo"
	postgresstore "github.com/formdesk/formdesk/internal/store/postgres"
	"github.com/formdesk/formdesk/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"FORMDESK_LISTEN"`

	// Auth configuration
	JWTPublicKeyFile string `help:"path to PEM-encoded EC public key for JWT verification" env:"FORMDESK_JWT_PUBLIC_KEY_FILE" required:""`

	// Upstream services
	AccessURL      string        `help:"organisation directory service base URL" env:"FORMDESK_ACCESS_URL" required:""`
	AccessTimeout  time.Duration `help:"organisation directory request timeout" default:"30s" env:"FORMDESK_ACCESS_TIMEOUT"`
	AccessMaxTries uint          `help:"organisation directory retry attempts" default:"3" env:"FORMDESK_ACCESS_MAX_TRIES"`
	NotifyURL      string        `help:"notification delivery service URL" env:"FORMDESK_NOTIFY_URL" required:""`

	// Operational modes
	Telemetry bool `help:"enable OTLP metrics export" default:"false" env:"FORMDESK_TELEMETRY"`

	// Store configuration
	StoreType     string             `help:"store type (memory, mongo, or postgres)" default:"memory" env:"FORMDESK_STORE_TYPE" enum:"memory,mongo,postgres"`
	MongoStore    MongoStoreFlags    `embed:"" prefix:"mongo-"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type MongoStoreFlags struct {
	URI        string `help:"MongoDB connection URI" env:"FORMDESK_MONGO_URI"`
	Database   string `help:"MongoDB database name" default:"forms" env:"FORMDESK_MONGO_DATABASE"`
	Collection string `help:"MongoDB collection name" default:"Forms" env:"FORMDESK_MONGO_COLLECTION"`
}

func (s *MongoStoreFlags) Validate() error {
	if s.URI == "" {
		return errors.New("MongoDB URI is required (--mongo-uri or FORMDESK_MONGO_URI)")
	}
	return nil
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Telemetry {
		shutdown, err := telemetry.InitTelemetry(ctx, "formdesk-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	publicKeyPEM, err := os.ReadFile(c.JWTPublicKeyFile)
	if err != nil {
		return fmt.Errorf("failed to read JWT public key: %w", err)
	}

	verifier, err := auth.NewVerifier(string(publicKeyPEM))
	if err != nil {
		return fmt.Errorf("failed to create JWT verifier: %w", err)
	}

	formStore, cleanup, err := c.createFormStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	directory := access.NewClient(access.Config{
		BaseURL:  c.AccessURL,
		Timeout:  c.AccessTimeout,
		MaxTries: c.AccessMaxTries,
	})
	resolver := access.NewResolver(directory)

	sink := notify.NewHTTPSink(c.NotifyURL, 30*time.Second)
	fanout := notify.NewFanout(directory, sink)

	svc := forms.NewService(forms.ServiceConfig{
		Store:    formStore,
		Resolver: resolver,
		Fanout:   fanout,
	})

	e := server.New(svc, verifier, log)
	srv := configureHTTPServer(c.Listen, e)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("store", c.StoreType).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func (c *ServerCmd) createFormStore(ctx context.Context) (store.FormStore, func(), error) {
	switch c.StoreType {
	case "mongo":
		if err := c.MongoStore.Validate(); err != nil {
			return nil, nil, fmt.Errorf("failed to validate mongo flags: %w", err)
		}
		s, err := mongostore.NewFormStore(ctx, mongostore.Config{
			URI:        c.MongoStore.URI,
			Database:   c.MongoStore.Database,
			Collection: c.MongoStore.Collection,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(closeCtx)
		}, nil

	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, fmt.Errorf("failed to validate postgres flags: %w", err)
		}
		s, err := postgresstore.NewFormStore(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return memorystore.NewFormStore(), func() {}, nil
	}
}
