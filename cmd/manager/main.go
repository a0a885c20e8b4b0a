package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/opendatanode/manager/internal/api"
	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/service"
	mongodb "github.com/opendatanode/manager/internal/infrastructure/db/mongo"
	redisdb "github.com/opendatanode/manager/internal/infrastructure/db/redis"
	"github.com/opendatanode/manager/internal/downstream"
	"github.com/opendatanode/manager/internal/pkg/config"
	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/keystore"
	"github.com/opendatanode/manager/internal/security/password"
	"github.com/opendatanode/manager/internal/security/token"
	"github.com/opendatanode/manager/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	users := mongodb.NewUserRepository(db)
	roles := mongodb.NewRoleRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := roles.EnsureBootstrap(ctx, domain.BootstrapRoles()); err != nil {
		return err
	}
	if err := provisionSuperUser(ctx, cfg, users, log); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	// --- Credentials ---
	keys := keystore.New(keystore.Paths{
		Catalog: cfg.Keys.CatalogKeyPath,
		Storage: cfg.Keys.StorageKeyPath,
		Default: cfg.Keys.DefaultKeyPath,
	})
	forge := token.NewForge(keys,
		time.Duration(cfg.Auth.SessionTTLSeconds)*time.Second,
		time.Duration(cfg.Auth.ServiceTTLSeconds)*time.Second,
		map[string]string{
			downstream.ServiceCatalog: cfg.Catalog.ClientID,
			downstream.ServiceStorage: cfg.Storage.ClientID,
		})

	var trusted []*rsa.PublicKey
	if cfg.Keys.TrustedKeyDir != "" {
		trusted, err = keystore.TrustedPublicKeys(cfg.Keys.TrustedKeyDir)
		if err != nil {
			return err
		}
		log.Info().Int("keys", len(trusted)).Msg("key-based admin channel enabled")
	}
	verifier := token.NewVerifier(forge, trusted)
	cookies := cookie.NewManager(cfg.Auth.ConsoleCookieName, cfg.Auth.FrontCookieName,
		cfg.Auth.CookieDomain, cfg.IsProduction())

	// --- Downstream services: must resolve before serving traffic ---
	catalog := downstream.NewClient(downstream.ServiceCatalog, cfg.Catalog.URL, cfg.Catalog.ProbePath, forge, log)
	storage := downstream.NewClient(downstream.ServiceStorage, cfg.Storage.URL, cfg.Storage.ProbePath, forge, log)
	connector := downstream.NewConnector([]*downstream.Client{catalog, storage},
		cfg.Connector.Attempts, time.Duration(cfg.Connector.BackoffSeconds)*time.Second,
		cfg.Connector.TrustedDomains, log)
	if err := connector.Resolve(ctx); err != nil {
		return err
	}

	// --- HTTP ---
	authService := service.NewAuthService(users, redisdb.NewLoginGuard(rdb), log)
	e := api.NewRouter(api.Deps{
		Users:     users,
		Auth:      authService,
		UserAdmin: service.NewUserService(users, roles),
		Forge:     forge,
		Verifier:  verifier,
		Cookies:   cookies,
		Connector: connector,
		Catalog:   catalog,
		Storage:   storage,
		Group:     cfg.Auth.DefaultClientGroup,
		Mongo:     db,
		Redis:     rdb,
		Log:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}

// provisionSuperUser writes the id-0 account when credentials are
// configured, and warns when the account is missing otherwise. This is
// the only path that may set the super-user password.
func provisionSuperUser(ctx context.Context, cfg *config.Config, users *mongodb.UserRepository, log zerolog.Logger) error {
	if cfg.SuperUser.Password == "" {
		if _, err := users.FindByID(ctx, domain.SuperUserID); errors.Is(err, domain.ErrUserNotFound) {
			log.Warn().Msg("no super user provisioned and no credentials configured")
		}
		return nil
	}
	hash, err := password.Hash(cfg.SuperUser.Password)
	if err != nil {
		return err
	}
	if err := users.UpsertSuperUser(ctx, cfg.SuperUser.Username, cfg.SuperUser.Email, hash); err != nil {
		return err
	}
	log.Info().Str("username", cfg.SuperUser.Username).Msg("super user provisioned")
	return nil
}
