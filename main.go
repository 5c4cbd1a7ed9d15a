package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"conduit-backend/internal/api"
	"conduit-backend/internal/auth"
	"conduit-backend/internal/config"
	"conduit-backend/internal/database"
	"conduit-backend/internal/live"
	"conduit-backend/internal/logging"
	"conduit-backend/internal/seed"
	"conduit-backend/internal/session"
)

const usage = `Usage:
  conduit-backend [serve] [flags]     start the HTTP server
  conduit-backend seed --fixtures F   load demo content from a YAML file

Run a command with --help to list its flags.
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "seed") {
		cmd, args = args[0], args[1:]
	}

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	fixtures := fs.String("fixtures", "", "fixtures file (seed only)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "seed":
		err = runSeed(ctx, cfg, logger, *fixtures)
	default:
		err = runServe(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("exiting", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	logger.Info("opening database", "path", cfg.Database.Path)
	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) error {
	if path == "" {
		return errors.New("--fixtures is required")
	}
	fixtures, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder := seed.NewSeeder(database.NewUserRepo(db), database.NewArticleRepo(db), cfg.Auth.BcryptCost, logger)
	res, err := seeder.Apply(ctx, fixtures)
	if err != nil {
		return err
	}
	logger.Info("fixtures loaded", "users", res.Users, "articles", res.Articles, "follows", res.Follows)
	return nil
}

// sessionStore picks the backing store for the configured strategy. A nil
// store keeps the whole session in the cookie.
func sessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreDatabase:
		return database.NewSessionRepo(db), func() {}, nil
	case config.StoreRedis:
		client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := sessionStore(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer closeStore()

	sessions, err := session.NewManager(session.Config{
		CookieName: cfg.Session.CookieName,
		Secrets:    cfg.Session.Secrets,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.IsProduction(),
	}, store)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	users := database.NewUserRepo(db)
	authSvc, err := auth.NewService(users, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	limiter := auth.NewRateLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow, cfg.Auth.LoginWindow)
	defer limiter.Close()

	var oidcClient *auth.OIDCClient
	if cfg.OIDC.Enabled {
		oidcClient, err = auth.NewOIDCClient(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			Scopes:       cfg.OIDC.Scopes,
		})
		if err != nil {
			return fmt.Errorf("oidc: %w", err)
		}
		logger.Info("oidc sign-in enabled", "issuer", cfg.OIDC.IssuerURL)
	}

	h := api.NewHandler(api.Deps{
		Logger:         logger,
		Sessions:       sessions,
		Auth:           authSvc,
		Users:          users,
		Articles:       database.NewArticleRepo(db),
		Comments:       database.NewCommentRepo(db),
		Tags:           database.NewTagRepo(db),
		Audit:          database.NewAuditRepo(db),
		Hub:            live.NewHub(16),
		LoginLimiter:   limiter,
		OIDC:           oidcClient,
		PageSize:       cfg.App.PageSize,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	e := api.NewServer(h)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting conduit backend",
			"addr", cfg.ListenAddr(),
			"environment", cfg.Environment,
			"session_store", cfg.Session.Store,
		)
		errCh <- e.Start(cfg.ListenAddr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
