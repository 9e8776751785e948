package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nzoschke/beatmarket/internal/config"
	"github.com/nzoschke/beatmarket/internal/db"
	"github.com/nzoschke/beatmarket/internal/repository"
	"github.com/nzoschke/beatmarket/internal/service"
	"github.com/nzoschke/beatmarket/internal/storage"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	Storage     storage.Storage
	AuthService *service.AuthService
	UserService *service.UserService
	BeatService *service.BeatService
}

type options struct {
	notifier service.Notifier
	captcha  service.CaptchaVerifier
	storage  storage.Storage
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

func WithNotifier(n service.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithCaptcha(c service.CaptchaVerifier) Option {
	return func(o *options) { o.captcha = c }
}

func WithStorage(s storage.Storage) Option {
	return func(o *options) { o.storage = s }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	beatRepository := repository.NewBeatRepository(database)

	// Storage
	fileStorage := o.storage
	if fileStorage == nil {
		fileStorage, err = storage.New(ctx, cfg)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	// Services
	tokens := service.NewVerificationTokenIssuer(cfg.TokenEmailVerifyExpiry)

	notifier := o.notifier
	if notifier == nil {
		notifier = service.NewEmailService(
			cfg.ResendAPIKey,
			cfg.EmailFrom,
			cfg.AppName,
			tokens.TTL(),
			cfg.IsDevelopment() && cfg.ResendAPIKey == "",
		)
	}

	captcha := o.captcha
	if captcha == nil {
		captcha = service.NoopCaptcha{}
		if cfg.CaptchaEnabled() {
			captcha = service.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaVerifyURL, cfg.CaptchaTimeout)
		}
	}

	authService := service.NewAuthService(
		userRepository,
		service.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		service.NewSessionIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		notifier,
		captcha,
		cfg.AppURL,
		cfg.NotifyTimeout,
	)
	userService := service.NewUserService(userRepository)
	beatService := service.NewBeatService(beatRepository, fileStorage, cfg.MaxUploadSize)

	return &App{
		Cfg:         cfg,
		DB:          database,
		Storage:     fileStorage,
		AuthService: authService,
		UserService: userService,
		BeatService: beatService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
