package app

import (
	"context"
	"fmt"

	"github.com/onpipiece/onpi-platform/internal/config"
	"github.com/onpipiece/onpi-platform/internal/service"
	"github.com/onpipiece/onpi-platform/internal/store"
)

type App struct {
	Cfg          *config.Config
	Store        store.Store
	AuthService  *service.AuthService
	ResetService *service.ResetService
	UserService  *service.UserService
	EmailService *service.EmailService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Bind exactly one backend for the process lifetime.
	st, err := store.Open(ctx, store.Options{
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		DatabaseURL:   cfg.DatabaseURL,
		Driver:        cfg.DBDriver,
		DataPath:      cfg.DataPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(st)
	resetService := service.NewResetService(st, emailService, cfg.ResetTokenExpiry, cfg.DebugResetTokens())
	userService := service.NewUserService(st, authService)

	return &App{
		Cfg:          cfg,
		Store:        st,
		AuthService:  authService,
		ResetService: resetService,
		UserService:  userService,
		EmailService: emailService,
	}, nil
}

func (a *App) Close(ctx context.Context) error {
	if a.Store != nil {
		return a.Store.Close(ctx)
	}
	return nil
}
