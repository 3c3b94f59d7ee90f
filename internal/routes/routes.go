package routes

import (
	"net/http"

	"github.com/onpipiece/onpi-platform/internal/app"
	"github.com/onpipiece/onpi-platform/internal/handler"
	"github.com/onpipiece/onpi-platform/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	auth := handler.NewAuthHandler(app.AuthService)
	reset := handler.NewResetHandler(app.ResetService)
	user := handler.NewUserHandler(app.UserService)

	mux := http.NewServeMux()

	// Credential endpoints (rate limited)
	rateLimiter := middleware.RateLimitCredentials()
	mux.HandleFunc("POST /api/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/forgot-password", rateLimiter(reset.ForgotPassword))
	mux.HandleFunc("POST /api/reset-password", rateLimiter(reset.ResetPassword))

	// Authenticated endpoints (bearer session token)
	mux.HandleFunc("POST /api/change-password", auth.ChangePassword)
	mux.HandleFunc("GET /api/profile", user.Profile)
	mux.HandleFunc("POST /api/user/update", user.Update)

	// Public lookups
	mux.HandleFunc("GET /api/health", user.Health)
	mux.HandleFunc("GET /api/users", user.List)
	mux.HandleFunc("GET /api/user/{account_id}", user.ByAccountID)

	return middleware.Chain(mux,
		middleware.CORS,
		middleware.RequestLogging,
	)
}
