package api

import (
	"time"

	"lexchat-backend/internal/config"
	"lexchat-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RequestTimeout is the minimum per-request deadline. Routes that wait on the
// completion API get the completion timeout plus a margin when that is longer.
const RequestTimeout = 120 * time.Second

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler      *handlers.AuthHandler
	ChatHandler      *handlers.ChatHandlers
	GuestChatHandler *handlers.GuestChatHandler
	AdminHandler     *handlers.AdminHandler
	Config           *config.Config
	Logger           zerolog.Logger
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(deps.Config)))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", AdminAPIKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/", handlers.HandleHealth)
	r.Get("/health", handlers.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	jwtAuth := JwtAuthMiddleware(deps.Config.JWTSecret, deps.Logger)

	r.Route("/v1", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.AuthHandler.HandleRegister)
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.With(jwtAuth).Get("/me", deps.AuthHandler.HandleMe)
		})

		if deps.GuestChatHandler != nil {
			r.Post("/guest-chat", deps.GuestChatHandler.HandleGuestChat)
		} else {
			deps.Logger.Warn().Msg("GuestChatHandler dependency is nil, skipping /v1/guest-chat route")
		}

		// --- Authenticated Routes (JWT Required) ---
		if deps.ChatHandler != nil {
			r.Route("/chat", func(r chi.Router) {
				r.Use(jwtAuth)
				r.Get("/", deps.ChatHandler.HandleListChats)
				r.Post("/", deps.ChatHandler.HandleCreateChat)
				r.Post("/send", deps.ChatHandler.HandleSendMessage)
				r.Get("/{chatID}/messages", deps.ChatHandler.HandleListMessages)
				r.Post("/{chatID}/messages", deps.ChatHandler.HandleSendToChat)
				r.Patch("/{chatID}", deps.ChatHandler.HandleRenameChat)
				r.Delete("/{chatID}", deps.ChatHandler.HandleDeleteChat)
			})
		} else {
			deps.Logger.Warn().Msg("ChatHandler dependency is nil, skipping /v1/chat routes")
		}

		// --- Admin Routes (API key) ---
		if deps.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminAPIKeyMiddleware(deps.Config.AdminAPIKey))
				r.Get("/users", deps.AdminHandler.HandleListUsers)
				r.Patch("/users/{userID}/plan", deps.AdminHandler.HandleUpdateUserPlan)
			})
		} else {
			deps.Logger.Warn().Msg("AdminHandler dependency is nil, skipping /v1/admin routes")
		}
	})

	return r
}

func requestTimeout(cfg *config.Config) time.Duration {
	timeout := RequestTimeout
	if t := cfg.LLM.Timeout() + 30*time.Second; t > timeout {
		timeout = t
	}
	return timeout
}
