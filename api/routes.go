package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/servicehub/internal/config"
	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/pkg/repository"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, svc *engine.Service, users repository.UserRepo) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(TimeoutMiddleware(cfg.APITimeout))

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(users, cfg.JWTSecret, cfg.TokenDuration)
	marketHandler := NewMarketHandler(svc, users)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")
	r.HandleFunc("/v1/achievements", marketHandler.Achievements).Methods("GET")
	r.HandleFunc("/v1/providers/{email}", marketHandler.ProviderProfile).Methods("GET")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")
	apiV1.HandleFunc("/me", authHandler.Me).Methods("GET")
	apiV1.HandleFunc("/me", marketHandler.UpdateSettings).Methods("PUT")

	// Request board endpoints
	apiV1.HandleFunc("/requests", marketHandler.CreateRequest).Methods("POST")
	apiV1.HandleFunc("/requests", marketHandler.ListRequests).Methods("GET")
	apiV1.HandleFunc("/requests/{id:[0-9]+}", marketHandler.GetRequest).Methods("GET")
	apiV1.HandleFunc("/requests/{id:[0-9]+}", marketHandler.EditRequest).Methods("PUT")
	apiV1.HandleFunc("/requests/{id:[0-9]+}", marketHandler.DeleteRequest).Methods("DELETE")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/activity", marketHandler.ListActivities).Methods("GET")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/offers", marketHandler.SubmitOffer).Methods("POST")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/offers/{provider}/accept", marketHandler.AcceptOffer).Methods("POST")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/offers/{provider}", marketHandler.DeclineOffer).Methods("DELETE")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/messages", marketHandler.SendMessage).Methods("POST")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/closure", marketHandler.RequestClosure).Methods("POST")
	apiV1.HandleFunc("/requests/{id:[0-9]+}/rating", marketHandler.SubmitRating).Methods("POST")

	// Notification endpoints
	apiV1.HandleFunc("/notifications", marketHandler.ListNotifications).Methods("GET")
	apiV1.HandleFunc("/notifications/read-all", marketHandler.MarkAllRead).Methods("POST")
	apiV1.HandleFunc("/notifications/{id}/read", marketHandler.MarkRead).Methods("POST")

	return r
}
