package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"reelvault/handlers"
	"reelvault/services/accounts"
	"reelvault/services/backup"
	"reelvault/services/collections"
	"reelvault/services/sessions"
	"reelvault/utils"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Accounts    *accounts.Service
	Sessions    *sessions.Service
	Collections *collections.Service
	Backup      *backup.Service
}

// NewRouter wires every route. Login is rate limited per IP; everything under
// /api except the auth endpoints requires a valid session, and account and
// backup management additionally require an admin session.
func NewRouter(svcs Services) *mux.Router {
	r := utils.NewRouter()

	authHandler := handlers.NewAuthHandler(svcs.Accounts, svcs.Sessions, svcs.Collections)
	accountsHandler := handlers.NewAccountsHandler(svcs.Accounts, svcs.Sessions)
	collectionsHandler := handlers.NewCollectionsHandler(svcs.Collections)
	backupHandler := handlers.NewBackupHandler(svcs.Backup)
	versionHandler := handlers.NewVersionHandler()

	r.HandleFunc("/api/version", versionHandler.GetVersion).Methods(http.MethodGet)

	// 5 login attempts per minute per IP
	loginLimiter := NewIPRateLimiter(rate.Every(12*time.Second), 5)
	r.Handle("/api/auth/login", RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", authHandler.Options).Methods(http.MethodOptions)
	r.HandleFunc("/api/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", authHandler.Me).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/password", authHandler.ChangePassword).Methods(http.MethodPost)

	// Authenticated routes
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(AccountAuthMiddleware(svcs.Sessions))

	authed.HandleFunc("/collections", collectionsHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/collections", collectionsHandler.Create).Methods(http.MethodPost)
	authed.HandleFunc("/collections/{id}", collectionsHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/collections/{id}", collectionsHandler.Update).Methods(http.MethodPatch)
	authed.HandleFunc("/collections/{id}", collectionsHandler.Delete).Methods(http.MethodDelete)
	authed.HandleFunc("/collections/{id}/watch", collectionsHandler.Watch).Methods(http.MethodGet)
	authed.HandleFunc("/collections/{id}/items", collectionsHandler.AddItem).Methods(http.MethodPost)
	authed.HandleFunc("/collections/{id}/items/{mediaType}/{tmdbID}", collectionsHandler.CheckItem).Methods(http.MethodGet)
	authed.HandleFunc("/collections/{id}/items/{mediaType}/{tmdbID}", collectionsHandler.RemoveItem).Methods(http.MethodDelete)

	authed.HandleFunc("/watchlist", collectionsHandler.GetWatchlist).Methods(http.MethodGet)
	authed.HandleFunc("/watchlist/{mediaType}/{tmdbID}", collectionsHandler.AddToWatchlist).Methods(http.MethodPut)
	authed.HandleFunc("/watchlist/{mediaType}/{tmdbID}", collectionsHandler.CheckWatchlist).Methods(http.MethodGet)
	authed.HandleFunc("/watchlist/{mediaType}/{tmdbID}", collectionsHandler.RemoveFromWatchlist).Methods(http.MethodDelete)

	authed.HandleFunc("/watched", collectionsHandler.GetAlreadyWatched).Methods(http.MethodGet)
	authed.HandleFunc("/watched/{mediaType}/{tmdbID}", collectionsHandler.AddToAlreadyWatched).Methods(http.MethodPut)
	authed.HandleFunc("/watched/{mediaType}/{tmdbID}", collectionsHandler.CheckAlreadyWatched).Methods(http.MethodGet)
	authed.HandleFunc("/watched/{mediaType}/{tmdbID}", collectionsHandler.RemoveFromAlreadyWatched).Methods(http.MethodDelete)

	// Admin routes
	admin := authed.NewRoute().Subrouter()
	admin.Use(AdminOnlyMiddleware())

	admin.HandleFunc("/accounts", accountsHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/accounts", accountsHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/default-password", accountsHandler.HasDefaultPassword).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{accountID}", accountsHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{accountID}", accountsHandler.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/accounts/{accountID}/password", accountsHandler.ResetPassword).Methods(http.MethodPost)

	admin.HandleFunc("/backups", backupHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/backups", backupHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/backups/prune", backupHandler.Prune).Methods(http.MethodPost)

	return r
}
