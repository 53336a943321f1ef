package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/komponente/internal/blob"
	"github.com/erazemk/komponente/internal/component"
	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(database *sql.DB, dialect db.Dialect, jwtSecret string, components *component.Service, images *blob.Resolver) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: database, Dialect: dialect, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: database}
	companiesHandler := &CompaniesHandler{DB: database}
	componentsHandler := &ComponentsHandler{Service: components, Images: images}

	authMW := AuthMiddleware(jwtSecret, database)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Companies (admin only).
	mux.Handle("GET /api/companies", authMW(requireAdmin(http.HandlerFunc(companiesHandler.List))))
	mux.Handle("POST /api/companies", authMW(requireAdmin(http.HandlerFunc(companiesHandler.Create))))

	// Components: permissions are checked by the component service.
	mux.Handle("GET /api/components", authMW(http.HandlerFunc(componentsHandler.List)))
	mux.Handle("POST /api/components", authMW(http.HandlerFunc(componentsHandler.Create)))
	mux.Handle("GET /api/components/{id}", authMW(http.HandlerFunc(componentsHandler.Get)))
	mux.Handle("PUT /api/components/{id}", authMW(http.HandlerFunc(componentsHandler.Update)))
	mux.Handle("DELETE /api/components/{id}", authMW(http.HandlerFunc(componentsHandler.Delete)))
	mux.Handle("GET /api/components/{id}/clone", authMW(http.HandlerFunc(componentsHandler.Clone)))
	mux.Handle("GET /api/components/{id}/image", authMW(http.HandlerFunc(componentsHandler.GetImage)))
	mux.Handle("PUT /api/components/{id}/image", authMW(http.HandlerFunc(componentsHandler.UploadImage)))
	mux.Handle("DELETE /api/components/{id}/image", authMW(http.HandlerFunc(componentsHandler.DeleteImage)))

	// Allocations.
	mux.Handle("GET /api/components/{id}/allocations", authMW(http.HandlerFunc(componentsHandler.Allocations)))
	mux.Handle("POST /api/components/{id}/allocations", authMW(http.HandlerFunc(componentsHandler.Checkout)))
	mux.Handle("POST /api/allocations/{id}/checkin", authMW(http.HandlerFunc(componentsHandler.Checkin)))

	return mux
}
