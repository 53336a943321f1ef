package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/komponente/internal/model"
	"github.com/erazemk/komponente/internal/store"
)

// CompaniesHandler manages tenants (admin only).
type CompaniesHandler struct {
	DB *sql.DB
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/companies.
func (h *CompaniesHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := store.ListCompanies(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list companies", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list companies")
		return
	}
	if companies == nil {
		companies = []model.Company{}
	}
	jsonResponse(w, http.StatusOK, companies)
}

// Create handles POST /api/companies.
func (h *CompaniesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	company, err := store.CreateCompany(r.Context(), h.DB, req.Name)
	if err != nil {
		jsonError(w, http.StatusConflict, "company already exists")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("company created", "user", claims.Username, "company", company.Name)
	jsonResponse(w, http.StatusCreated, company)
}
