package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"waterdash/internal/dataset"
	"waterdash/internal/middleware"
	"waterdash/internal/model"
	"waterdash/internal/service"
	"waterdash/pkg/apierror"
)

// DataHandler serves the KPI tables behind the dashboard. Every dataset
// response is row-filtered to the caller's country before it leaves the
// process.
type DataHandler struct {
	data          *dataset.Store
	access        *service.AccessService
	export        *service.ExportService
	countries     []string
	countryColumn string
}

func NewDataHandler(data *dataset.Store, access *service.AccessService, export *service.ExportService, countries []string, countryColumn string) *DataHandler {
	if countryColumn == "" {
		countryColumn = "country"
	}
	return &DataHandler{
		data:          data,
		access:        access,
		export:        export,
		countries:     countries,
		countryColumn: countryColumn,
	}
}

// Countries lists the countries the caller may select in the dashboard.
func (h *DataHandler) Countries(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"countries": service.AccessibleCountries(user, h.countries),
		"selected":  service.ValidateSelection(user, r.URL.Query().Get("country"), h.countries),
	}, nil)
}

// ListKPIs names the available KPI datasets.
func (h *DataHandler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	names, err := h.data.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"kpis": names}, nil)
}

// GetKPI returns one KPI table, scoped to the caller. A requested
// country outside the caller's scope is silently replaced, never
// errored, so the dashboard keeps rendering.
func (h *DataHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	name := chi.URLParam(r, "name")
	ds, err := h.data.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}

	scoped := h.access.Scope(r.Context(), user, name, ds, h.countryColumn)
	if user.Unscoped() {
		selected := service.ValidateSelection(user, r.URL.Query().Get("country"), h.countries)
		if !strings.EqualFold(selected, service.CountryAll) {
			scoped = scoped.FilterEqualFold(h.countryColumn, selected)
		}
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"name":    name,
		"columns": scoped.Columns,
		"rows":    scoped.Rows,
	}, nil)
}

// IssueExport mints a short-lived download token for a KPI dataset.
func (h *DataHandler) IssueExport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	name := chi.URLParam(r, "name")
	if _, err := h.data.Get(name); err != nil {
		writeError(w, err)
		return
	}

	token, expiresAt, err := h.export.Issue(r.Context(), user, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ExportTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		URL:       "/api/v1/data/download?token=" + token,
	}, nil)
}

// Download serves a CSV export. It authenticates by export token alone
// so the link works from a plain browser download, and applies the
// country scope frozen into the grant at issue time.
func (h *DataHandler) Download(w http.ResponseWriter, r *http.Request) {
	grant, err := h.export.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	ds, err := h.data.Get(grant.Dataset)
	if err != nil {
		writeError(w, err)
		return
	}
	if grant.Country != "" {
		ds = ds.FilterEqualFold(h.countryColumn, grant.Country)
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+grant.Dataset+`.csv"`)
	if err := ds.WriteCSV(w); err != nil {
		// Headers are gone; all we can do is log via the wrapping
		// middleware by aborting the copy.
		return
	}
}
