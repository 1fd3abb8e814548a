package inventory

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// NewHandler exposes an Inventory over HTTP:
//
//	GET /tenants/{tenant}/resources/{resource}
//	GET /tenants/{tenant}/resources?method=AND&label=key=value
//
// It is the counterpart of HTTPClient.
func NewHandler(inv Inventory) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	h := &handler{inv: inv}
	r.Get("/healthz", h.handleHealth)
	r.Get("/tenants/{tenant}/resources/{resource}", h.handleGet)
	r.Get("/tenants/{tenant}/resources", h.handleFind)
	return r
}

type handler struct {
	inv Inventory
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	resource := chi.URLParam(r, "resource")

	res, err := h.inv.GetResource(r.Context(), tenant, resource)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleFind(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	sel, method, err := DecodeSelectorQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	ids, err := h.inv.FindResourcesMatchingSelector(r.Context(), tenant, sel, method)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, resourceList{ResourceIDs: ids})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case api.IsNotFound(err):
		status = http.StatusNotFound
	case api.IsValidation(err):
		status = http.StatusBadRequest
	default:
		logging.Error("InventoryServer", err, "Request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
