// Package api provides the HTTP handlers for the sync service REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"crmsync/internal/domain"
	"crmsync/internal/service/cache"
	syncsvc "crmsync/internal/service/sync"
)

// Handler serves the refresh trigger, snapshot reads, and mapping lookups.
// Consumers only ever talk to the cache layer; the sync engine is reached
// exclusively through the refresh endpoint.
type Handler struct {
	engine      *syncsvc.Engine
	tables      *cache.TableCache
	mappings    *cache.MappingCache
	descriptors []domain.TableDescriptor
	logger      *slog.Logger
}

// NewHandler creates a Handler over the wired services.
func NewHandler(engine *syncsvc.Engine, tables *cache.TableCache, mappings *cache.MappingCache, descriptors []domain.TableDescriptor, logger *slog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		tables:      tables,
		mappings:    mappings,
		descriptors: descriptors,
		logger:      logger,
	}
}

// MountRoutes registers the API routes on the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.Sync)
	r.Get("/tables", h.LoadTables)
	r.Get("/tables/{table}", h.LoadTable)
	r.Post("/tables/{table}/invalidate", h.Invalidate)
	r.Get("/mappings/{table}", h.Mapping)
}

// syncResultResponse is the JSON shape of one table's sync outcome.
type syncResultResponse struct {
	Table       string `json:"table"`
	Policy      string `json:"policy"`
	RowsWritten int    `json:"rows_written"`
	Warning     string `json:"warning,omitempty"`
	Error       string `json:"error,omitempty"`
}

// snapshotResponse is the JSON shape of a table snapshot.
type snapshotResponse struct {
	Table    string       `json:"table"`
	Columns  []string     `json:"columns"`
	Rows     []domain.Row `json:"rows"`
	RowCount int          `json:"row_count"`
}

// tableResultResponse is one table's outcome in a batch load.
type tableResultResponse struct {
	Table    string       `json:"table"`
	Columns  []string     `json:"columns,omitempty"`
	Rows     []domain.Row `json:"rows,omitempty"`
	RowCount int          `json:"row_count"`
	Error    string       `json:"error,omitempty"`
}

// Sync runs a refresh pass over every configured table and reports one
// result per table. The response is always 200: per-table failures are part
// of the report, not an HTTP error.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	results := h.engine.SyncAll(r.Context(), h.descriptors)

	out := make([]syncResultResponse, 0, len(results))
	for _, res := range results {
		item := syncResultResponse{
			Table:       res.TableName,
			Policy:      string(res.Policy),
			RowsWritten: res.RowsWritten,
			Warning:     res.Warning,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadTable returns one table's cached snapshot.
func (h *Handler) LoadTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	snapshot, err := h.tables.LoadTable(r.Context(), table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		Table:    table,
		Columns:  snapshot.Columns,
		Rows:     snapshot.Rows,
		RowCount: snapshot.RowCount(),
	})
}

// LoadTables batch-loads the tables named in ?names=a,b,c. Missing or
// unreadable tables appear with an error marker; the batch itself always
// succeeds.
func (h *Handler) LoadTables(w http.ResponseWriter, r *http.Request) {
	names := splitNames(r.URL.Query().Get("names"))
	if len(names) == 0 {
		h.writeError(w, domain.ErrValidation("query parameter \"names\" is required"))
		return
	}

	results := h.tables.LoadTables(r.Context(), names)

	out := make([]tableResultResponse, 0, len(names))
	for _, name := range names {
		res := results[name]
		item := tableResultResponse{Table: name}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.Columns = res.Snapshot.Columns
			item.Rows = res.Snapshot.Rows
			item.RowCount = res.Snapshot.RowCount()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// Invalidate drops one table's cache entry so the next load re-fetches.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	h.tables.Invalidate(table)
	w.WriteHeader(http.StatusNoContent)
}

// Mapping returns an identifier→display-name lookup built from a cached
// reference table. Column names default to the CRM convention (id, name).
func (h *Handler) Mapping(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	idColumn := r.URL.Query().Get("id_column")
	if idColumn == "" {
		idColumn = "id"
	}
	nameColumn := r.URL.Query().Get("name_column")
	if nameColumn == "" {
		nameColumn = "name"
	}

	mapping, err := h.mappings.BuildMapping(r.Context(), table, idColumn, nameColumn)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":       table,
		"id_column":   idColumn,
		"name_column": nameColumn,
		"mapping":     mapping,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := httpStatusFromDomainError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, map[string]any{
		"code":    code,
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
