package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/kit"
	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/session"
)

// Options tune the router.
type Options struct {
	MaxUploadBytes int64
	Logger         *slog.Logger
}

const defaultMaxUpload = 32 << 20

// NewRouter returns an http.Handler with all audit API routes.
func NewRouter(store *session.Store, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	mw := func(name string) kit.Middleware {
		return kit.Chain(kit.Recover(opts.Logger), kit.Logging(opts.Logger, name))
	}

	h := &handler{
		load:       mw("load")(loadEndpoint(store)),
		replace:    mw("replace")(replaceEndpoint(store)),
		list:       mw("list")(listEndpoint(store)),
		report:     mw("report")(reportEndpoint(store)),
		kpis:       mw("kpis")(kpisEndpoint(store)),
		stock:      mw("stock")(stockEndpoint(store)),
		export:     mw("export")(exportEndpoint(store)),
		records:    mw("records")(recordsEndpoint(store)),
		classify:   mw("classify")(classifyEndpoint(store)),
		categories: mw("categories")(categoriesEndpoint(store)),
		remove:     mw("delete")(deleteEndpoint(store)),
		store:      store,
		maxUpload:  opts.MaxUploadBytes,
		logger:     opts.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", h.handleLoad)
	mux.HandleFunc("GET /v1/sessions", h.handleList)
	mux.HandleFunc("PUT /v1/sessions/{id}", h.handleReplace)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleDelete)
	mux.HandleFunc("GET /v1/sessions/{id}/report", h.handleReport)
	mux.HandleFunc("GET /v1/sessions/{id}/kpis", h.handleKPIs)
	mux.HandleFunc("GET /v1/sessions/{id}/stock/{catalog}", h.handleStock)
	mux.HandleFunc("GET /v1/sessions/{id}/stock/{catalog}/export", h.handleExport)
	mux.HandleFunc("GET /v1/sessions/{id}/records", h.handleRecords)
	mux.HandleFunc("POST /v1/classify", h.handleClassify)
	mux.HandleFunc("GET /v1/rules", h.handleRules)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(requestID(mux))
}

type handler struct {
	load       kit.Endpoint
	replace    kit.Endpoint
	list       kit.Endpoint
	report     kit.Endpoint
	kpis       kit.Endpoint
	stock      kit.Endpoint
	export     kit.Endpoint
	records    kit.Endpoint
	classify   kit.Endpoint
	categories kit.Endpoint
	remove     kit.Endpoint
	store      *session.Store
	maxUpload  int64
	logger     *slog.Logger
}

// --- sessions ---

func (h *handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer req.close()

	resp, err := h.load(r.Context(), &loadReq{Identity: req.identity, Body: req.file})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer req.close()

	ctx := kit.WithSession(r.Context(), id)
	resp, err := h.replace(ctx, &replaceReq{ID: id, Identity: req.identity, Body: req.file})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	resp, err := h.list(r.Context(), nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.remove(kit.WithSession(r.Context(), id), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- reports ---

func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	opts := report.Options{Filter: parseFilter(r)}
	var err error
	if opts.Range.From, err = parseDay(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Range.To, err = parseDay(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Day, err = parseDay(q.Get("day")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.report(kit.WithSession(r.Context(), id), &reportReq{ID: id, Opts: opts})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	group := r.URL.Query().Get("group")
	if group == "" {
		group = string(audit.FieldCompany)
	}
	field, ok := parseGroup(group)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown group %q", group))
		return
	}
	resp, err := h.kpis(kit.WithSession(r.Context(), id), &kpisReq{ID: id, Field: field})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.stock(kit.WithSession(r.Context(), id), &stockReq{
		ID:      id,
		Catalog: r.PathValue("catalog"),
		Company: r.URL.Query().Get("company"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.export(kit.WithSession(r.Context(), id), &stockReq{
		ID:      id,
		Catalog: r.PathValue("catalog"),
		Company: r.URL.Query().Get("company"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	file := resp.(exportResponse)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

func (h *handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.records(kit.WithSession(r.Context(), id), &recordsReq{ID: id, Filter: parseFilter(r), Limit: limit})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- classify ---

type httpClassifyRequest struct {
	Observation string `json:"observation"`
	Completed   *bool  `json:"completed,omitempty"`
}

func (h *handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	resp, err := h.classify(r.Context(), &classifyReq{Observation: req.Observation, Completed: completed})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- rules / health ---

func (h *handler) handleRules(w http.ResponseWriter, r *http.Request) {
	resp, err := h.categories(r.Context(), nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status     string `json:"status"`
	Sessions   int    `json:"sessions"`
	Categories int    `json:"categories"`
	Catalogs   int    `json:"catalogs"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Sessions:   h.store.Len(),
		Categories: len(h.store.Rules().Categories),
		Catalogs:   len(h.store.Rules().Rules.Catalogs),
	})
}

// --- helpers ---

type upload struct {
	identity session.Identity
	file     multipart.File
}

func (u *upload) close() { u.file.Close() }

func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file field: %w", err)
	}
	if !strings.EqualFold(strings.TrimPrefix(fileExt(fh.Filename), "."), "xlsx") {
		f.Close()
		return nil, fmt.Errorf("expected an .xlsx file, got %q", fh.Filename)
	}
	return &upload{identity: session.Identity{Name: fh.Filename, Size: fh.Size}, file: f}, nil
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func parseFilter(r *http.Request) report.Filter {
	q := r.URL.Query()
	return report.Filter{
		Technician: q.Get("technician"),
		Company:    q.Get("company"),
		AuditType:  q.Get("type"),
		Plate:      q.Get("plate"),
		WorkOrder:  q.Get("order"),
	}
}

func parseGroup(s string) (audit.Field, bool) {
	f, ok := audit.ParseField(s)
	if !ok {
		return "", false
	}
	switch f {
	case audit.FieldCompany, audit.FieldTechnician, audit.FieldAuditor, audit.FieldRegion:
		return f, true
	}
	return "", false
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := audit.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	return &t, nil
}

// statusFor maps endpoint errors to HTTP status codes.
func statusFor(err error) int {
	var mc *audit.MissingColumnError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kit.ErrBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &mc):
		return http.StatusUnprocessableEntity
	case errors.Is(err, audit.ErrEmptyResult):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusOK {
		// Empty selections are informational.
		writeJSON(w, code, map[string]any{"empty": true, "issue": err.Error()})
		return
	}
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestID tags each request context with a fresh id, echoed in a header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
