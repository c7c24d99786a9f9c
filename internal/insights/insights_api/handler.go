package insights_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"insights-filter/internal/clock"
	"insights-filter/internal/insights"
	"insights-filter/internal/insights/export"
	"insights-filter/internal/kafka"
	"insights-filter/internal/logger"
	"insights-filter/internal/metrics"
	"insights-filter/internal/models"
	"insights-filter/internal/session"
	"insights-filter/internal/utils"
)

// TableLoader turns an upload into a derived table.
type TableLoader interface {
	Load(ctx context.Context, r io.Reader) (*insights.Table, error)
}

// Handler serves the table upload, view and export endpoints.
type Handler struct {
	Loader         TableLoader
	Sessions       *session.Store
	Publisher      kafka.Publisher
	Logger         *logger.Logger
	Clock          clock.Clock
	MaxUploadBytes int64

	validate *validator.Validate
}

func NewHandler(loader TableLoader, sessions *session.Store, publisher kafka.Publisher, log *logger.Logger, maxUploadBytes int64) *Handler {
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	return &Handler{
		Loader:         loader,
		Sessions:       sessions,
		Publisher:      publisher,
		Logger:         log,
		Clock:          clock.NewSystem(),
		MaxUploadBytes: maxUploadBytes,
		validate:       validator.New(),
	}
}

// RegisterRoutes mounts the insights routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/insights/tables", func(r chi.Router) {
		r.Post("/", h.UploadTable)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", h.GetTable)
			r.Delete("/", h.DeleteTable)
			r.Get("/zones", h.GetZones)
			r.Get("/monitoring", h.GetMonitoring)
			r.Put("/highlights", h.PutHighlights)
			r.Post("/view", h.ComputeView)
			r.Post("/export", h.ExportView)
		})
	})
}

type UploadResponse struct {
	SessionID string `json:"session_id"`
	insights.TableSummary
}

type ViewResponse struct {
	Rows        []insights.ViewRow    `json:"rows"`
	Count       int                   `json:"count"`
	Total       int                   `json:"total"`
	Columns     []insights.ColumnSpec `json:"columns"`
	Advisories  []models.Advisory     `json:"advisories"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

type HighlightsResponse struct {
	Count int `json:"count"`
}

func (h *Handler) UploadTable(w http.ResponseWriter, r *http.Request) {
	file, closeFile, err := h.uploadedFile(w, r, "file")
	if err != nil {
		h.sendUploadError(w, err)
		return
	}
	defer closeFile()

	table, err := h.Loader.Load(r.Context(), file)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Upload rejected: %v", err))
		if errors.Is(err, insights.ErrNotTabular) || errors.Is(err, insights.ErrEmptyInput) {
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Upload is not a readable table", err.Error()))
			return
		}
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load table", err.Error()))
		return
	}

	sess := h.Sessions.Create(table)
	summary := table.Summary()
	h.Logger.LogLoad(sess.ID, fmt.Sprintf("%d rows, %d advisories", summary.Rows, len(summary.Advisories)))

	h.publish(r.Context(), "table loaded", func(ctx context.Context) error {
		return h.Publisher.PublishTableLoaded(ctx, kafka.TableLoaded{
			SessionID:   sess.ID,
			ContentHash: summary.ContentHash,
			Variant:     string(summary.Schema.Variant),
			Rows:        summary.Rows,
			Advisories:  len(summary.Advisories),
			LoadedAt:    h.Clock.Now(),
		})
	})

	utils.SendJSON(w, http.StatusCreated, utils.SuccessResponse("Table loaded", UploadResponse{
		SessionID:    sess.ID,
		TableSummary: summary,
	}))
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("Table summary", UploadResponse{
		SessionID:    sess.ID,
		TableSummary: sess.Table.Summary(),
	}))
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := h.Sessions.Delete(id); err != nil {
		h.sendSessionError(w, id, err)
		return
	}
	h.Logger.Info("SESSION", fmt.Sprintf("Session %s discarded", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetZones(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	zones := sess.Table.ZoneVocabulary(r.URL.Query().Get("search"))
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("Zones", zones))
}

func (h *Handler) GetMonitoring(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	values := append([]string{"All"}, sess.Table.MonitoringValues()...)
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("Monitoring values", values))
}

func (h *Handler) PutHighlights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if _, err := h.Sessions.Get(id); err != nil {
		h.sendSessionError(w, id, err)
		return
	}

	var (
		body      io.Reader
		closeBody = func() {}
	)
	if isMultipart(r) {
		file, closeFile, err := h.uploadedFile(w, r, "file")
		if err != nil {
			h.sendUploadError(w, err)
			return
		}
		body, closeBody = file, closeFile
	} else {
		body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	defer closeBody()

	set, err := insights.ParseHighlightIDs(body)
	if err != nil {
		h.sendUploadError(w, err)
		return
	}
	if err := h.Sessions.SetHighlights(id, set); err != nil {
		h.sendSessionError(w, id, err)
		return
	}

	h.Logger.Info("SESSION", fmt.Sprintf("[%s] %d highlight IDs set", id, len(set)))
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("Highlights updated", HighlightsResponse{Count: len(set)}))
}

func (h *Handler) ComputeView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	criteria, ok := h.criteria(w, r)
	if !ok {
		return
	}

	view := h.apply(sess, criteria)
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("View computed", ViewResponse{
		Rows:        view.Rows,
		Count:       view.Count,
		Total:       view.Total,
		Columns:     insights.DefaultColumns(),
		Advisories:  view.Advisories,
		EvaluatedAt: view.EvaluatedAt,
	}))
}

func (h *Handler) ExportView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid export format", err.Error()))
		return
	}
	scope, err := export.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid export scope", err.Error()))
		return
	}
	criteria, ok := h.criteria(w, r)
	if !ok {
		return
	}

	view := h.apply(sess, criteria)

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.FileName(format, scope),
	}))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, view, format, scope); err != nil {
		h.Logger.Error("EXPORT", fmt.Sprintf("[%s] export failed mid-stream: %v", sess.ID, err))
		return
	}

	metrics.Exports.WithLabelValues(string(format), string(scope)).Inc()
	h.Logger.LogExport(sess.ID, string(format), string(scope), view.Count)

	h.publish(r.Context(), "view exported", func(ctx context.Context) error {
		return h.Publisher.PublishViewExported(ctx, kafka.ViewExported{
			SessionID:  sess.ID,
			Format:     string(format),
			Scope:      string(scope),
			Rows:       view.Count,
			ExportedAt: h.Clock.Now(),
		})
	})
}

func (h *Handler) apply(sess session.Session, c insights.Criteria) insights.View {
	view := sess.Table.Apply(c, sess.Highlights)
	metrics.ViewsComputed.Inc()
	for _, a := range view.Advisories {
		metrics.Advisories.WithLabelValues(string(a.Kind)).Inc()
	}
	h.Logger.LogView(sess.ID, fmt.Sprintf("%d of %d rows, sort=%q desc=%v, %d advisories",
		view.Count, view.Total, c.SortBy, c.SortDesc, len(view.Advisories)))
	return view
}

// criteria decodes and validates the request body. An empty body is the
// zero Criteria, which passes every row in source order.
func (h *Handler) criteria(w http.ResponseWriter, r *http.Request) (insights.Criteria, bool) {
	var c insights.Criteria
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return c, false
	}

	if err := h.validate.Struct(&c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				messages = append(messages, validationMessage(fe))
			}
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", strings.Join(messages, "; ")))
			return c, false
		}
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", err.Error()))
		return c, false
	}
	return c, true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id := chi.URLParam(r, "sessionId")
	sess, err := h.Sessions.Get(id)
	if err != nil {
		h.sendSessionError(w, id, err)
		return session.Session{}, false
	}
	return sess, true
}

func (h *Handler) sendSessionError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		h.Logger.Debug("SESSION", fmt.Sprintf("Session %s not found", id))
		utils.SendJSON(w, http.StatusNotFound, utils.ErrorResponse("Session not found", err.Error()))
		return
	}
	h.Logger.Error("SESSION", fmt.Sprintf("Session %s lookup failed: %v", id, err))
	utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Session lookup failed", err.Error()))
}

var errMissingFile = errors.New(`multipart field "file" is required`)

// uploadedFile returns the named multipart part, capped at MaxUploadBytes.
func (h *Handler) uploadedFile(w http.ResponseWriter, r *http.Request, field string) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, err
	}
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, errMissingFile
	}
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

func (h *Handler) sendUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Logger.Warn("API", fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		utils.SendJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse("Upload too large", err.Error()))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("Bad upload: %v", err))
	utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid upload", err.Error()))
}

// publish sends an activity event without failing the request.
func (h *Handler) publish(ctx context.Context, what string, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		h.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s event: %v", what, err))
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
