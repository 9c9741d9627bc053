package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"finboard/internal/errors"
	"finboard/internal/models"
	"finboard/internal/observability"
	"finboard/internal/schema"
	"finboard/internal/services"
)

type APIHandlers struct {
	reports        *services.Reports
	logger         *slog.Logger
	uploadMaxBytes int64
}

func NewAPIHandlers(reports *services.Reports, logger *slog.Logger, uploadMaxBytes int64) *APIHandlers {
	return &APIHandlers{
		reports:        reports,
		logger:         logger,
		uploadMaxBytes: uploadMaxBytes,
	}
}

// FilterFromQuery decodes the ephemeral filter selection carried in the
// request query. Repeated parameters select multiple values; absence of a
// parameter means "all".
func FilterFromQuery(r *http.Request) models.Filter {
	q := r.URL.Query()
	f := models.Filter{
		Segments:  q["segment"],
		Countries: q["country"],
		Products:  q["product"],
		Bands:     q["band"],
	}
	for _, y := range q["year"] {
		if year, err := strconv.Atoi(y); err == nil {
			f.Years = append(f.Years, year)
		}
	}
	return f
}

func (h *APIHandlers) dataset(w http.ResponseWriter, r *http.Request) (*services.Dataset, bool) {
	id := r.URL.Query().Get("dataset")
	ds, ok := h.reports.Get(id)
	if !ok {
		requestID := observability.GetRequestID(r.Context())
		errors.WriteError(w, h.logger, errors.NotFound("dataset not found; upload a file first"), requestID)
		return nil, false
	}
	return ds, true
}

// HandleUpload accepts one multipart file (field "file"), cleans it into a
// dataset, and answers with the dataset ID the client uses on every
// subsequent report request. A missing required column or an undecodable
// file halts the session here; nothing downstream ever sees it.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, h.logger, errors.TooLarge("uploaded file exceeds the size limit"), requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "upload requires a multipart \"file\" field"), requestID)
		return
	}
	defer file.Close()

	ds, err := h.reports.CreateFromUpload(r.Context(), header.Filename, file)
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, err.Error()), requestID)
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"dataset_id":   ds.ID,
		"record_count": len(ds.Records),
		"skipped_rows": ds.SkippedRows,
		"degraded":     fieldNames(ds.Columns.MissingOptional()),
	})
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}

	report := h.reports.Build(ds, FilterFromQuery(r))
	errors.WriteSuccess(w, report)
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}

	headers := map[string]string{
		"Cache-Control": "public, max-age=300",
	}
	errors.WriteSuccessWithHeaders(w, h.reports.Options(ds), headers)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.reports.Stats())
}

func fieldNames(fields []schema.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
