package httpserver

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/ShieldStack/server/internal/errors"
	"github.com/ShieldStack/server/internal/logger"
	"github.com/ShieldStack/server/internal/reports"
	"github.com/ShieldStack/server/pkg/responders"
)

// reportContentTypes are the media types browsers use to deliver CSP
// violation reports. Older WebKit builds send plain application/json.
var reportContentTypes = map[string]bool{
	"application/csp-report":   true,
	"application/json":         true,
	"application/reports+json": true,
}

// ingestReport accepts a CSP violation report, persists it, and forwards it
// to the configured webhook if one is set.
func (h *handlers) ingestReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !reportContentTypes[mediaType] {
		h.metrics.ObserveReport("unsupported")
		apierrors.WriteError(w, apierrors.ErrCodeUnsupportedBody, "Content-Type must be application/csp-report or application/json")
		return
	}

	maxBytes := h.cfg.Reports.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.metrics.ObserveReport("too_large")
			apierrors.WriteError(w, apierrors.ErrCodeReportTooLarge, "Report payload exceeds size limit")
			return
		}
		h.metrics.ObserveReport("read_error")
		apierrors.WriteError(w, apierrors.ErrCodeInternalError, "Failed to read request body")
		return
	}

	report, err := reports.Parse(body, r.UserAgent())
	if err != nil {
		h.metrics.ObserveReport("invalid")
		apierrors.WriteError(w, apierrors.ErrCodeInvalidReport, "Malformed CSP violation report")
		return
	}

	if err := h.store.Save(r.Context(), report); err != nil {
		log.Error().Err(err).Str("report_id", report.ID).Msg("report.store_failed")
		h.metrics.ObserveReportStored(err)
		h.metrics.ObserveReport("store_error")
		apierrors.WriteError(w, apierrors.ErrCodeStorageError, "Failed to persist report")
		return
	}
	h.metrics.ObserveReportStored(nil)
	h.metrics.ObserveReport("accepted")

	log.Info().
		Str("report_id", report.ID).
		Str("violated_directive", report.Body.ViolatedDirective).
		Str("document_uri", report.Body.DocumentURI).
		Str("blocked_uri", report.Body.BlockedURI).
		Msg("report.accepted")

	if h.forwarder != nil {
		// Forwarding happens off the request path. The spawned context
		// outlives the request but stays bounded.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := h.forwarder.Forward(ctx, report); err != nil {
				h.logger.Error().Err(err).Str("report_id", report.ID).Msg("report.forward_failed")
			}
		}()
	}

	w.WriteHeader(http.StatusNoContent)
}

// listReports returns the most recent stored reports, newest first.
func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			apierrors.WriteError(w, apierrors.ErrCodeInvalidField, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	stored, err := h.store.List(r.Context(), limit)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("report.list_failed")
		apierrors.WriteError(w, apierrors.ErrCodeStorageError, "Failed to load reports")
		return
	}

	responders.JSON(w, http.StatusOK, map[string]any{
		"count":   len(stored),
		"reports": stored,
	})
}
