package httpserver

import (
	"fmt"
	"html"
	"net/http"
	"time"

	apierrors "github.com/ShieldStack/server/internal/errors"
	"github.com/ShieldStack/server/pkg/responders"
	"github.com/ShieldStack/server/pkg/secureheaders"
)

// health returns service health status.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	response := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(serverStartTime).String(),
		"timestamp": now.UTC(),
	}

	features := []string{}
	if h.cfg.Reports.Enabled {
		features = append(features, "report-ingestion")
		response["reportsBackend"] = h.cfg.Reports.Backend
	}
	if h.cfg.Reports.Forward.URL != "" {
		features = append(features, "report-forwarding")
	}
	if h.cfg.RateLimit.Enabled {
		features = append(features, "rate-limiting")
	}
	if len(features) > 0 {
		response["features"] = features
	}

	responders.JSON(w, http.StatusOK, response)
}

// showPolicy returns the currently active default header set, so operators
// can inspect what a plain request receives.
func (h *handlers) showPolicy(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"headers": h.resolver.Policy().DefaultHeaders(),
	})
}

// demoPage serves a small HTML page with a nonce-carrying inline script,
// exercising the per-request nonce path end to end.
func (h *handlers) demoPage(w http.ResponseWriter, r *http.Request) {
	rc := secureheaders.RequestContextFrom(r.Context())
	if rc == nil {
		apierrors.WriteError(w, apierrors.ErrCodeInternalError, "Header middleware not installed")
		return
	}
	nonce := rc.Nonce()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>ShieldStack demo</title></head>
<body>
<p>This inline script runs because it carries the per-request CSP nonce.</p>
<script nonce=%q>document.body.appendChild(document.createTextNode("nonce ok: %s"));</script>
</body>
</html>
`, nonce, html.EscapeString(nonce))
}
