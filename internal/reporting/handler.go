package reporting

import (
	"net/http"
	"time"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Handler exposes the staff dashboard.
type Handler struct {
	reporter *Reporter
	logger   *logging.Logger
}

// NewHandler creates a reporting HTTP handler.
func NewHandler(reporter *Reporter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{reporter: reporter, logger: logger}
}

// Dashboard handles GET /staff/dashboard. An optional date=YYYY-MM-DD query
// selects a past day; default is today.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, day.Location())

	dashboard, err := h.reporter.BuildDashboard(r.Context(), day)
	if err != nil {
		h.logger.Error("build dashboard failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dashboard)
}
