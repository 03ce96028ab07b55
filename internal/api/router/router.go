package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hospitalos/patientflow/internal/appointments"
	"github.com/hospitalos/patientflow/internal/board"
	"github.com/hospitalos/patientflow/internal/consultations"
	"github.com/hospitalos/patientflow/internal/doctors"
	"github.com/hospitalos/patientflow/internal/hospital"
	"github.com/hospitalos/patientflow/internal/http/httpx"
	httpmiddleware "github.com/hospitalos/patientflow/internal/http/middleware"
	"github.com/hospitalos/patientflow/internal/notify"
	"github.com/hospitalos/patientflow/internal/patients"
	"github.com/hospitalos/patientflow/internal/queue"
	"github.com/hospitalos/patientflow/internal/reporting"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	QueueHandler         *queue.Handler
	ConsultationsHandler *consultations.Handler
	AppointmentsHandler  *appointments.Handler
	NotifyHandler        *notify.Handler
	BoardHandler         *board.Handler
	HospitalHandler      *hospital.Handler
	DoctorsHandler       *doctors.Handler
	PatientsHandler      *patients.Handler
	ReportingHandler     *reporting.Handler

	MetricsHandler http.Handler

	AuthJWTSecret      string
	CORSAllowedOrigins []string

	// Token-bucket limit applied to the unauthenticated intake surface
	// (registration and QR check-in). Zero disables the limiter.
	IntakeRateLimit float64
	IntakeRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.Authenticate(cfg.AuthJWTSecret))

	// Public endpoints: health, metrics, the waiting-room board, and the
	// kiosk intake surface. The QR check-in carries its own signed token.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BoardHandler != nil {
			public.Get("/board/ws", cfg.BoardHandler.ServeWS)
		}

		public.Group(func(intake chi.Router) {
			if cfg.IntakeRateLimit > 0 {
				intake.Use(httpmiddleware.RateLimit(cfg.IntakeRateLimit, cfg.IntakeRateBurst))
			}
			intake.Post("/patients/register", cfg.PatientsHandler.Register)
			intake.Post("/checkin/qr", cfg.AppointmentsHandler.QRCheckIn)
		})
	})

	// Authenticated patient surface.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RequireAuth)

		api.Post("/queues", cfg.QueueHandler.Create)
		api.Get("/queues/mine", cfg.QueueHandler.Mine)
		api.Get("/queues/{id}", cfg.QueueHandler.Get)
		api.Patch("/queues/{id}/cancel", cfg.QueueHandler.Cancel)

		api.Post("/consultations", cfg.ConsultationsHandler.Create)
		api.Get("/consultations", cfg.ConsultationsHandler.ListMine)
		api.Get("/consultations/{id}", cfg.ConsultationsHandler.Get)
		api.Post("/consultations/{id}/handoff", cfg.ConsultationsHandler.Handoff)
		api.Post("/consultations/{id}/close", cfg.ConsultationsHandler.Close)

		api.Post("/appointments", cfg.AppointmentsHandler.Create)
		api.Get("/appointments", cfg.AppointmentsHandler.ListMine)
		api.Post("/appointments/{id}/checkin", cfg.AppointmentsHandler.CheckIn)
		api.Patch("/appointments/{id}/cancel", cfg.AppointmentsHandler.Cancel)

		api.Get("/notifications", cfg.NotifyHandler.List)
		api.Patch("/notifications/{id}/read", cfg.NotifyHandler.MarkRead)
	})

	// Staff surface.
	r.Route("/staff", func(staff chi.Router) {
		staff.Use(httpmiddleware.RequireStaff)

		staff.Post("/queue/call-next", cfg.QueueHandler.CallNext)
		staff.Post("/queue/{id}/call", cfg.QueueHandler.Call)
		staff.Post("/queue/{id}/start", cfg.QueueHandler.Start)
		staff.Post("/queue/{id}/complete", cfg.QueueHandler.Complete)
		staff.Get("/queue/today", cfg.QueueHandler.Today)

		staff.Get("/dashboard", cfg.ReportingHandler.Dashboard)

		staff.Get("/hospital-config", cfg.HospitalHandler.Get)
		staff.Put("/hospital-config", cfg.HospitalHandler.Update)

		staff.Get("/doctors", cfg.DoctorsHandler.List)
		staff.Get("/doctors/{id}", cfg.DoctorsHandler.Get)
		staff.Patch("/doctors/{id}/availability", cfg.DoctorsHandler.SetAvailability)

		staff.Get("/patients/{id}", cfg.PatientsHandler.Get)
		staff.Get("/appointments/{id}/qr-token", cfg.AppointmentsHandler.QRToken)
	})

	return r
}
