package http

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"eventbooking/internal/delivery/http/controllers"
	"eventbooking/internal/delivery/http/helpers"
	"eventbooking/internal/delivery/http/middleware"
	"eventbooking/internal/domain"
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Events         *controllers.EventController
	Registrations  *controllers.RegistrationController
	Payments       *controllers.PaymentController
	Verifier       domain.TokenVerifier
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter initializes the HTTP router with all application routes and the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)

	// Events
	mux.HandleFunc("POST /events", auth(cfg.Events.CreateEvent))
	mux.HandleFunc("GET /events/{eventID}", auth(cfg.Events.GetEvent))
	mux.HandleFunc("POST /events/{eventID}/cancel", auth(cfg.Events.CancelEvent))
	mux.HandleFunc("POST /events/{eventID}/cancel/resume", auth(cfg.Events.ResumeCancellation))

	// Registrations
	mux.HandleFunc("POST /events/{eventID}/registrations", auth(cfg.Registrations.Register))
	mux.HandleFunc("GET /events/{eventID}/registrations", auth(cfg.Registrations.ListByEvent))
	mux.HandleFunc("GET /me/registrations", auth(cfg.Registrations.ListMine))
	mux.HandleFunc("GET /registrations/{registrationID}", auth(cfg.Registrations.Get))
	mux.HandleFunc("POST /registrations/{registrationID}/approve", auth(cfg.Registrations.Approve))
	mux.HandleFunc("POST /registrations/{registrationID}/reject", auth(cfg.Registrations.Reject))

	// Payments
	mux.HandleFunc("POST /registrations/{registrationID}/pay", auth(cfg.Payments.Pay))
	mux.HandleFunc("POST /registrations/{registrationID}/refund-request", auth(cfg.Payments.RequestRefund))
	mux.HandleFunc("POST /registrations/{registrationID}/refund-approve", auth(cfg.Payments.ApproveRefund))
	mux.HandleFunc("POST /registrations/{registrationID}/refund-reject", auth(cfg.Payments.RejectRefund))
	mux.HandleFunc("POST /registrations/{registrationID}/refund", auth(cfg.Payments.RefundByOrganizer))

	// Ops
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	var h http.Handler = middleware.LoggingMiddleware(cfg.Logger, mux)
	h = middleware.CORS(cfg.AllowedOrigins, h)
	h = chimw.Recoverer(h)
	return chimw.RequestID(h)
}
