// Package api is the Public API façade (spec §4.I): HTTP endpoints,
// websocket upgrades, and webhook ingestion, each a thin mapper —
// authenticate, call the core, translate errors into HTTP codes.
// Routing is grounded on the teacher's internal/api/server.go
// (public/protected ServeMux split, CORS + panic-recovery wrapping),
// generalized from its app-specific routes to the HTTP API table in
// spec §6.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/orchestrator"
	"dialerctl/internal/repository"
	"dialerctl/internal/telephony"
	"dialerctl/internal/webhook"
	"dialerctl/pkg/logging"
)

// Server wires the core ports/services behind the HTTP and websocket
// surface.
type Server struct {
	repo   repository.Port
	phone  telephony.Port
	ops    *operator.Manager
	orch   *orchestrator.Orchestrator
	hub    *eventbus.Hub
	tokens *TokenIssuer
	ingest *webhook.Ingestor

	principals        *principalStore
	corsOrigins       []string
	validateSignature bool
	webhookSecret     string
	publicBaseURL     string

	log *logrus.Entry
}

// ServerConfig carries everything NewServer needs beyond the core
// components themselves.
type ServerConfig struct {
	Principals        []PrincipalSeed
	CORSOrigins       []string
	ValidateSignature bool
	WebhookSecret     string
	PublicBaseURL     string
	AccessExpireMin   int
	RefreshExpireDays int
	SecretKey         string
}

func NewServer(
	repo repository.Port,
	phone telephony.Port,
	ops *operator.Manager,
	orch *orchestrator.Orchestrator,
	hub *eventbus.Hub,
	cfg ServerConfig,
) *Server {
	s := &Server{
		repo:              repo,
		phone:             phone,
		ops:               ops,
		orch:              orch,
		hub:               hub,
		tokens:            NewTokenIssuer(cfg.SecretKey, cfg.AccessExpireMin, cfg.RefreshExpireDays),
		ingest:            webhook.NewIngestor(orch),
		principals:        newPrincipalStore(cfg.Principals),
		corsOrigins:       cfg.CORSOrigins,
		validateSignature: cfg.ValidateSignature,
		webhookSecret:     cfg.WebhookSecret,
		publicBaseURL:     cfg.PublicBaseURL,
		log:               logging.Get("api"),
	}
	s.registerActionHandler()
	return s
}

// Handler builds the top-level http.Handler: public routes, a
// protected sub-mux wrapped in auth, both wrapped in CORS and panic
// recovery — the same three-layer shape as the teacher's Start().
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhooks/twilio/status", s.handleWebhookStatus)
	mux.HandleFunc("POST /webhooks/twilio/amd", s.handleWebhookAMD)
	mux.HandleFunc("POST /webhooks/twilio/voice", s.handleWebhookVoice)
	mux.HandleFunc("GET /ws/operator", s.handleWSOperator)
	mux.HandleFunc("GET /ws/dashboard", s.handleWSDashboard)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /auth/me", s.handleMe)
	protected.HandleFunc("POST /api/v1/campaigns", s.handleCreateCampaign)
	protected.HandleFunc("GET /api/v1/campaigns", s.handleListCampaigns)
	protected.HandleFunc("GET /api/v1/campaigns/{id}", s.handleGetCampaign)
	protected.HandleFunc("GET /api/v1/campaigns/{id}/stats", s.handleCampaignStats)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/start", s.handleCampaignStart)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/pause", s.handleCampaignPause)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/resume", s.handleCampaignResume)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/stop", s.handleCampaignStop)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/leads", s.handleAddLead)
	protected.HandleFunc("GET /api/v1/campaigns/{id}/leads", s.handleListLeads)
	protected.HandleFunc("POST /api/v1/campaigns/{id}/leads/import", s.handleImportLeads)
	protected.HandleFunc("POST /api/v1/twilio/token", s.handleIssueToken)

	mux.Handle("/auth/me", s.requireAuth(protected.ServeHTTP))
	mux.Handle("/api/v1/", s.requireAuth(protected.ServeHTTP))

	return s.recoverMiddleware(s.corsMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError translates an apperrors.AppError into its HTTP status
// (spec §7's taxonomy-to-status mapping).
func writeAppError(w http.ResponseWriter, err error) {
	type httpStatuser interface {
		HTTPStatus() int
		Error() string
	}
	if ae, ok := err.(httpStatuser); ok {
		writeError(w, ae.HTTPStatus(), ae.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
