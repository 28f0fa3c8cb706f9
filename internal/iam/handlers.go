package iam

import (
	"net/http"

	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Handlers handles HTTP requests for the auth endpoints
type Handlers struct {
	service interfaces.IAMService
	logger  *logger.Logger
}

// NewHandlers creates new IAM handlers
func NewHandlers(service interfaces.IAMService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the auth routes
func (h *Handlers) RegisterRoutes(routes *gateway.Routes) {
	routes.Auth.HandleFunc("/register", h.Register).Methods("POST")
	routes.Auth.HandleFunc("/login", h.Login).Methods("POST")
	routes.Authenticated.HandleFunc("/auth/me", h.GetMe).Methods("GET")
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegistrationRequest
	if err := gateway.DecodeJSON(r, &req); err != nil {
		gateway.WriteError(w, r, h.logger, err, "Registration failed")
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Registration failed")
		return
	}

	gateway.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var credentials types.Credentials
	if err := gateway.DecodeJSON(r, &credentials); err != nil {
		gateway.WriteError(w, r, h.logger, err, "Login failed")
		return
	}

	resp, err := h.service.Login(r.Context(), &credentials)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Login failed")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, resp)
}

// GetMe handles GET /api/auth/me
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := gateway.IdentityFromContext(r.Context())
	if !ok {
		gateway.WriteErrorMessage(w, http.StatusUnauthorized, "No token provided")
		return
	}

	profile, err := h.service.GetMe(r.Context(), identity)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to get user info")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, profile)
}
