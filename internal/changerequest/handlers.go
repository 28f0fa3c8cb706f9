package changerequest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Handlers handles HTTP requests for change requests
type Handlers struct {
	service interfaces.ChangeRequestService
	logger  *logger.Logger
}

// NewHandlers creates new change request handlers
func NewHandlers(service interfaces.ChangeRequestService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the doctor and patient mailbox routes
func (h *Handlers) RegisterRoutes(routes *gateway.Routes) {
	routes.Doctor.HandleFunc("/change-requests", h.ListForDoctor).Methods("GET")
	routes.Doctor.HandleFunc("/change-requests/{id}/respond", h.Respond).Methods("POST")

	routes.Patient.HandleFunc("/change-requests", h.Create).Methods("POST")
	routes.Patient.HandleFunc("/change-requests", h.ListForPatient).Methods("GET")
}

// Create handles POST /api/patient/change-requests
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	var req types.CreateChangeRequestRequest
	if err := gateway.DecodeJSON(r, &req); err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to create change request")
		return
	}

	cr, err := h.service.Create(r.Context(), identity.UserID, &req)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to create change request")
		return
	}

	gateway.WriteJSON(w, http.StatusCreated, cr)
}

// ListForPatient handles GET /api/patient/change-requests
func (h *Handlers) ListForPatient(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	requests, err := h.service.ListForPatient(r.Context(), identity.UserID)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to get change requests")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, requests)
}

// ListForDoctor handles GET /api/doctor/change-requests
func (h *Handlers) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	requests, err := h.service.ListForDoctor(r.Context(), identity.UserID)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to list change requests")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, requests)
}

// Respond handles POST /api/doctor/change-requests/{id}/respond
func (h *Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	var req types.RespondChangeRequestRequest
	if err := gateway.DecodeJSON(r, &req); err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to respond to change request")
		return
	}

	cr, err := h.service.Respond(r.Context(), identity.UserID, mux.Vars(r)["id"], &req)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to respond to change request")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, cr)
}
