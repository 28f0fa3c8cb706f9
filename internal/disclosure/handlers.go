package disclosure

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
)

// Handlers handles HTTP requests for the QR view
type Handlers struct {
	service interfaces.DisclosureService
	logger  *logger.Logger
}

// NewHandlers creates new disclosure handlers
func NewHandlers(service interfaces.DisclosureService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the public view and the patient's QR routes
func (h *Handlers) RegisterRoutes(routes *gateway.Routes) {
	routes.Public.HandleFunc("/patient/{qrToken}", h.GetPublicView).Methods("GET")

	routes.Patient.HandleFunc("/qr", h.GetQR).Methods("GET")
	routes.Patient.HandleFunc("/qr/rotate", h.RotateQR).Methods("POST")
}

// GetPublicView handles GET /api/public/patient/{qrToken}
func (h *Handlers) GetPublicView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByToken(r.Context(), mux.Vars(r)["qrToken"])
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to load patient data")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, view)
}

// GetQR handles GET /api/patient/qr
func (h *Handlers) GetQR(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	qr, err := h.service.GetQR(r.Context(), identity.UserID)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to generate QR code")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, qr)
}

// RotateQR handles POST /api/patient/qr/rotate
func (h *Handlers) RotateQR(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	qr, err := h.service.RotateToken(r.Context(), identity.UserID)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to rotate QR code")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, qr)
}
