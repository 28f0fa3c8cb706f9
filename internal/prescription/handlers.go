package prescription

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Handlers handles HTTP requests for prescriptions and patient records
type Handlers struct {
	service interfaces.PrescriptionService
	logger  *logger.Logger
}

// NewHandlers creates new prescription handlers
func NewHandlers(service interfaces.PrescriptionService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the doctor and patient routes
func (h *Handlers) RegisterRoutes(routes *gateway.Routes) {
	routes.Doctor.HandleFunc("/patients/find/{uniquePatientId}", h.FindPatient).Methods("GET")
	routes.Doctor.HandleFunc("/patients", h.ListPatients).Methods("GET")
	routes.Doctor.HandleFunc("/patients/{id}", h.GetPatient).Methods("GET")
	routes.Doctor.HandleFunc("/prescriptions", h.CreatePrescription).Methods("POST")

	routes.Patient.HandleFunc("/prescriptions", h.ListOwnPrescriptions).Methods("GET")
	routes.Patient.HandleFunc("/profile", h.GetProfile).Methods("GET")
}

// FindPatient handles GET /api/doctor/patients/find/{uniquePatientId}
func (h *Handlers) FindPatient(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	record, err := h.service.FindPatientByUniqueID(r.Context(), identity.UserID, mux.Vars(r)["uniquePatientId"])
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to find patient")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, record)
}

// ListPatients handles GET /api/doctor/patients
func (h *Handlers) ListPatients(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	patients, err := h.service.ListPatientsForDoctor(r.Context(), identity.UserID, r.URL.Query().Get("search"))
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to list patients")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, patients)
}

// GetPatient handles GET /api/doctor/patients/{id}
func (h *Handlers) GetPatient(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	record, err := h.service.GetPatient(r.Context(), identity.UserID, mux.Vars(r)["id"])
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to get patient")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, record)
}

// CreatePrescription handles POST /api/doctor/prescriptions
func (h *Handlers) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	var req types.CreatePrescriptionRequest
	if err := gateway.DecodeJSON(r, &req); err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to create prescription")
		return
	}

	prescription, err := h.service.Create(r.Context(), identity.UserID, &req)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to create prescription")
		return
	}

	gateway.WriteJSON(w, http.StatusCreated, prescription)
}

// ListOwnPrescriptions handles GET /api/patient/prescriptions
func (h *Handlers) ListOwnPrescriptions(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	prescriptions, err := h.service.ListForPatient(r.Context(), identity.UserID, r.URL.Query().Get("status"))
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to get prescriptions")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, prescriptions)
}

// GetProfile handles GET /api/patient/profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := gateway.IdentityFromContext(r.Context())

	profile, err := h.service.GetPatientProfile(r.Context(), identity.UserID)
	if err != nil {
		gateway.WriteError(w, r, h.logger, err, "Failed to get profile")
		return
	}

	gateway.WriteJSON(w, http.StatusOK, profile)
}
