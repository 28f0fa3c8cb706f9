package changerequest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Service implements the change request mailbox between patients and the
// prescribing doctor
type Service struct {
	logger   *logger.Logger
	repo     interfaces.ChangeRequestRepository
	profiles interfaces.ProfileLookup
	audit    interfaces.AuditRecorder
	metrics  *monitoring.MetricsCollector
	now      func() time.Time
}

// NewService creates a new change request service
func NewService(
	log *logger.Logger,
	repo interfaces.ChangeRequestRepository,
	profiles interfaces.ProfileLookup,
	audit interfaces.AuditRecorder,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		logger:   log,
		repo:     repo,
		profiles: profiles,
		audit:    audit,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Create files a PENDING request against one of the patient's own
// prescriptions, addressed to the doctor who wrote it
func (s *Service) Create(ctx context.Context, patientUserID string, req *types.CreateChangeRequestRequest) (*types.ChangeRequest, error) {
	if req == nil || req.PrescriptionID == "" || strings.TrimSpace(req.Reason) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Prescription and reason are required")
	}

	patient, err := s.profiles.GetPatientByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	prescription, err := s.repo.GetPrescription(ctx, req.PrescriptionID)
	if err != nil {
		return nil, err
	}
	// Another patient's prescription is reported exactly like a missing one.
	if prescription.PatientID != patient.ID {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Prescription not found")
	}

	cr := &types.ChangeRequest{
		ID:             uuid.New().String(),
		PatientID:      patient.ID,
		DoctorID:       prescription.DoctorID,
		PrescriptionID: prescription.ID,
		Reason:         req.Reason,
		Status:         types.ChangeRequestPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, cr); err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, cr.ID)
	if err != nil {
		return nil, err
	}
	created.Patient = nil

	s.audit.Record(ctx, patientUserID, "CREATE_CHANGE_REQUEST", "ChangeRequest", cr.ID, map[string]interface{}{
		"prescriptionId": cr.PrescriptionID,
		"reason":         cr.Reason,
	})
	s.metrics.RecordChangeRequest(string(types.ChangeRequestPending))

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"change_request_id": cr.ID,
		"prescription_id":   cr.PrescriptionID,
		"doctor_id":         cr.DoctorID,
	}).Info("Change request created")

	return created, nil
}

// Respond answers or dismisses a PENDING request addressed to the doctor.
// A request may be answered once.
func (s *Service) Respond(ctx context.Context, doctorUserID, requestID string, req *types.RespondChangeRequestRequest) (*types.ChangeRequest, error) {
	if err := validateResponse(req); err != nil {
		return nil, err
	}

	doctor, err := s.profiles.GetDoctorByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if existing.DoctorID != doctor.ID {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Change request not found")
	}
	if existing.Status != types.ChangeRequestPending {
		return nil, alreadyAnswered()
	}

	var response *string
	if text := strings.TrimSpace(req.DoctorResponse); text != "" {
		response = &req.DoctorResponse
	}

	ok, err := s.repo.Respond(ctx, requestID, doctor.ID, req.Status, response, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent answer.
		return nil, alreadyAnswered()
	}

	updated, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	updated.Doctor = nil

	s.audit.Record(ctx, doctorUserID, "RESPOND_CHANGE_REQUEST", "ChangeRequest", requestID, map[string]interface{}{
		"status":         req.Status,
		"doctorResponse": response,
	})
	s.metrics.RecordChangeRequest(string(req.Status))

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"change_request_id": requestID,
		"status":            req.Status,
	}).Info("Change request answered")

	return updated, nil
}

// ListForDoctor lists every request addressed to the doctor, newest first
func (s *Service) ListForDoctor(ctx context.Context, doctorUserID string) ([]*types.ChangeRequest, error) {
	doctor, err := s.profiles.GetDoctorByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListForDoctor(ctx, doctor.ID)
}

// ListForPatient lists the patient's own requests, newest first
func (s *Service) ListForPatient(ctx context.Context, patientUserID string) ([]*types.ChangeRequest, error) {
	patient, err := s.profiles.GetPatientByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListForPatient(ctx, patient.ID)
}

func validateResponse(req *types.RespondChangeRequestRequest) error {
	if req == nil || req.Status == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Status is required")
	}
	if req.Status == types.ChangeRequestResponded && strings.TrimSpace(req.DoctorResponse) == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Response text is required when responding")
	}
	if req.Status != types.ChangeRequestResponded && req.Status != types.ChangeRequestDismissed {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Status must be RESPONDED or DISMISSED")
	}
	return nil
}

func alreadyAnswered() error {
	return types.NewConflictError(types.ErrCodeAlreadyAnswered, "Change request has already been answered")
}
