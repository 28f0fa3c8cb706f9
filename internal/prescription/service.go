package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Service implements the prescription ledger
type Service struct {
	logger   *logger.Logger
	repo     interfaces.PrescriptionRepository
	profiles interfaces.ProfileLookup
	audit    interfaces.AuditRecorder
	metrics  *monitoring.MetricsCollector
	now      func() time.Time
}

// NewService creates a new prescription service
func NewService(
	log *logger.Logger,
	repo interfaces.PrescriptionRepository,
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

// Create writes a new ACTIVE prescription, replacing any ACTIVE one for the
// same patient and medication
func (s *Service) Create(ctx context.Context, doctorUserID string, req *types.CreatePrescriptionRequest) (*types.Prescription, error) {
	if req == nil || req.PatientID == "" || req.MedicationName == "" || req.Dosage == "" || req.Frequency == "" || req.Duration == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Patient, medication name, dosage, frequency, and duration are required")
	}

	expiresAt, err := parseExpiry(req.ExpiresAt)
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Expiry must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}

	doctor, err := s.profiles.GetDoctorByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	p := &types.Prescription{
		ID:             uuid.New().String(),
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Frequency:      req.Frequency,
		Duration:       req.Duration,
		Notes:          req.Notes,
		Status:         types.PrescriptionActive,
		PrescribedAt:   s.now().UTC(),
		ExpiresAt:      expiresAt,
	}

	replaced, err := s.repo.SupersedeAndCreate(ctx, p)
	if err != nil {
		return nil, err
	}

	p.Doctor = &types.DoctorRef{Name: doctor.Name, Hospital: doctor.Hospital}
	p.Patient = &types.PatientRef{Name: patient.Name, UniquePatientID: patient.UniquePatientID}

	s.audit.Record(ctx, doctorUserID, "CREATE_PRESCRIPTION", "Prescription", p.ID, map[string]interface{}{
		"medicationName": p.MedicationName,
		"dosage":         p.Dosage,
		"patientId":      p.PatientID,
		"replaced":       replaced,
	})
	s.metrics.RecordPrescription(replaced)

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"prescription_id": p.ID,
		"patient_id":      p.PatientID,
		"replaced":        replaced,
	}).Info("Prescription created")

	return p, nil
}

// ListPatientsForDoctor lists the doctor's patients, or searches all
// patients when search is non-empty
func (s *Service) ListPatientsForDoctor(ctx context.Context, doctorUserID, search string) ([]*types.PatientSummary, error) {
	doctor, err := s.profiles.GetDoctorByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}

	if term := strings.TrimSpace(search); term != "" {
		return s.repo.SearchPatients(ctx, doctor.ID, term)
	}
	return s.repo.ListPatientsForDoctor(ctx, doctor.ID)
}

// FindPatientByUniqueID returns the full record of the patient with the
// human-readable ID
func (s *Service) FindPatientByUniqueID(ctx context.Context, doctorUserID, uniquePatientID string) (*types.PatientRecord, error) {
	record, err := s.repo.GetPatientRecordByUniqueID(ctx, uniquePatientID)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				"No patient found with that ID. Make sure the patient has registered first.")
		}
		return nil, err
	}

	s.audit.Record(ctx, doctorUserID, "VIEW_PATIENT", "Patient", record.ID, nil)
	return record, nil
}

// GetPatient returns the full record of the patient with id
func (s *Service) GetPatient(ctx context.Context, doctorUserID, patientID string) (*types.PatientRecord, error) {
	record, err := s.repo.GetPatientRecordByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, doctorUserID, "VIEW_PATIENT", "Patient", record.ID, nil)
	return record, nil
}

// ListForPatient lists the caller's own prescriptions. Unknown status values
// are ignored rather than rejected.
func (s *Service) ListForPatient(ctx context.Context, patientUserID, status string) ([]*types.Prescription, error) {
	patient, err := s.profiles.GetPatientByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	var filter *types.PrescriptionStatus
	if parsed, ok := types.ParsePrescriptionStatus(status); ok {
		filter = &parsed
	}

	return s.repo.ListByPatient(ctx, patient.ID, filter)
}

// GetPatientProfile returns the caller's own profile with email
func (s *Service) GetPatientProfile(ctx context.Context, patientUserID string) (*types.PatientProfile, error) {
	profile, err := s.repo.GetPatientProfile(ctx, patientUserID)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient profile not found")
		}
		return nil, err
	}
	return profile, nil
}

// parseExpiry accepts an RFC 3339 timestamp or a plain date
func parseExpiry(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid expiry %q", value)
}
