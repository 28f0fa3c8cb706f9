package interfaces

import (
	"context"
	"time"

	"github.com/Sriharan2222/medlog/pkg/types"
)

// PrescriptionService defines the prescription ledger operations
type PrescriptionService interface {
	Create(ctx context.Context, doctorUserID string, req *types.CreatePrescriptionRequest) (*types.Prescription, error)
	ListPatientsForDoctor(ctx context.Context, doctorUserID, search string) ([]*types.PatientSummary, error)
	FindPatientByUniqueID(ctx context.Context, doctorUserID, uniquePatientID string) (*types.PatientRecord, error)
	GetPatient(ctx context.Context, doctorUserID, patientID string) (*types.PatientRecord, error)
	ListForPatient(ctx context.Context, patientUserID, status string) ([]*types.Prescription, error)
	GetPatientProfile(ctx context.Context, patientUserID string) (*types.PatientProfile, error)
}

// PrescriptionRepository defines the interface for prescription persistence
type PrescriptionRepository interface {
	GetPatientByID(ctx context.Context, id string) (*types.Patient, error)

	// SupersedeAndCreate marks every ACTIVE prescription of the same patient
	// and medication as REPLACED and inserts p, atomically. It returns the
	// number of prescriptions replaced.
	SupersedeAndCreate(ctx context.Context, p *types.Prescription) (int64, error)
	GetByID(ctx context.Context, id string) (*types.Prescription, error)

	ListByPatient(ctx context.Context, patientID string, status *types.PrescriptionStatus) ([]*types.Prescription, error)
	ListPatientsForDoctor(ctx context.Context, doctorID string) ([]*types.PatientSummary, error)
	SearchPatients(ctx context.Context, doctorID, term string) ([]*types.PatientSummary, error)

	GetPatientRecordByID(ctx context.Context, id string) (*types.PatientRecord, error)
	GetPatientRecordByUniqueID(ctx context.Context, uniquePatientID string) (*types.PatientRecord, error)
	GetPatientProfile(ctx context.Context, userID string) (*types.PatientProfile, error)
}

// ChangeRequestService defines the change-request mailbox operations
type ChangeRequestService interface {
	Create(ctx context.Context, patientUserID string, req *types.CreateChangeRequestRequest) (*types.ChangeRequest, error)
	Respond(ctx context.Context, doctorUserID, requestID string, req *types.RespondChangeRequestRequest) (*types.ChangeRequest, error)
	ListForDoctor(ctx context.Context, doctorUserID string) ([]*types.ChangeRequest, error)
	ListForPatient(ctx context.Context, patientUserID string) ([]*types.ChangeRequest, error)
}

// ChangeRequestRepository defines the interface for change request persistence
type ChangeRequestRepository interface {
	GetPrescription(ctx context.Context, id string) (*types.Prescription, error)
	Create(ctx context.Context, cr *types.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*types.ChangeRequest, error)

	// Respond moves a PENDING request addressed to doctorID into status.
	// It reports false when no PENDING row matched.
	Respond(ctx context.Context, id, doctorID string, status types.ChangeRequestStatus, response *string, at time.Time) (bool, error)

	ListForDoctor(ctx context.Context, doctorID string) ([]*types.ChangeRequest, error)
	ListForPatient(ctx context.Context, patientID string) ([]*types.ChangeRequest, error)
}

// DisclosureService defines the public QR view operations
type DisclosureService interface {
	GetByToken(ctx context.Context, qrToken string) (*types.PublicPatientView, error)
	GetQR(ctx context.Context, patientUserID string) (*types.QRCode, error)
	RotateToken(ctx context.Context, patientUserID string) (*types.QRCode, error)
}

// DisclosureRepository defines the interface for the public view queries
type DisclosureRepository interface {
	GetPatientByQRToken(ctx context.Context, qrToken string) (*types.Patient, error)
	ListActiveMedications(ctx context.Context, patientID string) ([]*types.PublicMedication, error)
	UpdateQRToken(ctx context.Context, patientID, qrToken string) error
}

// QRRenderer encodes text into a QR image data URL
type QRRenderer interface {
	DataURL(content string) (string, error)
}
