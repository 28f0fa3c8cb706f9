package types

import "time"

// PrescriptionStatus represents the lifecycle state of a prescription
type PrescriptionStatus string

const (
	PrescriptionActive   PrescriptionStatus = "ACTIVE"
	PrescriptionExpired  PrescriptionStatus = "EXPIRED"
	PrescriptionReplaced PrescriptionStatus = "REPLACED"
)

// ParsePrescriptionStatus returns the status and true for a known value.
// Unknown values (including "") are reported as not ok.
func ParsePrescriptionStatus(s string) (PrescriptionStatus, bool) {
	switch PrescriptionStatus(s) {
	case PrescriptionActive, PrescriptionExpired, PrescriptionReplaced:
		return PrescriptionStatus(s), true
	}
	return "", false
}

// ChangeRequestStatus represents the lifecycle state of a change request
type ChangeRequestStatus string

const (
	ChangeRequestPending   ChangeRequestStatus = "PENDING"
	ChangeRequestResponded ChangeRequestStatus = "RESPONDED"
	ChangeRequestDismissed ChangeRequestStatus = "DISMISSED"
)

// DoctorRef is the doctor display data embedded in listings
type DoctorRef struct {
	Name     string `json:"name"`
	Hospital string `json:"hospital,omitempty"`
}

// PatientRef is the patient display data embedded in listings
type PatientRef struct {
	Name            string `json:"name"`
	UniquePatientID string `json:"uniquePatientId,omitempty"`
}

// Prescription represents a medication order
type Prescription struct {
	ID             string             `json:"id" db:"id"`
	PatientID      string             `json:"patientId" db:"patient_id"`
	DoctorID       string             `json:"doctorId" db:"doctor_id"`
	MedicationName string             `json:"medicationName" db:"medication_name"`
	Dosage         string             `json:"dosage" db:"dosage"`
	Frequency      string             `json:"frequency" db:"frequency"`
	Duration       string             `json:"duration" db:"duration"`
	Notes          string             `json:"notes" db:"notes"`
	Status         PrescriptionStatus `json:"status" db:"status"`
	PrescribedAt   time.Time          `json:"prescribedAt" db:"prescribed_at"`
	ExpiresAt      *time.Time         `json:"expiresAt" db:"expires_at"`

	Doctor  *DoctorRef  `json:"doctor,omitempty"`
	Patient *PatientRef `json:"patient,omitempty"`
}

// CreatePrescriptionRequest is the doctor's input for a new prescription
type CreatePrescriptionRequest struct {
	PatientID      string `json:"patientId"`
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
	Notes          string `json:"notes,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
}

// PrescriptionRef is the prescription display data embedded in change requests
type PrescriptionRef struct {
	MedicationName string             `json:"medicationName"`
	Dosage         string             `json:"dosage,omitempty"`
	Status         PrescriptionStatus `json:"status,omitempty"`
}

// ChangeRequest is a patient's concern about one prescription
type ChangeRequest struct {
	ID             string              `json:"id" db:"id"`
	PatientID      string              `json:"patientId" db:"patient_id"`
	DoctorID       string              `json:"doctorId" db:"doctor_id"`
	PrescriptionID string              `json:"prescriptionId" db:"prescription_id"`
	Reason         string              `json:"reason" db:"reason"`
	Status         ChangeRequestStatus `json:"status" db:"status"`
	DoctorResponse *string             `json:"doctorResponse" db:"doctor_response"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	RespondedAt    *time.Time          `json:"respondedAt" db:"responded_at"`

	Prescription *PrescriptionRef `json:"prescription,omitempty"`
	Doctor       *DoctorRef       `json:"doctor,omitempty"`
	Patient      *PatientRef      `json:"patient,omitempty"`
}

// CreateChangeRequestRequest is the patient's input for a change request
type CreateChangeRequestRequest struct {
	PrescriptionID string `json:"prescriptionId"`
	Reason         string `json:"reason"`
}

// RespondChangeRequestRequest is the doctor's answer to a change request
type RespondChangeRequestRequest struct {
	Status         ChangeRequestStatus `json:"status"`
	DoctorResponse string              `json:"doctorResponse,omitempty"`
}

// PatientRecord is the full patient view used by doctors
type PatientRecord struct {
	Patient
	User           *EmailRef        `json:"user"`
	Prescriptions  []*Prescription  `json:"prescriptions"`
	ChangeRequests []*ChangeRequest `json:"changeRequests"`
}

// EmailRef carries the owning user's email
type EmailRef struct {
	Email string `json:"email"`
}

// PatientSummary is one entry of a doctor's patient list. Prescriptions holds
// at most the latest prescription written by the requesting doctor.
type PatientSummary struct {
	Patient
	User          *EmailRef       `json:"user"`
	Prescriptions []*Prescription `json:"prescriptions"`
}

// PatientProfile is the patient's own profile view
type PatientProfile struct {
	Patient
	User *EmailRef `json:"user"`
}

// PublicMedication is one ACTIVE prescription in the public view
type PublicMedication struct {
	MedicationName string             `json:"medicationName"`
	Dosage         string             `json:"dosage"`
	Frequency      string             `json:"frequency"`
	Duration       string             `json:"duration"`
	Notes          string             `json:"notes"`
	Status         PrescriptionStatus `json:"status"`
	PrescribedAt   time.Time          `json:"prescribedAt"`
	Doctor         DoctorRef          `json:"doctor"`
}

// PublicPatientView is the unauthenticated QR view of a patient. It carries
// no contact details.
type PublicPatientView struct {
	PatientName       string              `json:"patientName"`
	PatientID         string              `json:"patientId"`
	Age               int                 `json:"age"`
	Gender            string              `json:"gender"`
	ActiveMedications []*PublicMedication `json:"activeMedications"`
	LastUpdated       *time.Time          `json:"lastUpdated"`
}

// QRCode is the patient's shareable QR artifact
type QRCode struct {
	QRDataURL   *string `json:"qrDataUrl"`
	QRURL       string  `json:"qrUrl"`
	QRToken     string  `json:"qrToken"`
	PatientID   string  `json:"patientId"`
	PatientName string  `json:"patientName"`
}

// AuditEntry is one append-only audit record
type AuditEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Entity    string    `json:"entity" db:"entity"`
	EntityID  string    `json:"entityId" db:"entity_id"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
