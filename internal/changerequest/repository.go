package changerequest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

const selectChangeRequest = `
	SELECT cr.id, cr.patient_id, cr.doctor_id, cr.prescription_id, cr.reason, cr.status,
		cr.doctor_response, cr.created_at, cr.responded_at,
		p.medication_name, p.dosage, p.status,
		d.name, d.hospital,
		pt.name, pt.unique_patient_id
	FROM change_requests cr
	JOIN prescriptions p ON p.id = cr.prescription_id
	JOIN doctors d ON d.id = cr.doctor_id
	JOIN patients pt ON pt.id = cr.patient_id`

// Repository implements change request persistence
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new change request repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetPrescription retrieves the prescription a request would concern
func (r *Repository) GetPrescription(ctx context.Context, id string) (*types.Prescription, error) {
	var (
		p         types.Prescription
		expiresAt sql.NullTime
	)
	err := r.db.Track(ctx, "select", "prescriptions", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, `
			SELECT id, patient_id, doctor_id, medication_name, dosage, frequency, duration, notes, status, prescribed_at, expires_at
			FROM prescriptions
			WHERE id = $1`, id).Scan(
			&p.ID,
			&p.PatientID,
			&p.DoctorID,
			&p.MedicationName,
			&p.Dosage,
			&p.Frequency,
			&p.Duration,
			&p.Notes,
			&p.Status,
			&p.PrescribedAt,
			&expiresAt,
		)
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Prescription not found")
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	return &p, nil
}

// Create inserts a new change request
func (r *Repository) Create(ctx context.Context, cr *types.ChangeRequest) error {
	err := r.db.Track(ctx, "insert", "change_requests", func(ctx context.Context) (int64, error) {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO change_requests (id, patient_id, doctor_id, prescription_id, reason, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cr.ID,
			cr.PatientID,
			cr.DoctorID,
			cr.PrescriptionID,
			cr.Reason,
			cr.Status,
			cr.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	})
	if err != nil {
		return fmt.Errorf("failed to create change request: %w", err)
	}
	return nil
}

// GetByID retrieves a change request with its display fields
func (r *Repository) GetByID(ctx context.Context, id string) (*types.ChangeRequest, error) {
	var cr *types.ChangeRequest
	err := r.db.Track(ctx, "select", "change_requests", func(ctx context.Context) (int64, error) {
		var err error
		cr, err = scanChangeRequest(r.db.QueryRowContext(ctx, selectChangeRequest+` WHERE cr.id = $1`, id))
		return 1, err
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Change request not found")
		}
		return nil, fmt.Errorf("failed to get change request: %w", err)
	}
	return cr, nil
}

// Respond moves a PENDING request addressed to doctorID into status. It
// reports false when no such PENDING request exists, which callers treat as
// already answered.
func (r *Repository) Respond(ctx context.Context, id, doctorID string, status types.ChangeRequestStatus, response *string, at time.Time) (bool, error) {
	var updated int64
	err := r.db.Track(ctx, "update", "change_requests", func(ctx context.Context) (int64, error) {
		result, err := r.db.ExecContext(ctx, `
			UPDATE change_requests
			SET status = $1, doctor_response = $2, responded_at = $3
			WHERE id = $4 AND doctor_id = $5 AND status = $6`,
			status,
			response,
			at,
			id,
			doctorID,
			types.ChangeRequestPending,
		)
		if err != nil {
			return 0, err
		}
		updated, err = result.RowsAffected()
		return updated, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to respond to change request: %w", err)
	}
	return updated == 1, nil
}

// ListForDoctor lists the requests addressed to doctorID, newest first
func (r *Repository) ListForDoctor(ctx context.Context, doctorID string) ([]*types.ChangeRequest, error) {
	requests, err := r.list(ctx, selectChangeRequest+` WHERE cr.doctor_id = $1 ORDER BY cr.created_at DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	for _, cr := range requests {
		cr.Doctor = nil
	}
	return requests, nil
}

// ListForPatient lists the requests raised by patientID, newest first
func (r *Repository) ListForPatient(ctx context.Context, patientID string) ([]*types.ChangeRequest, error) {
	requests, err := r.list(ctx, selectChangeRequest+` WHERE cr.patient_id = $1 ORDER BY cr.created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	for _, cr := range requests {
		cr.Patient = nil
		cr.Prescription.Status = ""
	}
	return requests, nil
}

func (r *Repository) list(ctx context.Context, query, arg string) ([]*types.ChangeRequest, error) {
	requests := make([]*types.ChangeRequest, 0)
	err := r.db.Track(ctx, "select", "change_requests", func(ctx context.Context) (int64, error) {
		rows, err := r.db.QueryContext(ctx, query, arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			cr, err := scanChangeRequest(rows)
			if err != nil {
				return 0, err
			}
			requests = append(requests, cr)
		}
		return int64(len(requests)), rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list change requests: %w", err)
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChangeRequest(row rowScanner) (*types.ChangeRequest, error) {
	var (
		cr           types.ChangeRequest
		response     sql.NullString
		respondedAt  sql.NullTime
		prescription types.PrescriptionRef
		doctor       types.DoctorRef
		patient      types.PatientRef
	)
	err := row.Scan(
		&cr.ID,
		&cr.PatientID,
		&cr.DoctorID,
		&cr.PrescriptionID,
		&cr.Reason,
		&cr.Status,
		&response,
		&cr.CreatedAt,
		&respondedAt,
		&prescription.MedicationName,
		&prescription.Dosage,
		&prescription.Status,
		&doctor.Name,
		&doctor.Hospital,
		&patient.Name,
		&patient.UniquePatientID,
	)
	if err != nil {
		return nil, err
	}

	if response.Valid {
		cr.DoctorResponse = &response.String
	}
	if respondedAt.Valid {
		cr.RespondedAt = &respondedAt.Time
	}
	cr.Prescription = &prescription
	cr.Doctor = &doctor
	cr.Patient = &patient

	return &cr, nil
}
