package disclosure

import (
	"context"
	"fmt"

	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Repository implements the queries behind the public QR view
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new disclosure repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetPatientByQRToken retrieves the patient a QR token points at
func (r *Repository) GetPatientByQRToken(ctx context.Context, qrToken string) (*types.Patient, error) {
	var patient types.Patient
	err := r.db.Track(ctx, "select", "patients", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, `
			SELECT id, user_id, name, unique_patient_id, qr_token, age, gender, phone, created_at
			FROM patients
			WHERE qr_token = $1`, qrToken).Scan(
			&patient.ID,
			&patient.UserID,
			&patient.Name,
			&patient.UniquePatientID,
			&patient.QRToken,
			&patient.Age,
			&patient.Gender,
			&patient.Phone,
			&patient.CreatedAt,
		)
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
		}
		return nil, fmt.Errorf("failed to get patient by QR token: %w", err)
	}
	return &patient, nil
}

// ListActiveMedications lists the patient's ACTIVE prescriptions, newest first
func (r *Repository) ListActiveMedications(ctx context.Context, patientID string) ([]*types.PublicMedication, error) {
	medications := make([]*types.PublicMedication, 0)
	err := r.db.Track(ctx, "select", "prescriptions", func(ctx context.Context) (int64, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT p.medication_name, p.dosage, p.frequency, p.duration, p.notes, p.status, p.prescribed_at,
				d.name, d.hospital
			FROM prescriptions p
			JOIN doctors d ON d.id = p.doctor_id
			WHERE p.patient_id = $1 AND p.status = $2
			ORDER BY p.prescribed_at DESC`, patientID, types.PrescriptionActive)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var m types.PublicMedication
			if err := rows.Scan(
				&m.MedicationName,
				&m.Dosage,
				&m.Frequency,
				&m.Duration,
				&m.Notes,
				&m.Status,
				&m.PrescribedAt,
				&m.Doctor.Name,
				&m.Doctor.Hospital,
			); err != nil {
				return 0, err
			}
			medications = append(medications, &m)
		}
		return int64(len(medications)), rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}
	return medications, nil
}

// UpdateQRToken replaces the patient's QR token
func (r *Repository) UpdateQRToken(ctx context.Context, patientID, qrToken string) error {
	var updated int64
	err := r.db.Track(ctx, "update", "patients", func(ctx context.Context) (int64, error) {
		result, err := r.db.ExecContext(ctx, `UPDATE patients SET qr_token = $1 WHERE id = $2`, qrToken, patientID)
		if err != nil {
			return 0, err
		}
		updated, err = result.RowsAffected()
		return updated, err
	})
	if err != nil {
		return fmt.Errorf("failed to update QR token: %w", err)
	}
	if updated == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	return nil
}
