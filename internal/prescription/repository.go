package prescription

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

const activeIndexName = "prescriptions_one_active_idx"

const patientColumns = `pt.id, pt.user_id, pt.name, pt.unique_patient_id, pt.qr_token, pt.age, pt.gender, pt.phone, pt.created_at`

const prescriptionColumns = `p.id, p.patient_id, p.doctor_id, p.medication_name, p.dosage, p.frequency, p.duration, p.notes, p.status, p.prescribed_at, p.expires_at`

// Repository implements prescription and patient-record persistence
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new prescription repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetPatientByID retrieves a patient by its internal ID
func (r *Repository) GetPatientByID(ctx context.Context, id string) (*types.Patient, error) {
	var patient *types.Patient
	err := r.db.Track(ctx, "select", "patients", func(ctx context.Context) (int64, error) {
		row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients pt WHERE pt.id = $1`, id)
		var err error
		patient, err = scanPatient(row)
		return 1, err
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

// SupersedeAndCreate replaces every ACTIVE prescription of the same patient
// and medication and inserts p as the new ACTIVE one. The patient row is
// locked for the duration so concurrent writes for one patient serialize.
func (r *Repository) SupersedeAndCreate(ctx context.Context, p *types.Prescription) (int64, error) {
	var replaced int64

	err := r.db.Track(ctx, "insert", "prescriptions", func(ctx context.Context) (int64, error) {
		err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
			var locked string
			err := tx.QueryRowContext(ctx, `SELECT id FROM patients WHERE id = $1 FOR UPDATE`, p.PatientID).Scan(&locked)
			if err != nil {
				if database.NotFound(err) {
					return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
				}
				return fmt.Errorf("failed to lock patient: %w", err)
			}

			result, err := tx.ExecContext(ctx, `
				UPDATE prescriptions
				SET status = $1
				WHERE patient_id = $2 AND medication_name = $3 AND status = $4`,
				types.PrescriptionReplaced,
				p.PatientID,
				p.MedicationName,
				types.PrescriptionActive,
			)
			if err != nil {
				return fmt.Errorf("failed to replace active prescriptions: %w", err)
			}
			if replaced, err = result.RowsAffected(); err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO prescriptions (id, patient_id, doctor_id, medication_name, dosage, frequency, duration, notes, status, prescribed_at, expires_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				p.ID,
				p.PatientID,
				p.DoctorID,
				p.MedicationName,
				p.Dosage,
				p.Frequency,
				p.Duration,
				p.Notes,
				p.Status,
				p.PrescribedAt,
				p.ExpiresAt,
			)
			if err != nil {
				if constraint, ok := database.UniqueViolation(err); ok && constraint == activeIndexName {
					return types.NewConflictError(types.ErrCodeDuplicateActive,
						"An active prescription for this medication was just created, please retry")
				}
				return fmt.Errorf("failed to create prescription: %w", err)
			}
			return nil
		})
		return replaced + 1, err
	})
	if err != nil {
		return 0, err
	}

	return replaced, nil
}

// GetByID retrieves a prescription by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*types.Prescription, error) {
	var p *types.Prescription
	err := r.db.Track(ctx, "select", "prescriptions", func(ctx context.Context) (int64, error) {
		row := r.db.QueryRowContext(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions p WHERE p.id = $1`, id)
		var err error
		p, err = scanPrescription(row)
		return 1, err
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Prescription not found")
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return p, nil
}

// ListByPatient lists a patient's prescriptions newest first, optionally
// filtered by status
func (r *Repository) ListByPatient(ctx context.Context, patientID string, status *types.PrescriptionStatus) ([]*types.Prescription, error) {
	query := `
		SELECT ` + prescriptionColumns + `, d.name, d.hospital
		FROM prescriptions p
		JOIN doctors d ON d.id = p.doctor_id
		WHERE p.patient_id = $1`
	args := []interface{}{patientID}
	if status != nil {
		query += ` AND p.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY p.prescribed_at DESC`

	prescriptions := make([]*types.Prescription, 0)
	err := r.db.Track(ctx, "select", "prescriptions", func(ctx context.Context) (int64, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPrescriptionWithDoctor(rows)
			if err != nil {
				return 0, err
			}
			prescriptions = append(prescriptions, p)
		}
		return int64(len(prescriptions)), rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

// ListPatientsForDoctor lists the patients doctorID has prescribed to
func (r *Repository) ListPatientsForDoctor(ctx context.Context, doctorID string) ([]*types.PatientSummary, error) {
	return r.listPatientSummaries(ctx, doctorID,
		`EXISTS (SELECT 1 FROM prescriptions x WHERE x.patient_id = pt.id AND x.doctor_id = $1)`)
}

// SearchPatients lists every patient whose name or unique ID contains term,
// case-insensitively
func (r *Repository) SearchPatients(ctx context.Context, doctorID, term string) ([]*types.PatientSummary, error) {
	return r.listPatientSummaries(ctx, doctorID,
		`(pt.name ILIKE $2 OR pt.unique_patient_id ILIKE $2)`, "%"+escapeLike(term)+"%")
}

// listPatientSummaries attaches to each patient matching where the latest
// prescription written by doctorID, if any
func (r *Repository) listPatientSummaries(ctx context.Context, doctorID, where string, extra ...interface{}) ([]*types.PatientSummary, error) {
	query := `
		SELECT ` + patientColumns + `, u.email,
			lp.id, lp.doctor_id, lp.medication_name, lp.dosage, lp.frequency, lp.duration, lp.notes, lp.status, lp.prescribed_at, lp.expires_at
		FROM patients pt
		JOIN users u ON u.id = pt.user_id
		LEFT JOIN LATERAL (
			SELECT p.id, p.doctor_id, p.medication_name, p.dosage, p.frequency, p.duration, p.notes, p.status, p.prescribed_at, p.expires_at
			FROM prescriptions p
			WHERE p.patient_id = pt.id AND p.doctor_id = $1
			ORDER BY p.prescribed_at DESC
			LIMIT 1
		) lp ON true
		WHERE ` + where + `
		ORDER BY pt.name ASC`
	args := append([]interface{}{doctorID}, extra...)

	summaries := make([]*types.PatientSummary, 0)
	err := r.db.Track(ctx, "select", "patients", func(ctx context.Context) (int64, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				summary = &types.PatientSummary{Prescriptions: make([]*types.Prescription, 0, 1)}
				email   string
				latest  nullablePrescription
			)
			err := rows.Scan(
				&summary.ID,
				&summary.UserID,
				&summary.Name,
				&summary.UniquePatientID,
				&summary.QRToken,
				&summary.Age,
				&summary.Gender,
				&summary.Phone,
				&summary.CreatedAt,
				&email,
				&latest.id,
				&latest.doctorID,
				&latest.medicationName,
				&latest.dosage,
				&latest.frequency,
				&latest.duration,
				&latest.notes,
				&latest.status,
				&latest.prescribedAt,
				&latest.expiresAt,
			)
			if err != nil {
				return 0, err
			}

			summary.User = &types.EmailRef{Email: email}
			if p := latest.toPrescription(summary.ID); p != nil {
				summary.Prescriptions = append(summary.Prescriptions, p)
			}
			summaries = append(summaries, summary)
		}
		return int64(len(summaries)), rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return summaries, nil
}

// GetPatientRecordByID returns the full record of the patient with id
func (r *Repository) GetPatientRecordByID(ctx context.Context, id string) (*types.PatientRecord, error) {
	return r.getPatientRecord(ctx, "id", id)
}

// GetPatientRecordByUniqueID returns the full record of the patient with the
// human-readable uniquePatientID
func (r *Repository) GetPatientRecordByUniqueID(ctx context.Context, uniquePatientID string) (*types.PatientRecord, error) {
	return r.getPatientRecord(ctx, "unique_patient_id", uniquePatientID)
}

func (r *Repository) getPatientRecord(ctx context.Context, column, value string) (*types.PatientRecord, error) {
	patient, email, err := r.getPatientWithEmail(ctx, column, value)
	if err != nil {
		return nil, err
	}

	prescriptions, err := r.ListByPatient(ctx, patient.ID, nil)
	if err != nil {
		return nil, err
	}

	changeRequests, err := r.listChangeRequests(ctx, patient.ID)
	if err != nil {
		return nil, err
	}

	return &types.PatientRecord{
		Patient:        *patient,
		User:           &types.EmailRef{Email: email},
		Prescriptions:  prescriptions,
		ChangeRequests: changeRequests,
	}, nil
}

// GetPatientProfile returns the patient profile owned by userID with its email
func (r *Repository) GetPatientProfile(ctx context.Context, userID string) (*types.PatientProfile, error) {
	patient, email, err := r.getPatientWithEmail(ctx, "user_id", userID)
	if err != nil {
		return nil, err
	}

	return &types.PatientProfile{
		Patient: *patient,
		User:    &types.EmailRef{Email: email},
	}, nil
}

func (r *Repository) getPatientWithEmail(ctx context.Context, column, value string) (*types.Patient, string, error) {
	query := fmt.Sprintf(`
		SELECT %s, u.email
		FROM patients pt
		JOIN users u ON u.id = pt.user_id
		WHERE pt.%s = $1`, patientColumns, column)

	var (
		patient types.Patient
		email   string
	)
	err := r.db.Track(ctx, "select", "patients", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, query, value).Scan(
			&patient.ID,
			&patient.UserID,
			&patient.Name,
			&patient.UniquePatientID,
			&patient.QRToken,
			&patient.Age,
			&patient.Gender,
			&patient.Phone,
			&patient.CreatedAt,
			&email,
		)
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, "", types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
		}
		return nil, "", fmt.Errorf("failed to get patient by %s: %w", column, err)
	}
	return &patient, email, nil
}

// listChangeRequests lists a patient's change requests newest first with the
// medication they concern
func (r *Repository) listChangeRequests(ctx context.Context, patientID string) ([]*types.ChangeRequest, error) {
	requests := make([]*types.ChangeRequest, 0)
	err := r.db.Track(ctx, "select", "change_requests", func(ctx context.Context) (int64, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT cr.id, cr.patient_id, cr.doctor_id, cr.prescription_id, cr.reason, cr.status,
				cr.doctor_response, cr.created_at, cr.responded_at, p.medication_name
			FROM change_requests cr
			JOIN prescriptions p ON p.id = cr.prescription_id
			WHERE cr.patient_id = $1
			ORDER BY cr.created_at DESC`, patientID)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				cr             types.ChangeRequest
				response       sql.NullString
				respondedAt    sql.NullTime
				medicationName string
			)
			err := rows.Scan(
				&cr.ID,
				&cr.PatientID,
				&cr.DoctorID,
				&cr.PrescriptionID,
				&cr.Reason,
				&cr.Status,
				&response,
				&cr.CreatedAt,
				&respondedAt,
				&medicationName,
			)
			if err != nil {
				return 0, err
			}
			if response.Valid {
				cr.DoctorResponse = &response.String
			}
			if respondedAt.Valid {
				cr.RespondedAt = &respondedAt.Time
			}
			cr.Prescription = &types.PrescriptionRef{MedicationName: medicationName}
			requests = append(requests, &cr)
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

func scanPatient(row rowScanner) (*types.Patient, error) {
	var patient types.Patient
	err := row.Scan(
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
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func scanPrescription(row rowScanner, extra ...interface{}) (*types.Prescription, error) {
	var (
		p         types.Prescription
		expiresAt sql.NullTime
	)
	dest := []interface{}{
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
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	return &p, nil
}

func scanPrescriptionWithDoctor(row rowScanner) (*types.Prescription, error) {
	var doctor types.DoctorRef
	p, err := scanPrescription(row, &doctor.Name, &doctor.Hospital)
	if err != nil {
		return nil, err
	}
	p.Doctor = &doctor
	return p, nil
}

// nullablePrescription receives the LEFT JOIN side of a patient listing
type nullablePrescription struct {
	id             sql.NullString
	doctorID       sql.NullString
	medicationName sql.NullString
	dosage         sql.NullString
	frequency      sql.NullString
	duration       sql.NullString
	notes          sql.NullString
	status         sql.NullString
	prescribedAt   sql.NullTime
	expiresAt      sql.NullTime
}

func (n nullablePrescription) toPrescription(patientID string) *types.Prescription {
	if !n.id.Valid {
		return nil
	}

	p := &types.Prescription{
		ID:             n.id.String,
		PatientID:      patientID,
		DoctorID:       n.doctorID.String,
		MedicationName: n.medicationName.String,
		Dosage:         n.dosage.String,
		Frequency:      n.frequency.String,
		Duration:       n.duration.String,
		Notes:          n.notes.String,
		Status:         types.PrescriptionStatus(n.status.String),
		PrescribedAt:   n.prescribedAt.Time,
	}
	if n.expiresAt.Valid {
		expiresAt := n.expiresAt.Time
		p.ExpiresAt = &expiresAt
	}
	return p
}

// escapeLike escapes the ILIKE wildcards in a user supplied search term
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
