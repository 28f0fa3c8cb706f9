package iam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// ErrPatientIDTaken is returned by CreatePatient when the generated
// human-readable patient ID collides with an existing one.
var ErrPatientIDTaken = errors.New("unique patient id already taken")

// UserRepository implements user and profile persistence
type UserRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: log,
	}
}

const insertUserQuery = `
	INSERT INTO users (id, email, password_hash, role, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// CreateDoctor creates the user and its doctor profile in one transaction
func (r *UserRepository) CreateDoctor(ctx context.Context, user *types.User, doctor *types.Doctor) error {
	return r.db.Track(ctx, "insert", "doctors", func(ctx context.Context) (int64, error) {
		err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := r.insertUser(ctx, tx, user); err != nil {
				return err
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO doctors (id, user_id, name, hospital, reg_number, specialization, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				doctor.ID,
				doctor.UserID,
				doctor.Name,
				doctor.Hospital,
				doctor.RegNumber,
				doctor.Specialization,
				doctor.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create doctor profile: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}

		r.logger.WithUserID(user.ID).Info("Doctor account created")
		return 2, nil
	})
}

// CreatePatient creates the user and its patient profile in one transaction
func (r *UserRepository) CreatePatient(ctx context.Context, user *types.User, patient *types.Patient) error {
	return r.db.Track(ctx, "insert", "patients", func(ctx context.Context) (int64, error) {
		err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := r.insertUser(ctx, tx, user); err != nil {
				return err
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO patients (id, user_id, name, unique_patient_id, qr_token, age, gender, phone, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				patient.ID,
				patient.UserID,
				patient.Name,
				patient.UniquePatientID,
				patient.QRToken,
				patient.Age,
				patient.Gender,
				patient.Phone,
				patient.CreatedAt,
			)
			if err != nil {
				if constraint, ok := database.UniqueViolation(err); ok && constraint == "patients_unique_patient_id_key" {
					return ErrPatientIDTaken
				}
				return fmt.Errorf("failed to create patient profile: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}

		r.logger.WithUserID(user.ID).Info("Patient account created")
		return 2, nil
	})
}

func (r *UserRepository) insertUser(ctx context.Context, tx *sql.Tx, user *types.User) error {
	_, err := tx.ExecContext(ctx, insertUserQuery,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return types.NewConflictError(types.ErrCodeEmailExists, "Email already registered")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r *UserRepository) getUser(ctx context.Context, column, value string) (*types.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE %s = $1`, column)

	var user types.User
	err := r.db.Track(ctx, "select", "users", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, query, value).Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
		)
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError("USER_NOT_FOUND", "User not found")
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return &user, nil
}

// GetDoctorByUserID retrieves the doctor profile owned by a user
func (r *UserRepository) GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	var doctor types.Doctor
	err := r.db.Track(ctx, "select", "doctors", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, `
			SELECT id, user_id, name, hospital, reg_number, specialization, created_at
			FROM doctors
			WHERE user_id = $1`, userID).Scan(
			&doctor.ID,
			&doctor.UserID,
			&doctor.Name,
			&doctor.Hospital,
			&doctor.RegNumber,
			&doctor.Specialization,
			&doctor.CreatedAt,
		)
	})
	if err != nil {
		if database.NotFound(err) {
			return nil, types.NewNotFoundError("DOCTOR_NOT_FOUND", "Doctor profile not found")
		}
		return nil, fmt.Errorf("failed to get doctor profile: %w", err)
	}

	return &doctor, nil
}

// GetPatientByUserID retrieves the patient profile owned by a user
func (r *UserRepository) GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error) {
	var patient types.Patient
	err := r.db.Track(ctx, "select", "patients", func(ctx context.Context) (int64, error) {
		return 1, r.db.QueryRowContext(ctx, `
			SELECT id, user_id, name, unique_patient_id, qr_token, age, gender, phone, created_at
			FROM patients
			WHERE user_id = $1`, userID).Scan(
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
			return nil, types.NewNotFoundError("PATIENT_NOT_FOUND", "Patient profile not found")
		}
		return nil, fmt.Errorf("failed to get patient profile: %w", err)
	}

	return &patient, nil
}
