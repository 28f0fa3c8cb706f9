package interfaces

import (
	"context"

	"github.com/Sriharan2222/medlog/pkg/types"
)

// IAMService defines the credential store and token issuing operations
type IAMService interface {
	Register(ctx context.Context, req *types.RegistrationRequest) (*types.AuthResponse, error)
	Login(ctx context.Context, credentials *types.Credentials) (*types.AuthResponse, error)
	GetMe(ctx context.Context, identity *types.Identity) (*types.UserProfile, error)
}

// UserRepository defines the interface for user and profile persistence
type UserRepository interface {
	ProfileLookup

	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)

	// CreateDoctor and CreatePatient insert the user and its profile in a
	// single transaction.
	CreateDoctor(ctx context.Context, user *types.User, doctor *types.Doctor) error
	CreatePatient(ctx context.Context, user *types.User, patient *types.Patient) error
}

// ProfileLookup resolves an authenticated user to its role profile
type ProfileLookup interface {
	GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error)
	GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error)
}

// PasswordManager defines the interface for password operations
type PasswordManager interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) (bool, error)
}

// TokenIssuer signs identity tokens
type TokenIssuer interface {
	IssueToken(user *types.User) (string, error)
}

// TokenValidator verifies identity tokens
type TokenValidator interface {
	ValidateJWT(token string) (*types.Identity, error)
}

// AuditRecorder accepts audit entries without blocking the caller.
// details may be a string or any JSON-encodable value.
type AuditRecorder interface {
	Record(ctx context.Context, userID, action, entity, entityID string, details interface{})
}
