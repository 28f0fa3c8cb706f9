package types

import "time"

// UserRole represents the role a user account was registered with
type UserRole string

const (
	RoleDoctor  UserRole = "DOCTOR"
	RolePatient UserRole = "PATIENT"
)

// Valid reports whether the role is one the system knows about
func (r UserRole) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// User represents an account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Doctor is the profile owned by a DOCTOR user
type Doctor struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"userId" db:"user_id"`
	Name           string    `json:"name" db:"name"`
	Hospital       string    `json:"hospital" db:"hospital"`
	RegNumber      string    `json:"regNumber" db:"reg_number"`
	Specialization string    `json:"specialization" db:"specialization"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Patient is the profile owned by a PATIENT user
type Patient struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"userId" db:"user_id"`
	Name            string    `json:"name" db:"name"`
	UniquePatientID string    `json:"uniquePatientId" db:"unique_patient_id"`
	QRToken         string    `json:"qrToken" db:"qr_token"`
	Age             int       `json:"age" db:"age"`
	Gender          string    `json:"gender" db:"gender"`
	Phone           string    `json:"phone" db:"phone"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is the safe view of a user returned with a token
type UserSummary struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// UserProfile is a user together with its role profile
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Doctor    *Doctor   `json:"doctor"`
	Patient   *Patient  `json:"patient"`
}

// Identity is the verified caller attached to a request
type Identity struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// RegistrationRequest represents user registration data
type RegistrationRequest struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Role           UserRole `json:"role"`
	Name           string   `json:"name"`
	Hospital       string   `json:"hospital,omitempty"`
	RegNumber      string   `json:"regNumber,omitempty"`
	Specialization string   `json:"specialization,omitempty"`
	Age            FlexInt  `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	Phone          string   `json:"phone,omitempty"`
}

// Credentials represents user login credentials
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}
