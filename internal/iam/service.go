package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// maxPatientIDAttempts bounds the retries on a unique patient ID collision
const maxPatientIDAttempts = 5

// Service implements the credential store and token issuing operations
type Service struct {
	logger          *logger.Logger
	userRepo        interfaces.UserRepository
	passwordManager interfaces.PasswordManager
	tokens          interfaces.TokenIssuer
	audit           interfaces.AuditRecorder
	metrics         *monitoring.MetricsCollector

	now        func() time.Time
	generateID func(name string) (string, error)
}

// NewService creates a new IAM service instance
func NewService(
	log *logger.Logger,
	userRepo interfaces.UserRepository,
	passwordManager interfaces.PasswordManager,
	tokens interfaces.TokenIssuer,
	audit interfaces.AuditRecorder,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		logger:          log,
		userRepo:        userRepo,
		passwordManager: passwordManager,
		tokens:          tokens,
		audit:           audit,
		metrics:         metrics,
		now:             time.Now,
		generateID:      GeneratePatientID,
	}
}

// Register creates a user with its doctor or patient profile and signs a token
func (s *Service) Register(ctx context.Context, req *types.RegistrationRequest) (*types.AuthResponse, error) {
	if err := validateRegistration(req); err != nil {
		s.metrics.RecordAuthAttempt("register", "invalid")
		return nil, err
	}

	s.logger.WithContext(ctx).WithField("role", req.Role).Info("Registering new user")

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil && !types.IsErrorType(err, types.ErrorTypeNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthAttempt("register", "conflict")
		return nil, types.NewConflictError(types.ErrCodeEmailExists, "Email already registered")
	}

	hash, err := s.passwordManager.HashPassword(req.Password)
	if types.IsErrorType(err, types.ErrorTypeValidation) {
		return nil, err
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}

	now := s.now().UTC()
	user := &types.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
	}

	switch req.Role {
	case types.RoleDoctor:
		err = s.userRepo.CreateDoctor(ctx, user, &types.Doctor{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Name:           req.Name,
			Hospital:       req.Hospital,
			RegNumber:      req.RegNumber,
			Specialization: req.Specialization,
			CreatedAt:      now,
		})
	case types.RolePatient:
		err = s.createPatient(ctx, user, req, now)
	}
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeConflict) {
			s.metrics.RecordAuthAttempt("register", "conflict")
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.authResponse(user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, "REGISTER", "User", user.ID, fmt.Sprintf("Registered as %s", user.Role))
	s.metrics.RecordAuthAttempt("register", "success")
	s.logger.WithUserID(user.ID).WithField("role", user.Role).Info("User registered successfully")

	return resp, nil
}

// createPatient retries with a fresh unique patient ID while the generated
// one collides.
func (s *Service) createPatient(ctx context.Context, user *types.User, req *types.RegistrationRequest, now time.Time) error {
	for attempt := 1; attempt <= maxPatientIDAttempts; attempt++ {
		uniqueID, err := s.generateID(req.Name)
		if err != nil {
			return err
		}

		err = s.userRepo.CreatePatient(ctx, user, &types.Patient{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			Name:            req.Name,
			UniquePatientID: uniqueID,
			QRToken:         NewQRToken(),
			Age:             int(req.Age),
			Gender:          req.Gender,
			Phone:           req.Phone,
			CreatedAt:       now,
		})
		if !errors.Is(err, ErrPatientIDTaken) {
			return err
		}

		s.logger.WithContext(ctx).WithField("attempt", attempt).Warn("Patient ID collision, regenerating")
	}

	return types.NewInternalError(types.ErrCodeInternalError, "could not allocate a unique patient ID", ErrPatientIDTaken)
}

// Login verifies credentials and signs a token
func (s *Service) Login(ctx context.Context, credentials *types.Credentials) (*types.AuthResponse, error) {
	if credentials == nil || credentials.Email == "" || credentials.Password == "" {
		s.metrics.RecordAuthAttempt("login", "invalid")
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Email and password are required")
	}

	invalid := types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Invalid credentials")

	user, err := s.userRepo.GetByEmail(ctx, credentials.Email)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			s.metrics.RecordAuthAttempt("login", "failure")
			s.logger.Security("login_failed", "", map[string]interface{}{"reason": "unknown_email"})
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.passwordManager.VerifyPassword(user.PasswordHash, credentials.Password)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to verify password", err)
	}
	if !ok {
		s.metrics.RecordAuthAttempt("login", "failure")
		s.logger.Security("login_failed", user.ID, map[string]interface{}{"reason": "bad_password"})
		return nil, invalid
	}

	resp, err := s.authResponse(user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, "LOGIN", "User", user.ID, nil)
	s.metrics.RecordAuthAttempt("login", "success")

	return resp, nil
}

// GetMe returns the caller's account with its role profile
func (s *Service) GetMe(ctx context.Context, identity *types.Identity) (*types.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	profile := &types.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}

	switch user.Role {
	case types.RoleDoctor:
		doctor, err := s.userRepo.GetDoctorByUserID(ctx, user.ID)
		if err != nil && !types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, err
		}
		profile.Doctor = doctor
	case types.RolePatient:
		patient, err := s.userRepo.GetPatientByUserID(ctx, user.ID)
		if err != nil && !types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, err
		}
		profile.Patient = patient
	}

	return profile, nil
}

func (s *Service) authResponse(user *types.User) (*types.AuthResponse, error) {
	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to issue token", err)
	}

	return &types.AuthResponse{
		Token: token,
		User: types.UserSummary{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

// validateRegistration runs every check before anything is written
func validateRegistration(req *types.RegistrationRequest) error {
	if req == nil || req.Email == "" || req.Password == "" || req.Role == "" || req.Name == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Email, password, role, and name are required")
	}
	if !req.Role.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Role must be DOCTOR or PATIENT")
	}
	if req.Role == types.RoleDoctor && (req.Hospital == "" || req.RegNumber == "") {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Hospital and registration number required for doctors")
	}
	return nil
}
