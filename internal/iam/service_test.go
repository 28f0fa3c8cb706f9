package iam

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Mock implementations for testing

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) CreateDoctor(ctx context.Context, user *types.User, doctor *types.Doctor) error {
	args := m.Called(ctx, user, doctor)
	return args.Error(0)
}

func (m *MockUserRepository) CreatePatient(ctx context.Context, user *types.User, patient *types.Patient) error {
	args := m.Called(ctx, user, patient)
	return args.Error(0)
}

func (m *MockUserRepository) GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Doctor), args.Error(1)
}

func (m *MockUserRepository) GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, userID, action, entity, entityID string, details interface{}) {
	m.Called(ctx, userID, action, entity, entityID, details)
}

func notFound() error {
	return types.NewNotFoundError("USER_NOT_FOUND", "User not found")
}

func newTestService(repo *MockUserRepository, audit *MockAuditRecorder) *Service {
	return NewService(
		logger.NewNop(),
		repo,
		NewPasswordManagerWithCost(bcrypt.MinCost),
		NewTokenIssuer("test-secret", "medlog-api"),
		audit,
		nil,
	)
}

func TestService_Register_Doctor(t *testing.T) {
	repo := new(MockUserRepository)
	audit := new(MockAuditRecorder)
	service := newTestService(repo, audit)

	req := &types.RegistrationRequest{
		Email:          "asha@clinic.test",
		Password:       "secret123",
		Role:           types.RoleDoctor,
		Name:           "Dr. Asha Rao",
		Hospital:       "City Hospital",
		RegNumber:      "KMC-1234",
		Specialization: "Endocrinology",
	}

	repo.On("GetByEmail", mock.Anything, req.Email).Return(nil, notFound())
	repo.On("CreateDoctor", mock.Anything, mock.AnythingOfType("*types.User"), mock.AnythingOfType("*types.Doctor")).
		Run(func(args mock.Arguments) {
			user := args.Get(1).(*types.User)
			doctor := args.Get(2).(*types.Doctor)
			assert.NotEqual(t, req.Password, user.PasswordHash)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)))
			assert.Equal(t, user.ID, doctor.UserID)
			assert.Equal(t, "City Hospital", doctor.Hospital)
			assert.Equal(t, "KMC-1234", doctor.RegNumber)
		}).Return(nil)
	audit.On("Record", mock.Anything, mock.Anything, "REGISTER", "User", mock.Anything, "Registered as DOCTOR").Return()

	resp, err := service.Register(context.Background(), req)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, req.Email, resp.User.Email)
	assert.Equal(t, types.RoleDoctor, resp.User.Role)
	repo.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestService_Register_Patient(t *testing.T) {
	repo := new(MockUserRepository)
	audit := new(MockAuditRecorder)
	service := newTestService(repo, audit)

	req := &types.RegistrationRequest{
		Email:    "priya@example.test",
		Password: "secret123",
		Role:     types.RolePatient,
		Name:     "Priya Sharma",
		Age:      34,
		Gender:   "F",
		Phone:    "555-0100",
	}

	repo.On("GetByEmail", mock.Anything, req.Email).Return(nil, notFound())
	repo.On("CreatePatient", mock.Anything, mock.AnythingOfType("*types.User"), mock.AnythingOfType("*types.Patient")).
		Run(func(args mock.Arguments) {
			patient := args.Get(2).(*types.Patient)
			assert.Regexp(t, `^PRIYA-\d{4}$`, patient.UniquePatientID)
			assert.NotEmpty(t, patient.QRToken)
			assert.Equal(t, 34, patient.Age)
		}).Return(nil)
	audit.On("Record", mock.Anything, mock.Anything, "REGISTER", "User", mock.Anything, "Registered as PATIENT").Return()

	resp, err := service.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, types.RolePatient, resp.User.Role)
	repo.AssertExpectations(t)
}

func TestService_Register_RetriesPatientIDCollision(t *testing.T) {
	repo := new(MockUserRepository)
	audit := new(MockAuditRecorder)
	service := newTestService(repo, audit)

	var generated []string
	ids := []string{"PRIYA-1111", "PRIYA-2222"}
	service.generateID = func(name string) (string, error) {
		id := ids[len(generated)]
		generated = append(generated, id)
		return id, nil
	}

	req := &types.RegistrationRequest{Email: "p@example.test", Password: "pw", Role: types.RolePatient, Name: "Priya"}

	repo.On("GetByEmail", mock.Anything, req.Email).Return(nil, notFound())
	repo.On("CreatePatient", mock.Anything, mock.Anything, mock.MatchedBy(func(p *types.Patient) bool {
		return p.UniquePatientID == "PRIYA-1111"
	})).Return(ErrPatientIDTaken).Once()
	repo.On("CreatePatient", mock.Anything, mock.Anything, mock.MatchedBy(func(p *types.Patient) bool {
		return p.UniquePatientID == "PRIYA-2222"
	})).Return(nil).Once()
	audit.On("Record", mock.Anything, mock.Anything, "REGISTER", "User", mock.Anything, mock.Anything).Return()

	_, err := service.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, ids, generated)
	repo.AssertExpectations(t)
}

func TestService_Register_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := new(MockUserRepository)
	service := newTestService(repo, new(MockAuditRecorder))

	req := &types.RegistrationRequest{Email: "p@example.test", Password: "pw", Role: types.RolePatient, Name: "Priya"}

	repo.On("GetByEmail", mock.Anything, req.Email).Return(nil, notFound())
	repo.On("CreatePatient", mock.Anything, mock.Anything, mock.Anything).Return(ErrPatientIDTaken)

	_, err := service.Register(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, 500, types.HTTPStatus(err))
	repo.AssertNumberOfCalls(t, "CreatePatient", maxPatientIDAttempts)
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *types.RegistrationRequest
		message string
	}{
		{
			name:    "missing name",
			req:     &types.RegistrationRequest{Email: "a@b.c", Password: "pw", Role: types.RolePatient},
			message: "Email, password, role, and name are required",
		},
		{
			name:    "missing role",
			req:     &types.RegistrationRequest{Email: "a@b.c", Password: "pw", Name: "A"},
			message: "Email, password, role, and name are required",
		},
		{
			name:    "unknown role",
			req:     &types.RegistrationRequest{Email: "a@b.c", Password: "pw", Role: "ADMIN", Name: "A"},
			message: "Role must be DOCTOR or PATIENT",
		},
		{
			name:    "doctor without registration number",
			req:     &types.RegistrationRequest{Email: "a@b.c", Password: "pw", Role: types.RoleDoctor, Name: "A", Hospital: "City"},
			message: "Hospital and registration number required for doctors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			service := newTestService(repo, new(MockAuditRecorder))

			_, err := service.Register(context.Background(), tt.req)

			require.Error(t, err)
			assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
			assert.Equal(t, tt.message, types.PublicMessage(err, ""))
			// nothing may be written when validation fails
			repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "CreateDoctor", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	repo := new(MockUserRepository)
	service := newTestService(repo, new(MockAuditRecorder))

	repo.On("GetByEmail", mock.Anything, "taken@example.test").Return(&types.User{ID: "u1"}, nil)

	_, err := service.Register(context.Background(), &types.RegistrationRequest{
		Email: "taken@example.test", Password: "pw", Role: types.RolePatient, Name: "P",
	})

	require.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeConflict))
	assert.Equal(t, "Email already registered", types.PublicMessage(err, ""))
	repo.AssertNotCalled(t, "CreatePatient", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Register_DuplicateEmailRace(t *testing.T) {
	repo := new(MockUserRepository)
	service := newTestService(repo, new(MockAuditRecorder))

	repo.On("GetByEmail", mock.Anything, "race@example.test").Return(nil, notFound())
	repo.On("CreateDoctor", mock.Anything, mock.Anything, mock.Anything).
		Return(types.NewConflictError(types.ErrCodeEmailExists, "Email already registered"))

	_, err := service.Register(context.Background(), &types.RegistrationRequest{
		Email: "race@example.test", Password: "pw", Role: types.RoleDoctor, Name: "D", Hospital: "H", RegNumber: "R",
	})

	require.Error(t, err)
	assert.Equal(t, 409, types.HTTPStatus(err))
}

func TestService_Login(t *testing.T) {
	repo := new(MockUserRepository)
	audit := new(MockAuditRecorder)
	service := newTestService(repo, audit)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &types.User{ID: "user-1", Email: "asha@clinic.test", PasswordHash: string(hash), Role: types.RoleDoctor}
	repo.On("GetByEmail", mock.Anything, "asha@clinic.test").Return(user, nil)
	repo.On("GetByEmail", mock.Anything, "nobody@clinic.test").Return(nil, notFound())
	audit.On("Record", mock.Anything, "user-1", "LOGIN", "User", "user-1", nil).Return()

	t.Run("success", func(t *testing.T) {
		resp, err := service.Login(context.Background(), &types.Credentials{Email: "asha@clinic.test", Password: "correct"})

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "user-1", resp.User.ID)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, errWrong := service.Login(context.Background(), &types.Credentials{Email: "asha@clinic.test", Password: "nope"})
		_, errUnknown := service.Login(context.Background(), &types.Credentials{Email: "nobody@clinic.test", Password: "nope"})

		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.Equal(t, 401, types.HTTPStatus(errWrong))
		assert.Equal(t, types.PublicMessage(errWrong, ""), types.PublicMessage(errUnknown, ""))
		assert.Equal(t, "Invalid credentials", types.PublicMessage(errUnknown, ""))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := service.Login(context.Background(), &types.Credentials{Email: "asha@clinic.test"})

		require.Error(t, err)
		assert.Equal(t, "Email and password are required", types.PublicMessage(err, ""))
	})

	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestService_Login_RepositoryFailure(t *testing.T) {
	repo := new(MockUserRepository)
	service := newTestService(repo, new(MockAuditRecorder))

	repo.On("GetByEmail", mock.Anything, "a@b.c").Return(nil, errors.New("connection refused"))

	_, err := service.Login(context.Background(), &types.Credentials{Email: "a@b.c", Password: "pw"})

	require.Error(t, err)
	assert.Equal(t, 500, types.HTTPStatus(err))
}

func TestService_GetMe(t *testing.T) {
	repo := new(MockUserRepository)
	service := newTestService(repo, new(MockAuditRecorder))

	repo.On("GetByID", mock.Anything, "patient-user").
		Return(&types.User{ID: "patient-user", Email: "p@example.test", PasswordHash: "hash", Role: types.RolePatient}, nil)
	repo.On("GetPatientByUserID", mock.Anything, "patient-user").
		Return(&types.Patient{ID: "patient-1", UniquePatientID: "PRIYA-4821"}, nil)
	repo.On("GetByID", mock.Anything, "gone").Return(nil, notFound())

	profile, err := service.GetMe(context.Background(), &types.Identity{UserID: "patient-user", Role: types.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, "p@example.test", profile.Email)
	require.NotNil(t, profile.Patient)
	assert.Equal(t, "PRIYA-4821", profile.Patient.UniquePatientID)
	assert.Nil(t, profile.Doctor)

	_, err = service.GetMe(context.Background(), &types.Identity{UserID: "gone", Role: types.RolePatient})
	require.Error(t, err)
	assert.Equal(t, 404, types.HTTPStatus(err))
	assert.Equal(t, "User not found", types.PublicMessage(err, ""))
}
