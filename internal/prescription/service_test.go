package prescription

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// memoryRepository is an in-memory ledger with the same supersession
// semantics as the SQL repository
type memoryRepository struct {
	mu            sync.Mutex
	patients      map[string]*types.Patient
	emails        map[string]string
	prescriptions []*types.Prescription
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		patients: make(map[string]*types.Patient),
		emails:   make(map[string]string),
	}
}

func (m *memoryRepository) addPatient(p *types.Patient, email string) {
	m.patients[p.ID] = p
	m.emails[p.ID] = email
}

func (m *memoryRepository) GetPatientByID(ctx context.Context, id string) (*types.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

func (m *memoryRepository) SupersedeAndCreate(ctx context.Context, p *types.Prescription) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var replaced int64
	for _, existing := range m.prescriptions {
		if existing.PatientID == p.PatientID && existing.MedicationName == p.MedicationName &&
			existing.Status == types.PrescriptionActive {
			existing.Status = types.PrescriptionReplaced
			replaced++
		}
	}
	stored := *p
	m.prescriptions = append(m.prescriptions, &stored)
	return replaced, nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (*types.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prescriptions {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Prescription not found")
}

func (m *memoryRepository) ListByPatient(ctx context.Context, patientID string, status *types.PrescriptionStatus) ([]*types.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*types.Prescription, 0)
	for _, p := range m.prescriptions {
		if p.PatientID != patientID || (status != nil && p.Status != *status) {
			continue
		}
		result = append(result, p)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].PrescribedAt.After(result[j].PrescribedAt) })
	return result, nil
}

func (m *memoryRepository) ListPatientsForDoctor(ctx context.Context, doctorID string) ([]*types.PatientSummary, error) {
	return m.summaries(doctorID, func(p *types.Patient) bool {
		for _, rx := range m.prescriptions {
			if rx.PatientID == p.ID && rx.DoctorID == doctorID {
				return true
			}
		}
		return false
	}), nil
}

func (m *memoryRepository) SearchPatients(ctx context.Context, doctorID, term string) ([]*types.PatientSummary, error) {
	term = strings.ToLower(term)
	return m.summaries(doctorID, func(p *types.Patient) bool {
		return strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.UniquePatientID), term)
	}), nil
}

func (m *memoryRepository) summaries(doctorID string, match func(*types.Patient) bool) []*types.PatientSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*types.PatientSummary, 0)
	for _, p := range m.patients {
		if !match(p) {
			continue
		}
		summary := &types.PatientSummary{Patient: *p, User: &types.EmailRef{Email: m.emails[p.ID]}, Prescriptions: []*types.Prescription{}}
		var latest *types.Prescription
		for _, rx := range m.prescriptions {
			if rx.PatientID == p.ID && rx.DoctorID == doctorID && (latest == nil || rx.PrescribedAt.After(latest.PrescribedAt)) {
				latest = rx
			}
		}
		if latest != nil {
			summary.Prescriptions = append(summary.Prescriptions, latest)
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *memoryRepository) GetPatientRecordByID(ctx context.Context, id string) (*types.PatientRecord, error) {
	p, err := m.GetPatientByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prescriptions, _ := m.ListByPatient(ctx, id, nil)
	return &types.PatientRecord{Patient: *p, User: &types.EmailRef{Email: m.emails[id]}, Prescriptions: prescriptions, ChangeRequests: []*types.ChangeRequest{}}, nil
}

func (m *memoryRepository) GetPatientRecordByUniqueID(ctx context.Context, uniquePatientID string) (*types.PatientRecord, error) {
	for id, p := range m.patients {
		if p.UniquePatientID == uniquePatientID {
			return m.GetPatientRecordByID(ctx, id)
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

func (m *memoryRepository) GetPatientProfile(ctx context.Context, userID string) (*types.PatientProfile, error) {
	for id, p := range m.patients {
		if p.UserID == userID {
			return &types.PatientProfile{Patient: *p, User: &types.EmailRef{Email: m.emails[id]}}, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

type MockProfileLookup struct {
	mock.Mock
}

func (m *MockProfileLookup) GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Doctor), args.Error(1)
}

func (m *MockProfileLookup) GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error) {
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

type fixture struct {
	service  *Service
	repo     *memoryRepository
	profiles *MockProfileLookup
	audit    *MockAuditRecorder
	clock    time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryRepository(),
		profiles: new(MockProfileLookup),
		audit:    new(MockAuditRecorder),
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.service = NewService(logger.NewNop(), f.repo, f.profiles, f.audit, nil)
	f.service.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}

	f.repo.addPatient(&types.Patient{ID: "patient-1", UserID: "patient-user", Name: "Priya Sharma", UniquePatientID: "PRIYA-4821"}, "priya@example.test")
	f.repo.addPatient(&types.Patient{ID: "patient-2", UserID: "other-user", Name: "Arjun Mehta", UniquePatientID: "ARJUN-1002"}, "arjun@example.test")

	f.profiles.On("GetDoctorByUserID", mock.Anything, "doctor-user").
		Return(&types.Doctor{ID: "doctor-1", UserID: "doctor-user", Name: "Dr. Asha", Hospital: "City Hospital"}, nil)
	f.profiles.On("GetDoctorByUserID", mock.Anything, "orphan-user").
		Return(nil, types.NewNotFoundError("DOCTOR_NOT_FOUND", "Doctor profile not found"))
	f.profiles.On("GetPatientByUserID", mock.Anything, "patient-user").
		Return(&types.Patient{ID: "patient-1", UserID: "patient-user"}, nil)
	f.audit.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	return f
}

func (f *fixture) prescribe(t *testing.T, patientID, medication, dosage string) *types.Prescription {
	t.Helper()

	p, err := f.service.Create(context.Background(), "doctor-user", &types.CreatePrescriptionRequest{
		PatientID:      patientID,
		MedicationName: medication,
		Dosage:         dosage,
		Frequency:      "Twice daily",
		Duration:       "3 months",
	})
	require.NoError(t, err)
	return p
}

func TestService_Create_ReplacesSameMedication(t *testing.T) {
	f := newFixture()

	first := f.prescribe(t, "patient-1", "Metformin", "500mg")
	f.prescribe(t, "patient-1", "Lisinopril", "10mg")
	second := f.prescribe(t, "patient-1", "Metformin", "1000mg")

	assert.Equal(t, types.PrescriptionActive, second.Status)
	assert.Equal(t, "Dr. Asha", second.Doctor.Name)
	assert.Equal(t, "PRIYA-4821", second.Patient.UniquePatientID)

	stored, err := f.repo.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PrescriptionReplaced, stored.Status)

	active, err := f.service.ListForPatient(context.Background(), "patient-user", "ACTIVE")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "1000mg", active[0].Dosage)
	assert.Equal(t, "Lisinopril", active[1].MedicationName)

	replaced, err := f.service.ListForPatient(context.Background(), "patient-user", "REPLACED")
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.Equal(t, "500mg", replaced[0].Dosage)

	f.audit.AssertCalled(t, "Record", mock.Anything, "doctor-user", "CREATE_PRESCRIPTION", "Prescription", second.ID,
		map[string]interface{}{"medicationName": "Metformin", "dosage": "1000mg", "patientId": "patient-1", "replaced": int64(1)})
}

func TestService_Create_NameMatchIsExact(t *testing.T) {
	f := newFixture()

	f.prescribe(t, "patient-1", "Metformin", "500mg")
	f.prescribe(t, "patient-1", "metformin", "500mg")

	active, err := f.service.ListForPatient(context.Background(), "patient-user", "ACTIVE")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestService_Create_OtherPatientUntouched(t *testing.T) {
	f := newFixture()

	other := f.prescribe(t, "patient-2", "Metformin", "500mg")
	f.prescribe(t, "patient-1", "Metformin", "500mg")

	stored, err := f.repo.GetByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PrescriptionActive, stored.Status)
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), "doctor-user", &types.CreatePrescriptionRequest{
		PatientID: "patient-1", MedicationName: "Metformin", Dosage: "500mg", Frequency: "daily",
	})
	require.Error(t, err)
	assert.Equal(t, "Patient, medication name, dosage, frequency, and duration are required", types.PublicMessage(err, ""))

	_, err = f.service.Create(context.Background(), "doctor-user", &types.CreatePrescriptionRequest{
		PatientID: "patient-1", MedicationName: "Metformin", Dosage: "500mg", Frequency: "daily", Duration: "1 week",
		ExpiresAt: "next tuesday",
	})
	require.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
	assert.Empty(t, f.repo.prescriptions)
}

func TestService_Create_NotFound(t *testing.T) {
	f := newFixture()

	req := &types.CreatePrescriptionRequest{PatientID: "missing", MedicationName: "M", Dosage: "1", Frequency: "1", Duration: "1"}
	_, err := f.service.Create(context.Background(), "doctor-user", req)
	require.Error(t, err)
	assert.Equal(t, "Patient not found", types.PublicMessage(err, ""))

	req.PatientID = "patient-1"
	_, err = f.service.Create(context.Background(), "orphan-user", req)
	require.Error(t, err)
	assert.Equal(t, "Doctor profile not found", types.PublicMessage(err, ""))
}

func TestService_Create_ExpiresAt(t *testing.T) {
	f := newFixture()

	p, err := f.service.Create(context.Background(), "doctor-user", &types.CreatePrescriptionRequest{
		PatientID: "patient-1", MedicationName: "Amoxicillin", Dosage: "250mg", Frequency: "3x daily", Duration: "7 days",
		ExpiresAt: "2024-03-08",
	})
	require.NoError(t, err)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), *p.ExpiresAt)
}

func TestService_ListForPatient_IgnoresUnknownStatus(t *testing.T) {
	f := newFixture()

	f.prescribe(t, "patient-1", "Metformin", "500mg")
	f.prescribe(t, "patient-1", "Metformin", "1000mg")

	all, err := f.service.ListForPatient(context.Background(), "patient-user", "BOGUS")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "1000mg", all[0].Dosage)
}

func TestService_ListPatientsForDoctor(t *testing.T) {
	f := newFixture()

	f.prescribe(t, "patient-1", "Metformin", "500mg")
	f.prescribe(t, "patient-1", "Metformin", "1000mg")

	mine, err := f.service.ListPatientsForDoctor(context.Background(), "doctor-user", "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "priya@example.test", mine[0].User.Email)
	require.Len(t, mine[0].Prescriptions, 1)
	assert.Equal(t, "1000mg", mine[0].Prescriptions[0].Dosage)

	found, err := f.service.ListPatientsForDoctor(context.Background(), "doctor-user", "  arjun ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ARJUN-1002", found[0].UniquePatientID)
	assert.Empty(t, found[0].Prescriptions)
}

func TestService_FindPatientByUniqueID(t *testing.T) {
	f := newFixture()

	record, err := f.service.FindPatientByUniqueID(context.Background(), "doctor-user", "PRIYA-4821")
	require.NoError(t, err)
	assert.Equal(t, "patient-1", record.ID)
	f.audit.AssertCalled(t, "Record", mock.Anything, "doctor-user", "VIEW_PATIENT", "Patient", "patient-1", nil)

	_, err = f.service.FindPatientByUniqueID(context.Background(), "doctor-user", "NOPE-0000")
	require.Error(t, err)
	assert.Equal(t, 404, types.HTTPStatus(err))
	assert.Equal(t, "No patient found with that ID. Make sure the patient has registered first.", types.PublicMessage(err, ""))
}

func TestService_GetPatient(t *testing.T) {
	f := newFixture()
	f.prescribe(t, "patient-1", "Metformin", "500mg")

	record, err := f.service.GetPatient(context.Background(), "doctor-user", "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "priya@example.test", record.User.Email)
	assert.Len(t, record.Prescriptions, 1)
	f.audit.AssertCalled(t, "Record", mock.Anything, "doctor-user", "VIEW_PATIENT", "Patient", "patient-1", nil)

	_, err = f.service.GetPatient(context.Background(), "doctor-user", "missing")
	require.Error(t, err)
	assert.Equal(t, 404, types.HTTPStatus(err))
}

func TestService_GetPatientProfile(t *testing.T) {
	f := newFixture()

	profile, err := f.service.GetPatientProfile(context.Background(), "patient-user")
	require.NoError(t, err)
	assert.Equal(t, "priya@example.test", profile.User.Email)

	_, err = f.service.GetPatientProfile(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, "Patient profile not found", types.PublicMessage(err, ""))
}

func TestParseExpiry(t *testing.T) {
	got, err := parseExpiry("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseExpiry("2024-06-01T10:00:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 4, 30, 0, 0, time.UTC), *got)

	_, err = parseExpiry("01/06/2024")
	assert.Error(t, err)
}
