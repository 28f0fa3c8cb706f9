package prescription

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/internal/iam"
	"github.com/Sriharan2222/medlog/pkg/config"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

func newTestRouter(t *testing.T, f *fixture) http.Handler {
	t.Helper()

	cfg := &config.Config{
		JWT:        config.JWTConfig{SecretKey: "test-secret", Issuer: "medlog-api"},
		Public:     config.PublicConfig{RequestsPerMin: 60},
		Monitoring: config.MonitoringConfig{HealthPath: "/api/health", MetricsPath: "/metrics"},
	}
	gw := gateway.NewService(cfg, gateway.NewTokenValidator("test-secret", "medlog-api"), logger.NewNop(), gateway.Options{})
	NewHandlers(f.service, logger.NewNop()).RegisterRoutes(gw.Routes())
	return gw.Handler()
}

func authHeader(t *testing.T, userID string, role types.UserRole) string {
	t.Helper()

	token, err := iam.NewTokenIssuer("test-secret", "medlog-api").IssueToken(&types.User{ID: userID, Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHandlers_CreateAndList(t *testing.T) {
	f := newFixture()
	router := newTestRouter(t, f)
	doctor := authHeader(t, "doctor-user", types.RoleDoctor)
	patient := authHeader(t, "patient-user", types.RolePatient)

	for _, dosage := range []string{"500mg", "1000mg"} {
		body, _ := json.Marshal(types.CreatePrescriptionRequest{
			PatientID: "patient-1", MedicationName: "Metformin", Dosage: dosage, Frequency: "Twice daily", Duration: "3 months",
		})
		req := httptest.NewRequest("POST", "/api/doctor/prescriptions", bytes.NewReader(body))
		req.Header.Set("Authorization", doctor)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest("GET", "/api/patient/prescriptions?status=ACTIVE", nil)
	req.Header.Set("Authorization", patient)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var active []types.Prescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "1000mg", active[0].Dosage)
}

func TestHandlers_CreatePrescription_BadRequest(t *testing.T) {
	f := newFixture()
	router := newTestRouter(t, f)

	req := httptest.NewRequest("POST", "/api/doctor/prescriptions", bytes.NewBufferString(`{"patientId":"patient-1"}`))
	req.Header.Set("Authorization", authHeader(t, "doctor-user", types.RoleDoctor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Patient, medication name, dosage, frequency, and duration are required")
}

func TestHandlers_FindPatient_NotFound(t *testing.T) {
	f := newFixture()
	router := newTestRouter(t, f)

	req := httptest.NewRequest("GET", "/api/doctor/patients/find/NOPE-0000", nil)
	req.Header.Set("Authorization", authHeader(t, "doctor-user", types.RoleDoctor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No patient found with that ID")
}

func TestHandlers_PatientCannotPrescribe(t *testing.T) {
	f := newFixture()
	router := newTestRouter(t, f)

	req := httptest.NewRequest("POST", "/api/doctor/prescriptions", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", authHeader(t, "patient-user", types.RolePatient))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, f.repo.prescriptions)
}
