package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriharan2222/medlog/pkg/config"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            5000,
			ReadTimeout:     30,
			WriteTimeout:    30,
			IdleTimeout:     120,
			ShutdownTimeout: 5,
		},
		JWT:    config.JWTConfig{SecretKey: "test-secret", Issuer: "medlog-api"},
		Public: config.PublicConfig{FrontendURL: "http://localhost:3000", RequestsPerMin: 2},
		CORS:   config.CORSConfig{AllowedOrigin: "http://localhost:3000"},
		Monitoring: config.MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			HealthPath:  "/api/health",
		},
	}
}

// createTestService wires one echo handler per route group
func createTestService(t *testing.T, opts Options) *Service {
	t.Helper()

	cfg := testConfig()
	s := NewService(cfg, NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer), logger.NewNop(), opts)

	echo := func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"ok": "true"}
		if identity, ok := IdentityFromContext(r.Context()); ok {
			body["user_id"] = identity.UserID
			body["role"] = string(identity.Role)
		}
		if id, ok := mux.Vars(r)["id"]; ok {
			body["id"] = id
		}
		WriteJSON(w, http.StatusOK, body)
	}

	routes := s.Routes()
	routes.Auth.HandleFunc("/login", echo).Methods("POST")
	routes.Authenticated.HandleFunc("/auth/me", echo).Methods("GET")
	routes.Doctor.HandleFunc("/patients/{id}", echo).Methods("GET")
	routes.Patient.HandleFunc("/profile", echo).Methods("GET")
	routes.Public.HandleFunc("/patient/{id}", echo).Methods("GET")

	return s
}

func bearer(t *testing.T, userID, role string) string {
	return "Bearer " + signTestToken(t, "test-secret", jwt.SigningMethodHS256, testClaims(userID, role, time.Hour))
}

func doRequest(s *Service, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestNewService(t *testing.T) {
	s := createTestService(t, Options{})

	require.NotNil(t, s)
	assert.NotNil(t, s.router)
	assert.NotNil(t, s.server)
	assert.Equal(t, "127.0.0.1:5000", s.server.Addr)
	assert.Equal(t, 30*time.Second, s.server.ReadTimeout)
	assert.Equal(t, 120*time.Second, s.server.IdleTimeout)
}

func TestRouteGroups_Access(t *testing.T) {
	s := createTestService(t, Options{})

	doctorToken := bearer(t, "doctor-user", "DOCTOR")
	patientToken := bearer(t, "patient-user", "PATIENT")

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		wantStatus int
		wantError  string
	}{
		{"login is public", "POST", "/api/auth/login", "", http.StatusOK, ""},
		{"me without token", "GET", "/api/auth/me", "", http.StatusUnauthorized, "No token provided"},
		{"me with doctor", "GET", "/api/auth/me", doctorToken, http.StatusOK, ""},
		{"me with patient", "GET", "/api/auth/me", patientToken, http.StatusOK, ""},
		{"doctor route without token", "GET", "/api/doctor/patients/p1", "", http.StatusUnauthorized, "No token provided"},
		{"doctor route with basic auth", "GET", "/api/doctor/patients/p1", "Basic abc", http.StatusUnauthorized, "No token provided"},
		{"doctor route with garbage token", "GET", "/api/doctor/patients/p1", "Bearer garbage", http.StatusUnauthorized, "Invalid or expired token"},
		{"doctor route with patient token", "GET", "/api/doctor/patients/p1", patientToken, http.StatusForbidden, "Doctor access required"},
		{"doctor route with doctor token", "GET", "/api/doctor/patients/p1", doctorToken, http.StatusOK, ""},
		{"patient route with doctor token", "GET", "/api/patient/profile", doctorToken, http.StatusForbidden, "Patient access required"},
		{"patient route with patient token", "GET", "/api/patient/profile", patientToken, http.StatusOK, ""},
		{"public route needs no token", "GET", "/api/public/patient/tok", "", http.StatusOK, ""},
		{"unknown route", "GET", "/api/nothing", "", http.StatusNotFound, "Not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(s, tt.method, tt.path, tt.auth)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rr))
			}
		})
	}
}

func TestAuthenticatedRoute_StoresIdentity(t *testing.T) {
	s := createTestService(t, Options{})

	rr := doRequest(s, "GET", "/api/doctor/patients/p1", bearer(t, "doctor-user", "DOCTOR"))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "doctor-user", body["user_id"])
	assert.Equal(t, "DOCTOR", body["role"])
	assert.Equal(t, "p1", body["id"])
}

func TestPublicRoute_RateLimited(t *testing.T) {
	s := createTestService(t, Options{})

	for i := 0; i < 2; i++ {
		rr := doRequest(s, "GET", "/api/public/patient/tok", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doRequest(s, "GET", "/api/public/patient/tok", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, errorMessage(t, rr))

	// other route groups are not limited
	rr = doRequest(s, "POST", "/api/auth/login", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	health := monitoring.NewHealthManager("medlog-api", "test")
	health.RegisterChecker("database", monitoring.HealthCheckerFunc(func(ctx context.Context) monitoring.HealthCheck {
		return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy}
	}))
	metrics := monitoring.NewMetricsCollector("medlog-api")

	s := createTestService(t, Options{Health: health, Metrics: metrics})

	rr := doRequest(s, "GET", "/api/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"healthy"`)

	rr = doRequest(s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMonitoringMiddleware_SetsRequestID(t *testing.T) {
	mm := monitoring.NewMonitoringMiddleware(monitoring.NewMetricsCollector("medlog-api"), nil, logger.NewNop())
	s := createTestService(t, Options{Monitoring: mm})

	rr := doRequest(s, "POST", "/api/auth/login", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestService_StartStop(t *testing.T) {
	s := createTestService(t, Options{})
	s.server.Addr = "127.0.0.1:0"

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	WriteError(rr, req, logger.NewNop(), assert.AnError, "Failed to fetch patients")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to fetch patients", errorMessage(t, rr))
	assert.False(t, strings.Contains(rr.Body.String(), assert.AnError.Error()))
}
