package disclosure

import (
	"context"
	"strings"

	"github.com/Sriharan2222/medlog/internal/iam"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Service implements the read-only public view behind a patient's QR code
type Service struct {
	logger      *logger.Logger
	repo        interfaces.DisclosureRepository
	profiles    interfaces.ProfileLookup
	renderer    interfaces.QRRenderer
	audit       interfaces.AuditRecorder
	metrics     *monitoring.MetricsCollector
	frontendURL string
	newToken    func() string
}

// NewService creates a new disclosure service. QR links point at
// frontendURL + "/scan/<token>".
func NewService(
	log *logger.Logger,
	repo interfaces.DisclosureRepository,
	profiles interfaces.ProfileLookup,
	renderer interfaces.QRRenderer,
	audit interfaces.AuditRecorder,
	metrics *monitoring.MetricsCollector,
	frontendURL string,
) *Service {
	return &Service{
		logger:      log,
		repo:        repo,
		profiles:    profiles,
		renderer:    renderer,
		audit:       audit,
		metrics:     metrics,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		newToken:    iam.NewQRToken,
	}
}

// GetByToken returns the public view of the patient holding qrToken. The
// view never carries contact details.
func (s *Service) GetByToken(ctx context.Context, qrToken string) (*types.PublicPatientView, error) {
	patient, err := s.repo.GetPatientByQRToken(ctx, qrToken)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			s.metrics.RecordPublicView("not_found")
		}
		return nil, err
	}

	medications, err := s.repo.ListActiveMedications(ctx, patient.ID)
	if err != nil {
		return nil, err
	}

	view := &types.PublicPatientView{
		PatientName:       patient.Name,
		PatientID:         patient.UniquePatientID,
		Age:               patient.Age,
		Gender:            patient.Gender,
		ActiveMedications: medications,
	}
	if len(medications) > 0 {
		lastUpdated := medications[0].PrescribedAt
		view.LastUpdated = &lastUpdated
	}

	s.metrics.RecordPublicView("found")
	return view, nil
}

// GetQR returns the caller's QR link and its rendered image
func (s *Service) GetQR(ctx context.Context, patientUserID string) (*types.QRCode, error) {
	patient, err := s.profiles.GetPatientByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.qrCode(ctx, patient), nil
}

// RotateToken replaces the caller's QR token. Links built on the old token
// stop resolving.
func (s *Service) RotateToken(ctx context.Context, patientUserID string) (*types.QRCode, error) {
	patient, err := s.profiles.GetPatientByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	token := s.newToken()
	if err := s.repo.UpdateQRToken(ctx, patient.ID, token); err != nil {
		return nil, err
	}
	patient.QRToken = token

	s.audit.Record(ctx, patientUserID, "ROTATE_QR_TOKEN", "Patient", patient.ID, nil)
	s.logger.WithContext(ctx).WithField("patient_id", patient.ID).Info("QR token rotated")

	return s.qrCode(ctx, patient), nil
}

// qrCode builds the QR payload. A rendering failure leaves QRDataURL nil
// and still returns the link.
func (s *Service) qrCode(ctx context.Context, patient *types.Patient) *types.QRCode {
	qr := &types.QRCode{
		QRURL:       s.frontendURL + "/scan/" + patient.QRToken,
		QRToken:     patient.QRToken,
		PatientID:   patient.UniquePatientID,
		PatientName: patient.Name,
	}

	dataURL, err := s.renderer.DataURL(qr.QRURL)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("QR rendering failed")
		return qr
	}
	qr.QRDataURL = &dataURL
	return qr
}
