package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/browse"
	"github.com/otcheredev/ris-study-browser/internal/metrics"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/otcheredev/ris-study-browser/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrPermissionDenied is returned when the caller lacks the role required
// to import studies
var ErrPermissionDenied = errors.New("importing a study requires an elevated role")

// ValidationError reports an import request the system-of-record cannot act
// on. The study stays unimported and re-importable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid import request: " + e.Reason
}

// ImportService performs the import of one study: it validates the request,
// creates the registration and its derived examinations, and patches the
// session in place. Uniqueness is enforced by the system-of-record, not
// here; the local registered-flag check is only a pre-flight shortcut.
type ImportService struct {
	regRepo repository.RegistrationRepository
}

// NewImportService creates a new import service
func NewImportService(regRepo repository.RegistrationRepository) *ImportService {
	return &ImportService{regRepo: regRepo}
}

// ImportStudy imports the identified study from the session's merged set.
// A study already imported, whether detected up front or by losing a race,
// yields an ImportRecord with AlreadyImported set and the existing
// registration id; the operator's desired end state is reached either way.
func (s *ImportService) ImportStudy(ctx context.Context, user models.UserContext, session *browse.Session, req models.ImportRequest) (*models.ImportRecord, error) {
	if !user.CanImport() {
		metrics.Imports.WithLabelValues(metrics.OutcomeDenied).Inc()
		return nil, ErrPermissionDenied
	}

	if req.StudyInstanceUID == "" {
		return nil, &ValidationError{Reason: "study_instance_uid is required"}
	}

	study, ok := session.FindStudy(req.StudyInstanceUID)
	if !ok {
		return nil, &ValidationError{Reason: "study is not part of the current result set"}
	}

	// Pre-flight guard only; the unique index has the final word.
	if study.IsRegistered && study.RegistrationID != nil {
		metrics.Imports.WithLabelValues(metrics.OutcomeAlreadyImported).Inc()
		return &models.ImportRecord{
			RegistrationID:  *study.RegistrationID,
			AlreadyImported: true,
		}, nil
	}

	if study.PatientID == "" {
		return nil, &ValidationError{Reason: "study carries no patient identifier"}
	}

	patient := &models.Patient{
		MRN:       study.PatientID,
		Name:      displayName(study.PatientName),
		BirthDate: study.PatientBirthDate,
		Sex:       study.PatientSex,
	}

	archiveID, _ := uuid.Parse(study.ArchiveID)
	reg := &models.Registration{
		StudyInstanceUID: study.StudyInstanceUID,
		ArchiveID:        archiveID,
		ImportedBy:       user.UserID,
	}

	exams := DeriveExaminations(study)

	err := s.regRepo.Import(ctx, patient, req.CreatePatient, reg, exams)
	if err != nil {
		var dup *repository.AlreadyImportedError
		if errors.As(err, &dup) {
			// Lost the race: another operator registered it first. Same end
			// state, so fold it into success and patch the session.
			session.MarkImported(study.StudyInstanceUID, dup.RegistrationID)
			metrics.Imports.WithLabelValues(metrics.OutcomeAlreadyImported).Inc()
			log.Info().
				Str("study_uid", study.StudyInstanceUID).
				Str("registration_id", dup.RegistrationID.String()).
				Msg("Study was already imported")
			return &models.ImportRecord{
				RegistrationID:  dup.RegistrationID,
				AlreadyImported: true,
			}, nil
		}

		if errors.Is(err, repository.ErrPatientNotFound) {
			metrics.Imports.WithLabelValues(metrics.OutcomeFailed).Inc()
			return nil, &ValidationError{Reason: "no matching patient and patient creation not requested"}
		}

		metrics.Imports.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("import failed: %w", err)
	}

	session.MarkImported(study.StudyInstanceUID, reg.ID)
	metrics.Imports.WithLabelValues(metrics.OutcomeImported).Inc()

	record := &models.ImportRecord{
		RegistrationID: reg.ID,
		Examinations:   make([]models.ExaminationRef, 0, len(exams)),
	}
	for _, exam := range exams {
		record.Examinations = append(record.Examinations, models.ExaminationRef{
			ExaminationID: exam.ID,
			ExamType:      exam.ExamType,
		})
	}

	log.Info().
		Str("study_uid", study.StudyInstanceUID).
		Str("registration_id", reg.ID.String()).
		Int("examinations", len(exams)).
		Msg("Study imported")

	return record, nil
}

// DeriveExaminations fans a study out into one examination per
// distinguishable procedure descriptor in its archive metadata. A study
// whose metadata carries no descriptor at all still yields one examination,
// labeled by its modality.
func DeriveExaminations(study models.Study) []models.Examination {
	seen := make(map[string]struct{}, 3)
	var exams []models.Examination

	for _, desc := range []string{study.StudyDescription, study.ProtocolName, study.AcquisitionDescription} {
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		if _, dup := seen[desc]; dup {
			continue
		}
		seen[desc] = struct{}{}
		exams = append(exams, models.Examination{
			ExamType: desc,
			Modality: study.Modality,
			BodyPart: study.BodyPartExamined,
			ExamDate: study.StudyDate,
		})
	}

	if len(exams) == 0 {
		label := study.Modality
		if label == "" {
			label = "Unclassified"
		}
		exams = append(exams, models.Examination{
			ExamType: label,
			Modality: study.Modality,
			BodyPart: study.BodyPartExamined,
			ExamDate: study.StudyDate,
		})
	}

	return exams
}

// displayName renders a DICOM person name for the patient record
func displayName(name string) string {
	return strings.TrimSpace(strings.NewReplacer("^", " ", "  ", " ").Replace(name))
}
