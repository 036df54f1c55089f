package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/otcheredev/ris-study-browser/internal/database"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE raised when the unique index on
// registrations.study_instance_uid rejects a duplicate import
const pgUniqueViolation = "23505"

// RegistrationRepository is the system-of-record boundary for registrations.
// It owns the import uniqueness guarantee: Import either creates the
// registration or fails with *AlreadyImportedError carrying the existing one.
type RegistrationRepository interface {
	FindByStudyUIDs(ctx context.Context, studyUIDs []string) (map[string]models.RegistrationRef, error)
	GetByStudyUID(ctx context.Context, studyUID string) (*models.Registration, error)
	Import(ctx context.Context, patient *models.Patient, createPatient bool, reg *models.Registration, exams []models.Examination) error
}

// ErrPatientNotFound is returned when the import did not permit creating a
// patient and none matched the archive's patient metadata
var ErrPatientNotFound = errors.New("no patient matches the archive metadata")

// GormRegistrationRepository is the PostgreSQL-backed system-of-record
type GormRegistrationRepository struct{}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository() *GormRegistrationRepository {
	return &GormRegistrationRepository{}
}

// FindByStudyUIDs resolves registration status for a batch of study UIDs in
// one query. UIDs absent from the returned map are not registered.
func (r *GormRegistrationRepository) FindByStudyUIDs(ctx context.Context, studyUIDs []string) (map[string]models.RegistrationRef, error) {
	refs := make(map[string]models.RegistrationRef, len(studyUIDs))
	if len(studyUIDs) == 0 {
		return refs, nil
	}

	var regs []models.Registration
	if err := database.DB.WithContext(ctx).
		Where("study_instance_uid IN ?", studyUIDs).
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve registrations: %w", err)
	}

	for _, reg := range regs {
		refs[reg.StudyInstanceUID] = models.RegistrationRef{RegistrationID: reg.ID}
	}
	return refs, nil
}

// GetByStudyUID retrieves one registration with its examinations
func (r *GormRegistrationRepository) GetByStudyUID(ctx context.Context, studyUID string) (*models.Registration, error) {
	var reg models.Registration
	if err := database.DB.WithContext(ctx).
		Preload("Examinations").
		Where("study_instance_uid = ?", studyUID).
		First(&reg).Error; err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &reg, nil
}

// Import atomically creates (or reuses) the patient, the registration, and
// its derived examinations. A duplicate study UID surfaces as a typed
// *AlreadyImportedError with the existing registration id; duplicates are
// detected by the database constraint, never by matching error text.
func (r *GormRegistrationRepository) Import(ctx context.Context, patient *models.Patient, createPatient bool, reg *models.Registration, exams []models.Examination) error {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if patient != nil {
			var existing models.Patient
			err := tx.Where("mrn = ?", patient.MRN).First(&existing).Error
			switch {
			case err == nil:
				*patient = existing
			case errors.Is(err, gorm.ErrRecordNotFound):
				if !createPatient {
					return ErrPatientNotFound
				}
				if err := tx.Create(patient).Error; err != nil {
					return err
				}
			default:
				return err
			}
			reg.PatientID = patient.ID
		}

		if err := tx.Create(reg).Error; err != nil {
			return err
		}

		for i := range exams {
			exams[i].RegistrationID = reg.ID
		}
		if len(exams) > 0 {
			if err := tx.Create(&exams).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		var existing models.Registration
		if lookupErr := database.DB.WithContext(ctx).
			Where("study_instance_uid = ?", reg.StudyInstanceUID).
			First(&existing).Error; lookupErr == nil {
			return &AlreadyImportedError{
				StudyInstanceUID: reg.StudyInstanceUID,
				RegistrationID:   existing.ID,
			}
		}
	}

	return fmt.Errorf("failed to import study: %w", err)
}
