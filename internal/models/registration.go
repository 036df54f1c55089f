package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is the system-of-record patient owning imported studies
type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	MRN       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"mrn"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	BirthDate string    `gorm:"type:varchar(8)" json:"birth_date,omitempty"`
	Sex       string    `gorm:"type:varchar(1)" json:"sex,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Patient) TableName() string {
	return "patients"
}

// BeforeCreate hook
func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Registration records that an archive study has been imported exactly once.
// The unique index on StudyInstanceUID is the idempotency guard the whole
// import flow depends on: a concurrent second import hits a unique violation
// instead of creating a duplicate.
type Registration struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudyInstanceUID string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"study_instance_uid"`
	PatientID        uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	ArchiveID        uuid.UUID `gorm:"type:uuid;index" json:"archive_id"`
	ImportedBy       uuid.UUID `gorm:"type:uuid" json:"imported_by"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`

	Examinations []Examination `gorm:"foreignKey:RegistrationID" json:"examinations,omitempty"`
}

// TableName overrides the table name
func (Registration) TableName() string {
	return "registrations"
}

// BeforeCreate hook
func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Examination is one clinical examination derived from an imported study.
// A study fans out into one examination per distinguishable procedure
// descriptor in its archive metadata.
type Examination struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RegistrationID uuid.UUID `gorm:"type:uuid;not null;index" json:"registration_id"`
	ExamType       string    `gorm:"type:varchar(255);not null" json:"exam_type"`
	Modality       string    `gorm:"type:varchar(16)" json:"modality,omitempty"`
	BodyPart       string    `gorm:"type:varchar(64)" json:"body_part,omitempty"`
	ExamDate       string    `gorm:"type:varchar(8)" json:"exam_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Examination) TableName() string {
	return "examinations"
}

// BeforeCreate hook
func (e *Examination) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExaminationRef is one created examination in an import response
type ExaminationRef struct {
	ExaminationID uuid.UUID `json:"examination_id"`
	ExamType      string    `json:"exam_type"`
}

// ImportRecord is the outcome of a successful (or already-performed) import
type ImportRecord struct {
	RegistrationID  uuid.UUID        `json:"registration_id"`
	Examinations    []ExaminationRef `json:"examinations,omitempty"`
	AlreadyImported bool             `json:"already_imported"`
}

// ImportRequest carries an import instruction for one study
type ImportRequest struct {
	StudyInstanceUID string `json:"study_instance_uid"`
	CreatePatient    bool   `json:"create_patient"`
}
