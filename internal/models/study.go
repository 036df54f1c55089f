package models

import "github.com/google/uuid"

// SearchCriteria represents an archive study search request
type SearchCriteria struct {
	PatientName string `json:"patient_name,omitempty"`
	PatientID   string `json:"patient_id,omitempty"`
	DateFrom    string `json:"date_from,omitempty"` // YYYYMMDD
	DateTo      string `json:"date_to,omitempty"`   // YYYYMMDD
	Exam        string `json:"exam,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Study is the canonical, merged representation of an archive study.
// The same study queried from two different archives yields two distinct
// records: ArchiveID is part of its identity for merge purposes, while
// StudyInstanceUID alone is the key used against the system-of-record.
type Study struct {
	LocalID                string `json:"local_id,omitempty"`
	StudyInstanceUID       string `json:"study_instance_uid"`
	PatientName            string `json:"patient_name"`
	PatientID              string `json:"patient_id"`
	PatientBirthDate       string `json:"patient_birth_date,omitempty"`
	PatientSex             string `json:"patient_sex,omitempty"`
	StudyDate              string `json:"study_date,omitempty"`
	StudyTime              string `json:"study_time,omitempty"`
	StudyDescription       string `json:"study_description,omitempty"`
	SeriesDescription      string `json:"series_description,omitempty"`
	ProtocolName           string `json:"protocol_name,omitempty"`
	AcquisitionDescription string `json:"acquisition_description,omitempty"`
	Modality               string `json:"modality,omitempty"`
	NumberOfSeries         int    `json:"number_of_series,omitempty"`
	NumberOfInstances      int    `json:"number_of_instances,omitempty"`
	InstitutionName        string `json:"institution_name,omitempty"`
	BodyPartExamined       string `json:"body_part_examined,omitempty"`
	Manufacturer           string `json:"manufacturer,omitempty"`

	// Origin archive, stamped at merge time by the federation coordinator.
	ArchiveID   string `json:"archive_id"`
	ArchiveName string `json:"archive_name"`

	// Enrichment from the system-of-record.
	IsRegistered   bool       `json:"is_registered"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
}

// RegistrationRef points at an existing registration in the system-of-record
type RegistrationRef struct {
	RegistrationID uuid.UUID `json:"registration_id"`
}

// FederationResult is the outcome of one fan-out round across all active
// archive servers. A server that errored appears in PerServerErrors and
// contributes no studies; the round as a whole still succeeds.
type FederationResult struct {
	Studies         []Study           `json:"studies"`
	PerServerErrors map[string]string `json:"per_server_errors,omitempty"`
	ServersSearched int               `json:"servers_searched"`
}
