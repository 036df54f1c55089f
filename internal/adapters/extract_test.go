package adapters

import (
	"testing"
)

func TestRawStudyString(t *testing.T) {
	raw := RawStudy{
		TagStudyInstanceUID: {VR: "UI", Value: []any{"1.2.840.113619.2.1"}},
		TagPatientName:      {VR: "PN", Value: []any{map[string]any{"Alphabetic": "TAN^AH^KOW"}}},
		TagStudyDate:        {VR: "DA", Value: []any{"20240115"}},
		TagNumberOfStudyRelatedSer: {VR: "IS", Value: []any{float64(4)}},
	}

	tests := []struct {
		tag, want string
	}{
		{TagStudyInstanceUID, "1.2.840.113619.2.1"},
		{TagPatientName, "TAN^AH^KOW"},
		{TagStudyDate, "20240115"},
		{TagNumberOfStudyRelatedSer, "4"},
		{TagPatientID, ""}, // absent tag
	}

	for _, tt := range tests {
		if got := raw.String(tt.tag); got != tt.want {
			t.Errorf("String(%s) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestRawStudyInt(t *testing.T) {
	raw := RawStudy{
		TagNumberOfStudyRelatedSer:  {VR: "IS", Value: []any{float64(4)}},
		TagNumberOfStudyRelatedInst: {VR: "IS", Value: []any{"120"}}, // string-encoded IS
	}

	if got := raw.Int(TagNumberOfStudyRelatedSer); got != 4 {
		t.Errorf("Int from number = %d, want 4", got)
	}
	if got := raw.Int(TagNumberOfStudyRelatedInst); got != 120 {
		t.Errorf("Int from string = %d, want 120", got)
	}
	if got := raw.Int(TagPatientID); got != 0 {
		t.Errorf("Int from absent tag = %d, want 0", got)
	}
}

func TestDescriptorFallbackChains(t *testing.T) {
	t.Run("study description prefers its own tag", func(t *testing.T) {
		raw := RawStudy{
			TagStudyDescription:   {Value: []any{"CT Head"}},
			TagRequestedProcedure: {Value: []any{"CT Brain Requested"}},
		}
		if got := Canonicalize(raw).StudyDescription; got != "CT Head" {
			t.Errorf("StudyDescription = %q, want 'CT Head'", got)
		}
	})

	t.Run("study description falls back to requested procedure", func(t *testing.T) {
		raw := RawStudy{
			TagRequestedProcedure: {Value: []any{"CT Brain Requested"}},
		}
		if got := Canonicalize(raw).StudyDescription; got != "CT Brain Requested" {
			t.Errorf("StudyDescription = %q, want fallback value", got)
		}
	})

	t.Run("acquisition falls back to legacy device tag", func(t *testing.T) {
		raw := RawStudy{
			TagAcquisitionDeviceTypeOld: {Value: []any{"Axial Brain"}},
		}
		if got := Canonicalize(raw).AcquisitionDescription; got != "Axial Brain" {
			t.Errorf("AcquisitionDescription = %q, want 'Axial Brain'", got)
		}
	})

	t.Run("modality falls back to modalities in study", func(t *testing.T) {
		raw := RawStudy{
			TagModalitiesInStudy: {Value: []any{"CT"}},
		}
		if got := Canonicalize(raw).Modality; got != "CT" {
			t.Errorf("Modality = %q, want 'CT'", got)
		}
	})
}

func TestCanonicalize(t *testing.T) {
	raw := RawStudy{
		TagStudyInstanceUID:         {Value: []any{"1.2.3"}},
		TagAccessionNumber:          {Value: []any{"ACC001"}},
		TagPatientName:              {Value: []any{map[string]any{"Alphabetic": "LIM^BEE^HOON"}}},
		TagPatientID:                {Value: []any{"S7654321B"}},
		TagStudyDate:                {Value: []any{"20240220"}},
		TagModality:                 {Value: []any{"MR"}},
		TagInstitutionName:          {Value: []any{"Eastside Imaging"}},
		TagBodyPartExamined:         {Value: []any{"KNEE"}},
		TagManufacturer:             {Value: []any{"GE"}},
		TagNumberOfStudyRelatedSer:  {Value: []any{float64(3)}},
		TagNumberOfStudyRelatedInst: {Value: []any{float64(240)}},
	}

	study := Canonicalize(raw)
	if study.StudyInstanceUID != "1.2.3" || study.LocalID != "ACC001" {
		t.Errorf("Identity fields wrong: %+v", study)
	}
	if study.PatientName != "LIM^BEE^HOON" || study.PatientID != "S7654321B" {
		t.Errorf("Patient fields wrong: %+v", study)
	}
	if study.NumberOfSeries != 3 || study.NumberOfInstances != 240 {
		t.Errorf("Counts wrong: series=%d instances=%d", study.NumberOfSeries, study.NumberOfInstances)
	}
	if study.IsRegistered || study.ArchiveID != "" {
		t.Errorf("Canonicalize should not fill in status or origin: %+v", study)
	}
}

func TestWildcardName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Tan Ah Kow", "*Tan*Ah*Kow*"},
		{"Tan", "*Tan*"},
		{"  Tan   Ah  ", "*Tan*Ah*"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := WildcardName(tt.in); got != tt.want {
			t.Errorf("WildcardName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		from, to, want string
	}{
		{"20240101", "20240131", "20240101-20240131"},
		{"20240101", "", "20240101-"},
		{"", "20240131", "-20240131"},
		{"", "", ""},
	}

	for _, tt := range tests {
		if got := DateRange(tt.from, tt.to); got != tt.want {
			t.Errorf("DateRange(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}
