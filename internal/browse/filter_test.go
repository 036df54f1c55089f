package browse

import (
	"testing"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

func sampleStudies() []models.Study {
	return []models.Study{
		{
			StudyInstanceUID: "1.2.3.1",
			PatientName:      "TAN^AH^KOW",
			PatientID:        "S1234567A",
			StudyDate:        "20240115",
			Modality:         "CT",
			InstitutionName:  "General Hospital",
			BodyPartExamined: "HEAD",
			StudyDescription: "CT Head",
			Manufacturer:     "SIEMENS",
			ArchiveID:        "archive-1",
		},
		{
			StudyInstanceUID: "1.2.3.2",
			PatientName:      "Lim Bee Hoon",
			PatientID:        "S7654321B",
			StudyDate:        "20240220",
			Modality:         "MR",
			InstitutionName:  "Eastside Imaging",
			BodyPartExamined: "KNEE",
			ProtocolName:     "MR Knee",
			Manufacturer:     "GE",
			ArchiveID:        "archive-2",
		},
		{
			StudyInstanceUID:       "1.2.3.3",
			PatientName:            "TAN^BENG^HUAT",
			PatientID:              "S1111111C",
			StudyDate:              "20231130",
			Modality:               "CT",
			InstitutionName:        "General Hospital",
			BodyPartExamined:       "CHEST",
			AcquisitionDescription: "CT Thorax",
			Manufacturer:           "SIEMENS",
			ArchiveID:              "archive-1",
		},
	}
}

func TestPatientNameFilter(t *testing.T) {
	studies := sampleStudies()

	t.Run("three characters engage the predicate", func(t *testing.T) {
		got := FilterSet{PatientName: "Tan"}.Apply(studies)
		if len(got) != 2 {
			t.Fatalf("Expected 2 studies matching 'Tan', got %d", len(got))
		}
		for _, s := range got {
			if s.PatientName != "TAN^AH^KOW" && s.PatientName != "TAN^BENG^HUAT" {
				t.Errorf("Unexpected study in result: %s", s.PatientName)
			}
		}
	})

	t.Run("two characters are a no-op", func(t *testing.T) {
		got := FilterSet{PatientName: "Ta"}.Apply(studies)
		if len(got) != len(studies) {
			t.Errorf("Expected pass-through below minimum length, got %d of %d", len(got), len(studies))
		}
	})

	t.Run("separator characters normalize to spaces", func(t *testing.T) {
		got := FilterSet{PatientName: "Ah Kow"}.Apply(studies)
		if len(got) != 1 || got[0].StudyInstanceUID != "1.2.3.1" {
			t.Errorf("Expected 'Ah Kow' to match TAN^AH^KOW, got %d studies", len(got))
		}
	})
}

func TestPatientIDFilter(t *testing.T) {
	studies := sampleStudies()

	if got := (FilterSet{PatientID: "S12"}).Apply(studies); len(got) != 1 {
		t.Errorf("Expected 1 study for ID 'S12', got %d", len(got))
	}
	if got := (FilterSet{PatientID: "S1"}).Apply(studies); len(got) != len(studies) {
		t.Errorf("Expected pass-through for 2-char ID query, got %d", len(got))
	}
}

func TestFacetFilters(t *testing.T) {
	studies := sampleStudies()

	tests := []struct {
		name    string
		filters FilterSet
		want    []string // expected study UIDs, in order
	}{
		{
			name:    "modality exact",
			filters: FilterSet{Modality: "CT"},
			want:    []string{"1.2.3.1", "1.2.3.3"},
		},
		{
			name:    "modality all sentinel passes everything",
			filters: FilterSet{Modality: FilterAll},
			want:    []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"},
		},
		{
			name:    "clinic substring case-insensitive",
			filters: FilterSet{Clinic: "general"},
			want:    []string{"1.2.3.1", "1.2.3.3"},
		},
		{
			name:    "body part exact",
			filters: FilterSet{BodyPart: "KNEE"},
			want:    []string{"1.2.3.2"},
		},
		{
			name:    "exam matches study description",
			filters: FilterSet{Exam: "CT Head"},
			want:    []string{"1.2.3.1"},
		},
		{
			name:    "exam matches protocol name",
			filters: FilterSet{Exam: "MR Knee"},
			want:    []string{"1.2.3.2"},
		},
		{
			name:    "exam matches acquisition description",
			filters: FilterSet{Exam: "CT Thorax"},
			want:    []string{"1.2.3.3"},
		},
		{
			name:    "manufacturer exact",
			filters: FilterSet{Manufacturer: "GE"},
			want:    []string{"1.2.3.2"},
		},
		{
			name:    "archive membership",
			filters: FilterSet{ArchiveIDs: []string{"archive-1"}},
			want:    []string{"1.2.3.1", "1.2.3.3"},
		},
		{
			name:    "empty archive selection passes all",
			filters: FilterSet{ArchiveIDs: nil},
			want:    []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"},
		},
		{
			name:    "date lower bound inclusive",
			filters: FilterSet{DateFrom: "20240115"},
			want:    []string{"1.2.3.1", "1.2.3.2"},
		},
		{
			name:    "date upper bound inclusive",
			filters: FilterSet{DateTo: "20240115"},
			want:    []string{"1.2.3.1", "1.2.3.3"},
		},
		{
			name:    "date range with dashed input",
			filters: FilterSet{DateFrom: "2024-01-01", DateTo: "2024-01-31"},
			want:    []string{"1.2.3.1"},
		},
		{
			name:    "combined predicates narrow in sequence",
			filters: FilterSet{PatientName: "Tan", Modality: "CT", BodyPart: "CHEST"},
			want:    []string{"1.2.3.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filters.Apply(studies)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d studies, got %d", len(tt.want), len(got))
			}
			for i, uid := range tt.want {
				if got[i].StudyInstanceUID != uid {
					t.Errorf("Position %d: expected %s, got %s", i, uid, got[i].StudyInstanceUID)
				}
			}
		})
	}
}

func TestFilterStability(t *testing.T) {
	// The filtered subset must preserve merge order: a stable filter,
	// never a resort.
	studies := sampleStudies()
	got := FilterSet{Modality: "CT"}.Apply(studies)

	if len(got) != 2 {
		t.Fatalf("Expected 2 CT studies, got %d", len(got))
	}
	if got[0].StudyInstanceUID != "1.2.3.1" || got[1].StudyInstanceUID != "1.2.3.3" {
		t.Errorf("Filter reordered studies: %s, %s", got[0].StudyInstanceUID, got[1].StudyInstanceUID)
	}
}

func TestDateFilterExcludesUndatedStudies(t *testing.T) {
	studies := []models.Study{
		{StudyInstanceUID: "dated", StudyDate: "20240101"},
		{StudyInstanceUID: "undated"},
	}

	got := FilterSet{DateFrom: "20230101"}.Apply(studies)
	if len(got) != 1 || got[0].StudyInstanceUID != "dated" {
		t.Errorf("Expected undated study excluded when a bound is set, got %d studies", len(got))
	}
}
