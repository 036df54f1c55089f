package browse

import (
	"strings"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// FilterAll is the sentinel option meaning "do not filter on this facet"
const FilterAll = "all"

// minTextLen is the minimum length before the free-text predicates engage.
// Below it they are pass-through, so a half-typed query never blanks the list.
const minTextLen = 3

// FilterSet is the user's current selection per facet plus free-text fields
// and a date range. Applying it is a pure function of the merged result set.
type FilterSet struct {
	PatientName  string   `json:"patient_name,omitempty"`
	PatientID    string   `json:"patient_id,omitempty"`
	Modality     string   `json:"modality,omitempty"`
	Clinic       string   `json:"clinic,omitempty"`
	BodyPart     string   `json:"body_part,omitempty"`
	Exam         string   `json:"exam,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	ArchiveIDs   []string `json:"archive_ids,omitempty"`
	DateFrom     string   `json:"date_from,omitempty"`
	DateTo       string   `json:"date_to,omitempty"`
}

// Apply narrows studies to those matching every active predicate. The output
// preserves the input's relative order: this is a stable filter, not a resort.
func (f FilterSet) Apply(studies []models.Study) []models.Study {
	out := make([]models.Study, 0, len(studies))
	for _, study := range studies {
		if f.matches(study) {
			out = append(out, study)
		}
	}
	return out
}

// matches evaluates the predicates in their fixed order, each narrowing the
// previous result
func (f FilterSet) matches(s models.Study) bool {
	// 1. patient name substring, case-insensitive, separator-normalized
	if q := strings.TrimSpace(f.PatientName); len(q) >= minTextLen {
		if !strings.Contains(normalizeName(s.PatientName), normalizeName(q)) {
			return false
		}
	}

	// 2. patient identifier substring
	if q := strings.TrimSpace(f.PatientID); len(q) >= minTextLen {
		if !strings.Contains(strings.ToLower(s.PatientID), strings.ToLower(q)) {
			return false
		}
	}

	// 3. exact modality
	if selected(f.Modality) && s.Modality != f.Modality {
		return false
	}

	// 4. clinic substring, case-insensitive
	if selected(f.Clinic) {
		if !strings.Contains(strings.ToLower(s.InstitutionName), strings.ToLower(f.Clinic)) {
			return false
		}
	}

	// 5. exact body part
	if selected(f.BodyPart) && s.BodyPartExamined != f.BodyPart {
		return false
	}

	// 6. exam: any of the three descriptors may carry the exam label
	if selected(f.Exam) {
		if s.StudyDescription != f.Exam && s.ProtocolName != f.Exam && s.AcquisitionDescription != f.Exam {
			return false
		}
	}

	// 7. exact manufacturer
	if selected(f.Manufacturer) && s.Manufacturer != f.Manufacturer {
		return false
	}

	// 8. origin archive membership; empty selection means all servers pass
	if len(f.ArchiveIDs) > 0 {
		found := false
		for _, id := range f.ArchiveIDs {
			if s.ArchiveID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// 9. inclusive date bounds over normalized 8-digit dates
	if f.DateFrom != "" || f.DateTo != "" {
		date := normalizeDate(s.StudyDate)
		if from := normalizeDate(f.DateFrom); from != "" && (date == "" || date < from) {
			return false
		}
		if to := normalizeDate(f.DateTo); to != "" && (date == "" || date > to) {
			return false
		}
	}

	return true
}

func selected(v string) bool {
	return v != "" && v != FilterAll
}

// normalizeName lowercases and replaces person-name separator characters
// with spaces, so "TAN^AH^KOW" and "Tan Ah Kow" compare equal
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '^', ',', '.', '-', '_':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeDate reduces a date value to its 8-digit YYYYMMDD form,
// tolerating "2024-03-01" style input
func normalizeDate(date string) string {
	var b strings.Builder
	b.Grow(8)
	for _, r := range date {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() < 8 {
		return ""
	}
	return b.String()
}
