package adapters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// DICOM tags used by the canonical mapping (group+element, no separators)
const (
	TagStudyInstanceUID          = "0020000D"
	TagPatientName               = "00100010"
	TagPatientID                 = "00100020"
	TagPatientBirthDate          = "00100030"
	TagPatientSex                = "00100040"
	TagStudyDate                 = "00080020"
	TagStudyTime                 = "00080030"
	TagStudyDescription          = "00081030"
	TagSeriesDescription         = "0008103E"
	TagRequestedProcedure        = "00321060"
	TagPerformedProcedureStep    = "00400254"
	TagProtocolName              = "00181030"
	TagModality                  = "00080060"
	TagModalitiesInStudy         = "00080061"
	TagInstitutionName           = "00080080"
	TagBodyPartExamined          = "00180015"
	TagManufacturer              = "00080070"
	TagNumberOfStudyRelatedSer   = "00201206"
	TagNumberOfStudyRelatedInst  = "00201208"
	TagAccessionNumber           = "00080050"
	TagRetrieveURL               = "00081190"
	TagAcquisitionDeviceTypeOld  = "00181023" // digital imaging device processing code, seen on legacy modalities
)

// Attribute is one DICOM JSON attribute as returned by QIDO-RS
type Attribute struct {
	VR    string `json:"vr,omitempty"`
	Value []any  `json:"Value,omitempty"`
}

// RawStudy is one archive-native study attribute set keyed by DICOM tag
type RawStudy map[string]Attribute

// String returns the first value of a tag rendered as a string. Person-name
// values are unwrapped from their {"Alphabetic": ...} form; numeric values
// are formatted. Missing tags yield "".
func (r RawStudy) String(tag string) string {
	attr, ok := r[tag]
	if !ok || len(attr.Value) == 0 {
		return ""
	}
	switch v := attr.Value[0].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if alpha, ok := v["Alphabetic"].(string); ok {
			return strings.TrimSpace(alpha)
		}
		return ""
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

// Int returns the first value of a tag as an int, tolerating the string
// encoding some archives use for IS values
func (r RawStudy) Int(tag string) int {
	attr, ok := r[tag]
	if !ok || len(attr.Value) == 0 {
		return 0
	}
	switch v := attr.Value[0].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

// extractor pulls one candidate value for a canonical field out of a raw study
type extractor func(RawStudy) string

// fieldChain is an ordered list of extractors for one canonical field.
// Archives disagree on where some attributes live (historically different
// tag choices), so each field is resolved by trying extractors in order and
// taking the first non-empty value.
type fieldChain []extractor

func (c fieldChain) extract(r RawStudy) string {
	for _, e := range c {
		if v := e(r); v != "" {
			return v
		}
	}
	return ""
}

func fromTag(tag string) extractor {
	return func(r RawStudy) string { return r.String(tag) }
}

var (
	studyDescriptionChain = fieldChain{fromTag(TagStudyDescription), fromTag(TagRequestedProcedure)}
	acquisitionChain      = fieldChain{fromTag(TagPerformedProcedureStep), fromTag(TagAcquisitionDeviceTypeOld)}
	modalityChain         = fieldChain{fromTag(TagModality), fromTag(TagModalitiesInStudy)}
	institutionChain      = fieldChain{fromTag(TagInstitutionName)}
	bodyPartChain         = fieldChain{fromTag(TagBodyPartExamined)}
	manufacturerChain     = fieldChain{fromTag(TagManufacturer)}
)

// Canonicalize maps one archive-native attribute set to the canonical study
// shape. Origin-archive identity and registration status are filled in later
// by the coordinator and the status resolver.
func Canonicalize(raw RawStudy) models.Study {
	return models.Study{
		LocalID:                raw.String(TagAccessionNumber),
		StudyInstanceUID:       raw.String(TagStudyInstanceUID),
		PatientName:            raw.String(TagPatientName),
		PatientID:              raw.String(TagPatientID),
		PatientBirthDate:       raw.String(TagPatientBirthDate),
		PatientSex:             raw.String(TagPatientSex),
		StudyDate:              raw.String(TagStudyDate),
		StudyTime:              raw.String(TagStudyTime),
		StudyDescription:       studyDescriptionChain.extract(raw),
		SeriesDescription:      raw.String(TagSeriesDescription),
		ProtocolName:           raw.String(TagProtocolName),
		AcquisitionDescription: acquisitionChain.extract(raw),
		Modality:               modalityChain.extract(raw),
		NumberOfSeries:         raw.Int(TagNumberOfStudyRelatedSer),
		NumberOfInstances:      raw.Int(TagNumberOfStudyRelatedInst),
		InstitutionName:        institutionChain.extract(raw),
		BodyPartExamined:       bodyPartChain.extract(raw),
		Manufacturer:           manufacturerChain.extract(raw),
	}
}

// WildcardName converts free-text patient name input into the archive's
// wildcard matching convention: tokens joined and surrounded by "*"
func WildcardName(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return ""
	}
	return "*" + strings.Join(tokens, "*") + "*"
}

// DateRange encodes an optional date range in the DICOM range-matching form
// ("from-to", either side open)
func DateRange(from, to string) string {
	if from == "" && to == "" {
		return ""
	}
	return from + "-" + to
}
