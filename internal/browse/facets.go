package browse

import (
	"sort"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// FacetIndex accumulates the distinct non-empty values observed for each
// filterable attribute across a browsing session. It only ever grows: a
// value once seen stays selectable even when a later round no longer
// returns it, so filter controls do not flicker as data streams in.
// Scoped to one session, discarded with it.
type FacetIndex struct {
	modalities    map[string]struct{}
	clinics       map[string]struct{}
	bodyParts     map[string]struct{}
	exams         map[string]struct{}
	manufacturers map[string]struct{}
	servers       map[string]string // archive id -> display name
}

// ServerOption is one selectable origin archive
type ServerOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FacetOptions are the sorted option lists exposed to filter controls
type FacetOptions struct {
	Modalities    []string       `json:"modalities"`
	Clinics       []string       `json:"clinics"`
	BodyParts     []string       `json:"body_parts"`
	Exams         []string       `json:"exams"`
	Manufacturers []string       `json:"manufacturers"`
	Servers       []ServerOption `json:"servers"`
}

// NewFacetIndex creates an empty facet index
func NewFacetIndex() *FacetIndex {
	return &FacetIndex{
		modalities:    make(map[string]struct{}),
		clinics:       make(map[string]struct{}),
		bodyParts:     make(map[string]struct{}),
		exams:         make(map[string]struct{}),
		manufacturers: make(map[string]struct{}),
		servers:       make(map[string]string),
	}
}

// Add extends the option sets with the values observed in studies
func (x *FacetIndex) Add(studies []models.Study) {
	for _, s := range studies {
		addValue(x.modalities, s.Modality)
		addValue(x.clinics, s.InstitutionName)
		addValue(x.bodyParts, s.BodyPartExamined)
		addValue(x.manufacturers, s.Manufacturer)

		// The exam facet is the union of the three descriptors an archive
		// may label a procedure with.
		addValue(x.exams, s.StudyDescription)
		addValue(x.exams, s.ProtocolName)
		addValue(x.exams, s.AcquisitionDescription)

		if s.ArchiveID != "" {
			x.servers[s.ArchiveID] = s.ArchiveName
		}
	}
}

// Options returns the current option sets, sorted for stable display
func (x *FacetIndex) Options() FacetOptions {
	opts := FacetOptions{
		Modalities:    sortedValues(x.modalities),
		Clinics:       sortedValues(x.clinics),
		BodyParts:     sortedValues(x.bodyParts),
		Exams:         sortedValues(x.exams),
		Manufacturers: sortedValues(x.manufacturers),
		Servers:       make([]ServerOption, 0, len(x.servers)),
	}
	for id, name := range x.servers {
		opts.Servers = append(opts.Servers, ServerOption{ID: id, Name: name})
	}
	sort.Slice(opts.Servers, func(i, j int) bool {
		if opts.Servers[i].Name != opts.Servers[j].Name {
			return opts.Servers[i].Name < opts.Servers[j].Name
		}
		return opts.Servers[i].ID < opts.Servers[j].ID
	})
	return opts
}

func addValue(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedValues(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
