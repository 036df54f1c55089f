package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// orthancNameToTag maps Orthanc's simplified tag names onto the DICOM tags
// the canonical extractor chains understand
var orthancNameToTag = map[string]string{
	"StudyInstanceUID":                  TagStudyInstanceUID,
	"PatientName":                       TagPatientName,
	"PatientID":                         TagPatientID,
	"PatientBirthDate":                  TagPatientBirthDate,
	"PatientSex":                        TagPatientSex,
	"StudyDate":                         TagStudyDate,
	"StudyTime":                         TagStudyTime,
	"StudyDescription":                  TagStudyDescription,
	"RequestedProcedureDescription":     TagRequestedProcedure,
	"PerformedProcedureStepDescription": TagPerformedProcedureStep,
	"ProtocolName":                      TagProtocolName,
	"ModalitiesInStudy":                 TagModalitiesInStudy,
	"InstitutionName":                   TagInstitutionName,
	"BodyPartExamined":                  TagBodyPartExamined,
	"Manufacturer":                      TagManufacturer,
	"AccessionNumber":                   TagAccessionNumber,
	"SeriesDescription":                 TagSeriesDescription,
}

// OrthancAdapter implements ArchiveAdapter against Orthanc's REST API
// (/tools/find), for archives that do not expose a DICOMweb frontend
type OrthancAdapter struct {
	BaseAdapter
	client   *http.Client
	baseURL  string
	username string
	password string
}

// orthancFindRequest is the /tools/find request body
type orthancFindRequest struct {
	Level  string            `json:"Level"`
	Expand bool              `json:"Expand"`
	Limit  int               `json:"Limit,omitempty"`
	Query  map[string]string `json:"Query"`
}

// orthancStudy is one expanded /tools/find result
type orthancStudy struct {
	ID                   string            `json:"ID"`
	MainDicomTags        map[string]string `json:"MainDicomTags"`
	PatientMainDicomTags map[string]string `json:"PatientMainDicomTags"`
	Series               []string          `json:"Series"`
}

// NewOrthancAdapter creates a new Orthanc REST adapter
func NewOrthancAdapter(server models.ArchiveServer, timeout time.Duration) (*OrthancAdapter, error) {
	if server.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for an Orthanc archive")
	}

	scheme := "http"
	if server.Port == 443 {
		scheme = "https"
	}

	return &OrthancAdapter{
		BaseAdapter: BaseAdapter{server: server},
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:  fmt.Sprintf("%s://%s:%d", scheme, server.Endpoint, server.Port),
		username: server.Username,
		password: server.Password,
	}, nil
}

func (o *OrthancAdapter) Type() models.ArchiveType {
	return models.ArchiveTypeOrthanc
}

// SearchStudies queries for studies using /tools/find
func (o *OrthancAdapter) SearchStudies(ctx context.Context, criteria models.SearchCriteria) ([]models.Study, error) {
	query := map[string]string{}
	if name := WildcardName(criteria.PatientName); name != "" {
		query["PatientName"] = name
	}
	if criteria.PatientID != "" {
		query["PatientID"] = "*" + criteria.PatientID + "*"
	}
	if dr := DateRange(criteria.DateFrom, criteria.DateTo); dr != "" {
		query["StudyDate"] = dr
	}
	if criteria.Exam != "" {
		query["StudyDescription"] = "*" + criteria.Exam + "*"
	}

	body, err := json.Marshal(orthancFindRequest{
		Level:  "Study",
		Expand: true,
		Limit:  criteria.Limit,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode find request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/tools/find", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if o.username != "" {
		req.SetBasicAuth(o.username, o.password)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var results []orthancStudy
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	studies := make([]models.Study, 0, len(results))
	for _, res := range results {
		study := Canonicalize(res.toRaw())
		if study.LocalID == "" {
			study.LocalID = res.ID
		}
		if study.NumberOfSeries == 0 {
			study.NumberOfSeries = len(res.Series)
		}
		studies = append(studies, study)
	}

	return studies, nil
}

// toRaw rebuilds a tag-keyed attribute set from Orthanc's named tag maps so
// the shared canonical mapping applies
func (s orthancStudy) toRaw() RawStudy {
	raw := make(RawStudy, len(s.MainDicomTags)+len(s.PatientMainDicomTags))
	for name, value := range s.MainDicomTags {
		if tag, ok := orthancNameToTag[name]; ok && value != "" {
			raw[tag] = Attribute{Value: []any{value}}
		}
	}
	for name, value := range s.PatientMainDicomTags {
		if tag, ok := orthancNameToTag[name]; ok && value != "" {
			raw[tag] = Attribute{Value: []any{value}}
		}
	}
	return raw
}

// TestConnection probes the Orthanc system endpoint
func (o *OrthancAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/system", nil)
	if err != nil {
		return status, fmt.Errorf("failed to create request: %w", err)
	}
	if o.username != "" {
		req.SetBasicAuth(o.username, o.password)
	}

	resp, err := o.client.Do(req)
	status.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		status.ErrorMessage = err.Error()
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.ErrorMessage = fmt.Sprintf("archive returned status %d", resp.StatusCode)
		return status, fmt.Errorf("archive returned status %d", resp.StatusCode)
	}

	status.IsConnected = true
	return status, nil
}

// Close closes the adapter
func (o *OrthancAdapter) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
