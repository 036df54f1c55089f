package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// DICOMWebAdapter implements ArchiveAdapter for QIDO-RS archives
type DICOMWebAdapter struct {
	BaseAdapter
	client   *http.Client
	baseURL  string
	username string
	password string
	apiKey   string
}

// NewDICOMWebAdapter creates a new DICOMweb adapter
func NewDICOMWebAdapter(server models.ArchiveServer, timeout time.Duration) (*DICOMWebAdapter, error) {
	if server.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for a DICOMweb archive")
	}

	scheme := "http"
	if server.Port == 443 {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s:%d/dicom-web", scheme, server.Endpoint, server.Port)

	return &DICOMWebAdapter{
		BaseAdapter: BaseAdapter{server: server},
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		username: server.Username,
		password: server.Password,
		apiKey:   server.APIKey,
	}, nil
}

func (d *DICOMWebAdapter) Type() models.ArchiveType {
	return models.ArchiveTypeDICOMWeb
}

// SearchStudies queries for studies using QIDO-RS
func (d *DICOMWebAdapter) SearchStudies(ctx context.Context, criteria models.SearchCriteria) ([]models.Study, error) {
	queryURL := fmt.Sprintf("%s/studies", d.baseURL)

	urlParams := url.Values{}
	if name := WildcardName(criteria.PatientName); name != "" {
		urlParams.Add("PatientName", name)
	}
	if criteria.PatientID != "" {
		urlParams.Add("PatientID", criteria.PatientID)
	}
	if dr := DateRange(criteria.DateFrom, criteria.DateTo); dr != "" {
		urlParams.Add("StudyDate", dr)
	}
	if criteria.Exam != "" {
		urlParams.Add("StudyDescription", "*"+criteria.Exam+"*")
	}
	if criteria.Limit > 0 {
		urlParams.Add("limit", fmt.Sprintf("%d", criteria.Limit))
	}

	if len(urlParams) > 0 {
		queryURL = queryURL + "?" + urlParams.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	d.addAuth(req)
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// QIDO returns 204 when nothing matched
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	var raws []RawStudy
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	studies := make([]models.Study, 0, len(raws))
	for _, raw := range raws {
		studies = append(studies, Canonicalize(raw))
	}

	return studies, nil
}

// TestConnection probes the archive with a single-result query
func (d *DICOMWebAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
	}

	_, err := d.SearchStudies(ctx, models.SearchCriteria{Limit: 1})

	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.IsConnected = false
		status.ErrorMessage = err.Error()
		return status, err
	}

	status.IsConnected = true
	return status, nil
}

// Close closes the adapter
func (d *DICOMWebAdapter) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// addAuth adds authentication to the request
func (d *DICOMWebAdapter) addAuth(req *http.Request) {
	if d.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.apiKey))
	} else if d.username != "" && d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
}
