package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// UploadScanRequest drives one clinical MRI submission.
type UploadScanRequest struct {
	PatientID int64
	FileName  string
	File      io.Reader
	// ScanDate is optional, formatted as the backend expects
	// ("2006-01-02T15:04"). Empty means "now" server-side.
	ScanDate string
}

// UploadScan submits an MRI for a registered patient. The backend runs the
// classifier, archives the image, and returns the stored scan result.
func (c *Client) UploadScan(ctx context.Context, token string, req UploadScanRequest) (ScanResult, error) {
	if req.PatientID <= 0 {
		return ScanResult{}, fmt.Errorf("api: patient id is required")
	}
	if req.File == nil {
		return ScanResult{}, fmt.Errorf("api: scan file is required")
	}
	parts := []multipartPart{
		{field: "file", filename: req.FileName, reader: req.File},
		{field: "patient_id", value: strconv.FormatInt(req.PatientID, 10)},
	}
	if strings.TrimSpace(req.ScanDate) != "" {
		parts = append(parts, multipartPart{field: "scan_date", value: req.ScanDate})
	}
	var result ScanResult
	if err := c.postMultipart(ctx, token, c.endpoint("patients", "upload-scan"), parts, &result); err != nil {
		return ScanResult{}, err
	}
	return result, nil
}

// Predict submits an MRI anonymously. Nothing is stored server-side and no
// credential is sent. The response uses "prediction" for the label.
func (c *Client) Predict(ctx context.Context, fileName string, file io.Reader) (ScanResult, error) {
	if file == nil {
		return ScanResult{}, fmt.Errorf("api: scan file is required")
	}
	parts := []multipartPart{{field: "file", filename: fileName, reader: file}}
	var raw struct {
		Prediction string  `json:"prediction"`
		TumorType  string  `json:"tumor_type"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.postMultipart(ctx, "", c.endpoint("predict"), parts, &raw); err != nil {
		return ScanResult{}, err
	}
	label := raw.TumorType
	if label == "" {
		label = raw.Prediction
	}
	return ScanResult{TumorType: label, Confidence: raw.Confidence}, nil
}

// MyScans lists the scans uploaded by the authenticated technician.
func (c *Client) MyScans(ctx context.Context, token string) ([]ScanRecord, error) {
	return c.scanList(ctx, token, c.endpoint("patients", "my-scans"))
}

// AllScans lists every scan in the registry. Doctor role only; other roles
// get a 403 surfaced as *APIError.
func (c *Client) AllScans(ctx context.Context, token string) ([]ScanRecord, error) {
	return c.scanList(ctx, token, c.endpoint("patients", "scans"))
}

// scanList tolerates both response shapes the backend has shipped: a bare
// array and {"scans": [...]}.
func (c *Client) scanList(ctx context.Context, token, endpoint string) ([]ScanRecord, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, token, endpoint, &raw); err != nil {
		return nil, err
	}
	var records []ScanRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Scans []ScanRecord `json:"scans"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("api: unrecognized scan list shape: %w", err)
	}
	return wrapped.Scans, nil
}

// ScanReport streams the generated PDF report for a scan into dst and
// returns the number of bytes written.
func (c *Client) ScanReport(ctx context.Context, token string, scanID int64, dst io.Writer) (int64, error) {
	endpoint := c.endpoint("patients", "scan", strconv.FormatInt(scanID, 10), "pdf")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("api: build request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Int64("scan_id", scanID).Msg("api: report download failed")
		return 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, c.asAPIError(resp)
	}
	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, fmt.Errorf("api: write report: %w", err)
	}
	return n, nil
}
