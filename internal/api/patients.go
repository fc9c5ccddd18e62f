package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrPatientNotFound is the expected outcome of looking up a UID the backend
// has never seen. Callers treat it as the "new patient" branch, not a failure.
var ErrPatientNotFound = errors.New("patient not found")

// PatientByUID looks up a patient by their clinical UID. A backend 404 maps
// to ErrPatientNotFound.
func (c *Client) PatientByUID(ctx context.Context, token, uid string) (Patient, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Patient{}, fmt.Errorf("api: patient uid is required")
	}
	var patient Patient
	err := c.getJSON(ctx, token, c.endpoint("patients", "by-uid", uid), &patient)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Patient{}, ErrPatientNotFound
		}
		return Patient{}, err
	}
	return patient, nil
}

// CreatePatient registers a new patient. photo is an optional profile photo
// stream; pass nil to omit it.
func (c *Client) CreatePatient(ctx context.Context, token string, draft PatientDraft, photoName string, photo io.Reader) (Patient, error) {
	if strings.TrimSpace(draft.PatientUID) == "" || strings.TrimSpace(draft.FullName) == "" {
		return Patient{}, fmt.Errorf("api: patient uid and full name are required")
	}
	parts := []multipartPart{
		{field: "patient_uid", value: draft.PatientUID},
		{field: "full_name", value: draft.FullName},
		{field: "age", value: draft.Age},
		{field: "gender", value: draft.Gender},
		{field: "phone", value: draft.Phone},
		{field: "address", value: draft.Address},
	}
	if photo != nil {
		parts = append(parts, multipartPart{field: "profile_photo", filename: photoName, reader: photo})
	}
	var created Patient
	if err := c.postMultipart(ctx, token, c.endpoint("patients", "create"), parts, &created); err != nil {
		return Patient{}, err
	}
	return created, nil
}

// ListPatients returns every registered patient, newest first.
func (c *Client) ListPatients(ctx context.Context, token string) ([]Patient, error) {
	var patients []Patient
	if err := c.getJSON(ctx, token, c.endpoint("patients", "my-patients"), &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// PatientDetail returns one patient plus their full scan history.
func (c *Client) PatientDetail(ctx context.Context, token string, patientID int64) (PatientHistory, error) {
	var history PatientHistory
	endpoint := c.endpoint("patients", "patient", strconv.FormatInt(patientID, 10))
	if err := c.getJSON(ctx, token, endpoint, &history); err != nil {
		return PatientHistory{}, err
	}
	return history, nil
}
