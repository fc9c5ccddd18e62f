package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zerolog.Nop()), srv
}

func TestLoginReturnsTokenPair(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login/", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"username":"tech1","password":"secret"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access":"acc-token","refresh":"ref-token"}`)
	}))

	tokens, err := client.Login(context.Background(), "tech1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-token", tokens.Access)
	assert.Equal(t, "ref-token", tokens.Refresh)
}

func TestLoginRejectsMissingAccessToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"refresh":"only-refresh"}`)
	}))

	_, err := client.Login(context.Background(), "tech1", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access token")
}

func TestServerErrorMessageSurfacedVerbatim(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Invalid credentials"}`)
	}))

	_, err := client.Login(context.Background(), "tech1", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Error())
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, IsAuthError(err))
}

func TestErrorWithoutMessageGetsGenericText(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `<html>not json</html>`)
	}))

	_, err := client.Me(context.Background(), "tok")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed (HTTP 500)", apiErr.Error())
}

func TestTransportFailureMapsToErrUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, zerolog.Nop())

	_, err := client.Me(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, IsAuthError(err))
}

func TestPatientByUIDMapsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/patients/by-uid/P-404/", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"Patient not found"}`)
	}))

	_, err := client.PatientByUID(context.Background(), "tok", "P-404")
	require.ErrorIs(t, err, ErrPatientNotFound)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "404 on by-uid is an expected branch, not an API error")
}

func TestPatientByUIDReturnsRecord(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		io.WriteString(w, `{"id":7,"patient_uid":"P001","full_name":"Jane Roe","age":42,"gender":"F"}`)
	}))

	patient, err := client.PatientByUID(context.Background(), "tok", "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(7), patient.ID)
	assert.Equal(t, "Jane Roe", patient.FullName)
	assert.Equal(t, "42", patient.Age.String())
}

func TestUploadScanSendsMultipartFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/patients/upload-scan/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("patient_id"))
		assert.Equal(t, "2024-05-01T10:30", r.FormValue("scan_date"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "brain.jpg", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "jpegdata", string(content))
		io.WriteString(w, `{"tumor_type":"glioma","confidence":0.87,"scan_id":31,"mri_image_url":"/media/scans/31.jpg"}`)
	}))

	result, err := client.UploadScan(context.Background(), "tok", UploadScanRequest{
		PatientID: 7,
		FileName:  "brain.jpg",
		File:      strings.NewReader("jpegdata"),
		ScanDate:  "2024-05-01T10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "glioma", result.TumorType)
	assert.InDelta(t, 0.87, result.Confidence, 1e-9)
	assert.Equal(t, int64(31), result.ScanID)
	assert.True(t, result.TumorDetected())
}

func TestUploadScanRequiresPatientAndFile(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.UploadScan(context.Background(), "tok", UploadScanRequest{FileName: "a.jpg", File: strings.NewReader("x")})
	require.Error(t, err)

	_, err = client.UploadScan(context.Background(), "tok", UploadScanRequest{PatientID: 1})
	require.Error(t, err)
}

func TestPredictSendsNoCredentialAndReadsPredictionKey(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/predict/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"prediction":"meningioma","confidence":0.91}`)
	}))

	result, err := client.Predict(context.Background(), "scan.jpg", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, "meningioma", result.TumorType)
	assert.InDelta(t, 0.91, result.Confidence, 1e-9)
}

func TestScanListToleratesBareArray(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/patients/my-scans/", r.URL.Path)
		io.WriteString(w, `[{"id":1,"patient_uid":"P001","patient_name":"Jane Roe","tumor_type":"glioma","confidence":0.87}]`)
	}))

	scans, err := client.MyScans(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "Jane Roe", scans[0].OwnerName())
	assert.Equal(t, "P001", scans[0].OwnerUID())
}

func TestScanListToleratesWrappedObject(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/patients/scans/", r.URL.Path)
		io.WriteString(w, `{"scans":[{"id":2,"tumor_type":"notumor","confidence":0.99,"patient":{"full_name":"John Doe","patient_uid":"P002"}}]}`)
	}))

	scans, err := client.AllScans(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "John Doe", scans[0].OwnerName())
	assert.Equal(t, "P002", scans[0].OwnerUID())
}

func TestScanReportStreamsPDF(t *testing.T) {
	payload := "%PDF-1.4 fake report"
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/patients/scan/31/pdf/", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, payload)
	}))

	var buf strings.Builder
	n, err := client.ScanReport(context.Background(), "tok", 31, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.String())
}

func TestTumorDetected(t *testing.T) {
	assert.False(t, ScanResult{TumorType: "notumor"}.TumorDetected())
	assert.False(t, ScanResult{}.TumorDetected())
	assert.True(t, ScanResult{TumorType: "glioma"}.TumorDetected())
}
