package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the clinical role assigned to an account by the backend.
type Role string

const (
	RoleTechnician Role = "TECHNICIAN"
	RoleDoctor     Role = "DOCTOR"
)

// Known returns true when the backend handed us a role this console
// understands. Unknown roles render as "logged in, role unknown".
func (r Role) Known() bool {
	return r == RoleTechnician || r == RoleDoctor
}

// TokenPair is the credential pair issued at login. The access token is the
// bearer credential for every authenticated call; the refresh token is stored
// but never exercised by the console (expiry is handled by the backend).
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// UserProfile is the resolved identity behind an access token.
type UserProfile struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Patient is a registered patient record as returned by the backend.
type Patient struct {
	ID         int64       `json:"id"`
	PatientUID string      `json:"patient_uid"`
	FullName   string      `json:"full_name"`
	Age        json.Number `json:"age"`
	Gender     string      `json:"gender"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}

// PatientDraft holds the user-entered fields when registering a new patient.
type PatientDraft struct {
	PatientUID string
	FullName   string
	Age        string
	Gender     string
	Phone      string
	Address    string
}

// ScanResult is the classification outcome of one uploaded MRI image.
type ScanResult struct {
	TumorType         string      `json:"tumor_type"`
	Confidence        float64     `json:"confidence"`
	ScanID            int64       `json:"scan_id"`
	MRIImageURL       string      `json:"mri_image_url"`
	ClinicalReasoning string      `json:"clinical_reasoning,omitempty"`
	PatientUID        string      `json:"patient_uid,omitempty"`
	PatientName       string      `json:"patient_name,omitempty"`
	Status            string      `json:"status,omitempty"`
	ScanDate          json.Number `json:"-"`
}

// NoTumorLabel is the negative class emitted by the classifier. Every other
// label is a detected tumor type.
const NoTumorLabel = "notumor"

// TumorDetected reports whether the classification names a tumor.
func (r ScanResult) TumorDetected() bool {
	label := strings.TrimSpace(r.TumorType)
	return label != "" && label != NoTumorLabel
}

// ScanRecord is one historical scan as listed by my-scans / scans.
type ScanRecord struct {
	ID          int64       `json:"id"`
	PatientUID  string      `json:"patient_uid"`
	PatientName string      `json:"patient_name"`
	TumorType   string      `json:"tumor_type"`
	Confidence  float64     `json:"confidence"`
	Status      string      `json:"status"`
	ScanDate    string      `json:"scan_date"`
	MRIImageURL string      `json:"mri_image_url"`
	UploadedBy  string      `json:"uploaded_by_username,omitempty"`
	Patient     *ScanOwner  `json:"patient,omitempty"`
	CreatedAt   json.Number `json:"-"`
}

// ScanOwner is the nested patient reference the doctor registry returns.
type ScanOwner struct {
	FullName   string `json:"full_name"`
	PatientUID string `json:"patient_uid"`
}

// OwnerName resolves the patient name regardless of which list shape the
// record came from.
func (s ScanRecord) OwnerName() string {
	if s.Patient != nil && s.Patient.FullName != "" {
		return s.Patient.FullName
	}
	return s.PatientName
}

// OwnerUID resolves the patient UID regardless of list shape.
func (s ScanRecord) OwnerUID() string {
	if s.Patient != nil && s.Patient.PatientUID != "" {
		return s.Patient.PatientUID
	}
	return s.PatientUID
}

// PatientHistory is the patient-detail response: the record plus every scan
// on file, newest first.
type PatientHistory struct {
	Patient Patient      `json:"patient"`
	Scans   []ScanRecord `json:"scans"`
}
