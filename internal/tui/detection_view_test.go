package tui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/neuroscan-project/neuroscan/internal/api"
	"github.com/neuroscan-project/neuroscan/internal/config"
	"github.com/neuroscan-project/neuroscan/internal/session"
)

func newTestApp(t *testing.T, handler http.Handler) *App {
	t.Helper()
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, zerolog.Nop())
	store, err := session.NewCredentialStore(t.TempDir())
	if err != nil {
		t.Fatalf("credential store: %v", err)
	}
	gate := session.NewGate(store, client, zerolog.Nop())
	cfg := &config.Config{StateDir: t.TempDir()}
	return NewApp(cfg, client, gate, nil)
}

// runViewCmd executes a view command and feeds resulting messages back into
// the view, flattening batches. Spinner ticks are dropped so animation never
// loops the test.
func runViewCmd(t *testing.T, update func(tea.Msg) tea.Cmd, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if _, ok := msg.(spinner.TickMsg); ok {
			continue
		}
		if followUp := update(msg); followUp != nil {
			queue = append(queue, followUp)
		}
	}
}

func typeRunes(v *detectionView, text string) {
	for _, r := range text {
		v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func writeTempScan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brain.jpg")
	if err := os.WriteFile(path, []byte("jpegdata"), 0o644); err != nil {
		t.Fatalf("write scan file: %v", err)
	}
	return path
}

func TestLookupDebounceCoalescesKeystrokes(t *testing.T) {
	var calls int32
	app := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/patients/by-uid/P001/" {
			t.Errorf("unexpected lookup path %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":7,"patient_uid":"P001","full_name":"Jane Roe","age":42}`)
	}))
	view := newDetectionView(app)
	view.Focus()

	typeRunes(view, "P001")
	if view.lookup != lookupPending {
		t.Fatalf("expected pending lookup while typing, got %d", view.lookup)
	}
	if view.lookupSeq != 4 {
		t.Fatalf("expected one generation per keystroke, got %d", view.lookupSeq)
	}

	// Timers for the first three keystrokes fire after being superseded;
	// none may reach the network.
	for seq := 1; seq <= 3; seq++ {
		if cmd := view.Update(lookupTickMsg{seq: seq, uid: "P001"[:seq]}); cmd != nil {
			t.Fatalf("stale timer %d must not issue a lookup", seq)
		}
	}
	cmd := view.Update(lookupTickMsg{seq: 4, uid: "P001"})
	if cmd == nil {
		t.Fatalf("newest timer must issue the lookup")
	}
	runViewCmd(t, view.Update, cmd)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one lookup call, got %d", got)
	}
	if view.lookup != lookupResolved {
		t.Fatalf("expected resolved lookup, got %d", view.lookup)
	}
	if view.patientID != 7 {
		t.Fatalf("expected patient id 7, got %d", view.patientID)
	}
	if view.patient.FullName != "Jane Roe" {
		t.Fatalf("expected patient name, got %q", view.patient.FullName)
	}
}

func TestStaleLookupResponseIsDiscarded(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.Focus()
	typeRunes(view, "P002")
	currentSeq := view.lookupSeq

	// A response for an older identifier arrives late.
	view.Update(lookupResultMsg{seq: currentSeq - 1, patient: api.Patient{ID: 99, PatientUID: "P0"}})
	if view.patientID != 0 {
		t.Fatalf("stale response must not install a patient, got id %d", view.patientID)
	}
	if view.lookup != lookupPending {
		t.Fatalf("stale response must not change lookup state, got %d", view.lookup)
	}

	view.Update(lookupResultMsg{seq: currentSeq, patient: api.Patient{ID: 12, PatientUID: "P002"}})
	if view.patientID != 12 {
		t.Fatalf("current response must install the patient, got id %d", view.patientID)
	}
}

func TestUnknownUIDMeansNewPatient(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.Focus()
	typeRunes(view, "P404")
	view.patientID = 55 // leftover from a previous resolution

	view.Update(lookupResultMsg{seq: view.lookupSeq, err: api.ErrPatientNotFound})
	if view.lookup != lookupUnresolved {
		t.Fatalf("expected unresolved state, got %d", view.lookup)
	}
	if view.patientID != 0 {
		t.Fatalf("unknown UID must clear the resolved patient, got %d", view.patientID)
	}
	if view.formErr != "" {
		t.Fatalf("the not-found branch is not an error, got %q", view.formErr)
	}
}

func TestTransientLookupFailureKeepsPriorResolution(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.Focus()
	typeRunes(view, "P001")
	view.Update(lookupResultMsg{seq: view.lookupSeq, patient: api.Patient{ID: 7, PatientUID: "P001"}})

	view.lookupSeq++
	view.Update(lookupResultMsg{seq: view.lookupSeq, err: api.ErrUnreachable})
	if view.patientID != 7 {
		t.Fatalf("transient failure must keep the prior patient, got %d", view.patientID)
	}
}

func TestValidationOrderIsFixed(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)

	view.submit()
	if view.formErr != "Patient UID is required" {
		t.Fatalf("blank form: got %q", view.formErr)
	}

	view.uidInput.SetValue("P404")
	view.patientID = 0
	view.submit()
	if view.formErr != "This Patient UID is not registered." {
		t.Fatalf("unresolved UID: got %q", view.formErr)
	}

	view.patientID = 7
	view.submit()
	if view.formErr != "MRI image is required" {
		t.Fatalf("missing file: got %q", view.formErr)
	}
}

func TestSubmitRequiresLogin(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.uidInput.SetValue("P001")
	view.patientID = 7
	view.selectFile(writeTempScan(t))

	if cmd := view.submit(); cmd != nil {
		t.Fatalf("submit without a credential must not reach the network")
	}
	if view.formErr != "You are not logged in." {
		t.Fatalf("got %q", view.formErr)
	}
}

func TestSubmitRendersDetectionResult(t *testing.T) {
	app := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/patients/upload-scan/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("patient_id"); got != "7" {
			t.Errorf("patient_id = %q", got)
		}
		io.WriteString(w, `{"tumor_type":"glioma","confidence":0.87,"scan_id":31,"mri_image_url":"/media/scans/31.jpg","clinical_reasoning":"Irregular mass in left temporal lobe."}`)
	}))
	if err := app.gate.Login(api.TokenPair{Access: "acc"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	view := newDetectionView(app)
	view.uidInput.SetValue("P001")
	view.patientID = 7
	view.selectFile(writeTempScan(t))

	cmd := view.submit()
	if cmd == nil {
		t.Fatalf("expected submit command, got error %q", view.formErr)
	}
	if !view.submitting {
		t.Fatalf("submit must mark the request in flight")
	}
	if extra := view.submit(); extra != nil {
		t.Fatalf("a second submit while in flight must be ignored")
	}
	runViewCmd(t, view.Update, cmd)

	if view.submitting {
		t.Fatalf("submit must clear the in-flight flag")
	}
	if view.result == nil {
		t.Fatalf("expected a rendered result, form error %q", view.formErr)
	}
	rendered := view.View()
	if !strings.Contains(rendered, "GLIOMA DETECTED") {
		t.Fatalf("expected tumor badge in view:\n%s", rendered)
	}
	if !strings.Contains(rendered, "87.0%") {
		t.Fatalf("expected confidence percentage in view:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Irregular mass") {
		t.Fatalf("expected clinical reasoning in view:\n%s", rendered)
	}
}

func TestNoTumorResultRendersClearBadge(t *testing.T) {
	rendered := renderScanResult(api.ScanResult{TumorType: "notumor", Confidence: 0.993})
	if !strings.Contains(rendered, "NO TUMOR DETECTED") {
		t.Fatalf("expected clear badge:\n%s", rendered)
	}
	if !strings.Contains(rendered, "99.3%") {
		t.Fatalf("expected confidence:\n%s", rendered)
	}
}

func TestFailedSubmitPreservesPriorResult(t *testing.T) {
	app := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"Model not loaded"}`)
	}))
	if err := app.gate.Login(api.TokenPair{Access: "acc"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	view := newDetectionView(app)
	prior := api.ScanResult{TumorType: "meningioma", Confidence: 0.91, ScanID: 12}
	view.result = &prior
	view.uidInput.SetValue("P001")
	view.patientID = 7
	view.filePath = writeTempScan(t)

	runViewCmd(t, view.Update, view.submit())

	if view.formErr != "Model not loaded" {
		t.Fatalf("server message must surface verbatim, got %q", view.formErr)
	}
	if view.result == nil || view.result.ScanID != 12 {
		t.Fatalf("failed submit must keep the prior result")
	}
}

func TestAuthFailureDirectsReLogin(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.submitting = true

	view.Update(submitFinishedMsg{err: &api.APIError{StatusCode: 401, Message: "Token expired"}})
	if view.formErr != "Session expired. Please log in again." {
		t.Fatalf("got %q", view.formErr)
	}
}

func TestChangingUIDInvalidatesResult(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.Focus()
	result := api.ScanResult{TumorType: "glioma", Confidence: 0.87}
	view.result = &result

	typeRunes(view, "X")
	if view.result != nil {
		t.Fatalf("a result is bound to its patient; changing the UID must clear it")
	}
}

func TestNewFileSelectionInvalidatesResult(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	result := api.ScanResult{TumorType: "glioma", Confidence: 0.87}
	view.result = &result

	path := writeTempScan(t)
	view.selectFile(path)
	if view.result != nil {
		t.Fatalf("a new file belongs to no result; the old one must clear")
	}
	if view.preview == nil || view.preview.Name != "brain.jpg" {
		t.Fatalf("expected preview for the selected file, got %+v", view.preview)
	}

	view.selectFile(filepath.Join(t.TempDir(), "missing.jpg"))
	if view.filePath != "" || view.preview != nil {
		t.Fatalf("unreadable file must clear the selection")
	}
}

func TestResetReturnsFormToDefaults(t *testing.T) {
	app := newTestApp(t, nil)
	view := newDetectionView(app)
	view.uidInput.SetValue("P001")
	view.patientID = 7
	view.patient = api.Patient{ID: 7}
	view.lookup = lookupResolved
	view.filePath = writeTempScan(t)
	view.preview = &filePreview{Name: "brain.jpg"}
	result := api.ScanResult{TumorType: "glioma"}
	view.result = &result
	view.formErr = "stale"
	seqBefore := view.lookupSeq

	view.reset()

	if view.uidInput.Value() != "" || view.filePath != "" || view.preview != nil {
		t.Fatalf("reset must clear inputs and selection")
	}
	if view.patientID != 0 || view.lookup != lookupIdle || view.result != nil || view.formErr != "" {
		t.Fatalf("reset must clear lookup and result state")
	}
	if view.lookupSeq <= seqBefore {
		t.Fatalf("reset must retire in-flight lookups by bumping the generation")
	}
	if app.gate.Snapshot().Authenticated {
		t.Fatalf("reset must not touch the session")
	}
}
