// internal/tui/detection_view.go
//
// The technician detection screen drives one MRI submission: resolve a
// patient by UID, pick a local image, submit, render the result. Patient
// lookup is debounced and generation-tagged: every keystroke bumps a
// sequence number that rides on both the debounce timer message and the
// lookup response message, and anything carrying a stale sequence is dropped
// silently. Timer cancellation alone is never trusted to kill an in-flight
// request.

package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

const lookupDebounce = 600 * time.Millisecond

// lookupState tracks where the patient-resolution half of the flow is.
type lookupState int

const (
	lookupIdle lookupState = iota
	lookupPending
	lookupResolved
	lookupUnresolved
)

const (
	fieldUID = iota
	fieldFile
	fieldDate
	fieldCount
)

type lookupTickMsg struct {
	seq int
	uid string
}

type lookupResultMsg struct {
	seq     int
	patient api.Patient
	err     error
}

type submitFinishedMsg struct {
	result api.ScanResult
	err    error
}

type detectionView struct {
	app *App

	uidInput  textinput.Model
	fileInput textinput.Model
	dateInput textinput.Model
	focus     int

	lookup    lookupState
	lookupSeq int
	patientID int64
	patient   api.Patient

	filePath string
	preview  *filePreview

	submitting bool
	spin       spinner.Model
	formErr    string
	result     *api.ScanResult
}

// filePreview is the local stand-in for an image preview: the file is
// inspected once and the handle released immediately. Superseding a
// selection replaces the whole struct, so nothing accumulates across
// repeated picks.
type filePreview struct {
	Name string
	Size int64
}

func newDetectionView(app *App) *detectionView {
	uid := textinput.New()
	uid.Placeholder = "Ex: P001"
	uid.CharLimit = 64
	uid.Width = 32

	file := textinput.New()
	file.Placeholder = "/path/to/mri.png"
	file.Width = 48

	date := textinput.New()
	date.Placeholder = "2025-01-30T14:00 (optional)"
	date.Width = 32

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &detectionView{
		app:       app,
		uidInput:  uid,
		fileInput: file,
		dateInput: date,
		spin:      spin,
	}
}

// Focus puts the cursor on the UID field.
func (v *detectionView) Focus() tea.Cmd {
	v.focus = fieldUID
	return v.uidInput.Focus()
}

func (v *detectionView) capturesEsc() bool {
	return v.formErr != ""
}

func (v *detectionView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case lookupTickMsg:
		// Debounce fired. Only the newest keystroke's timer may issue the
		// network call.
		if m.seq != v.lookupSeq {
			return nil
		}
		return v.issueLookup(m.seq, m.uid)

	case lookupResultMsg:
		return v.handleLookupResult(m)

	case submitFinishedMsg:
		return v.handleSubmitFinished(m)

	case spinner.TickMsg:
		if !v.submitting {
			return nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(m)
		return cmd

	case tea.KeyMsg:
		switch m.String() {
		case "esc":
			if v.formErr != "" {
				v.formErr = ""
				return nil
			}
		case "tab", "down":
			return v.cycleFocus(1)
		case "shift+tab", "up":
			return v.cycleFocus(-1)
		case "enter":
			if v.focus == fieldFile {
				v.selectFile(v.fileInput.Value())
				return v.cycleFocus(1)
			}
			return v.submit()
		case "ctrl+r":
			v.reset()
			return v.Focus()
		}
		return v.handleTyping(m)
	}
	return nil
}

// handleTyping forwards the keystroke to the focused field and, for the UID
// field, schedules the debounced lookup.
func (v *detectionView) handleTyping(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch v.focus {
	case fieldUID:
		before := v.uidInput.Value()
		v.uidInput, cmd = v.uidInput.Update(msg)
		if v.uidInput.Value() != before {
			return tea.Batch(cmd, v.uidChanged())
		}
	case fieldFile:
		v.fileInput, cmd = v.fileInput.Update(msg)
	case fieldDate:
		v.dateInput, cmd = v.dateInput.Update(msg)
	}
	return cmd
}

// uidChanged runs on every UID keystroke: clear error state, invalidate any
// displayed result (it belongs to the previous patient binding), and schedule
// a debounced lookup under a fresh sequence number. Blank identifiers
// short-circuit to unresolved without a network call.
func (v *detectionView) uidChanged() tea.Cmd {
	v.formErr = ""
	v.result = nil
	v.lookupSeq++
	seq := v.lookupSeq

	uid := strings.TrimSpace(v.uidInput.Value())
	if uid == "" {
		v.lookup = lookupUnresolved
		v.patientID = 0
		v.clearPatientFields()
		return nil
	}
	v.lookup = lookupPending
	return tea.Tick(lookupDebounce, func(time.Time) tea.Msg {
		return lookupTickMsg{seq: seq, uid: uid}
	})
}

// issueLookup performs the remote lookup for the given generation.
func (v *detectionView) issueLookup(seq int, uid string) tea.Cmd {
	app := v.app
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		patient, err := app.client.PatientByUID(ctx, app.gate.AccessToken(), uid)
		return lookupResultMsg{seq: seq, patient: patient, err: err}
	}
}

// handleLookupResult applies a lookup outcome, discarding stale generations.
func (v *detectionView) handleLookupResult(msg lookupResultMsg) tea.Cmd {
	if msg.seq != v.lookupSeq {
		// A newer identifier superseded this request; drop the response.
		return nil
	}
	switch {
	case msg.err == nil:
		v.patient = msg.patient
		v.patientID = msg.patient.ID
		v.lookup = lookupResolved
	case errors.Is(msg.err, api.ErrPatientNotFound):
		// Expected branch: unknown UID means "new patient". Dependent
		// fields reset; submission stays blocked.
		v.patientID = 0
		v.clearPatientFields()
		v.lookup = lookupUnresolved
	default:
		// Transient failure: keep whatever was resolved before, log only.
		v.app.logWarn("Patient lookup failed: %v", msg.err)
	}
	return nil
}

func (v *detectionView) clearPatientFields() {
	v.patient = api.Patient{PatientUID: strings.TrimSpace(v.uidInput.Value())}
}

// selectFile installs a new file selection. Any displayed result belongs to
// the previous file and is invalidated; the preview is replaced wholesale.
func (v *detectionView) selectFile(path string) {
	path = strings.TrimSpace(path)
	v.result = nil
	v.preview = nil
	v.filePath = path
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		v.formErr = fmt.Sprintf("Cannot read %s", path)
		v.filePath = ""
		return
	}
	v.formErr = ""
	v.preview = &filePreview{Name: info.Name(), Size: info.Size()}
}

// validate returns the first violated precondition in fixed order.
func (v *detectionView) validate() string {
	if strings.TrimSpace(v.uidInput.Value()) == "" {
		return "Patient UID is required"
	}
	if v.patientID == 0 {
		return "This Patient UID is not registered."
	}
	if v.filePath == "" {
		return "MRI image is required"
	}
	return ""
}

// submit issues the clinical upload. One submission in flight at a time; a
// failed attempt never erases a previously displayed result.
func (v *detectionView) submit() tea.Cmd {
	if v.submitting {
		return nil
	}
	// Commit a typed-but-unconfirmed file path before validating.
	if v.filePath == "" && strings.TrimSpace(v.fileInput.Value()) != "" {
		v.selectFile(v.fileInput.Value())
	}
	if msg := v.validate(); msg != "" {
		v.formErr = msg
		return nil
	}
	token := v.app.gate.AccessToken()
	if token == "" {
		v.formErr = "You are not logged in."
		return nil
	}

	v.formErr = ""
	v.submitting = true
	app := v.app
	patientID := v.patientID
	path := v.filePath
	scanDate := strings.TrimSpace(v.dateInput.Value())
	return tea.Batch(v.spin.Tick, func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return submitFinishedMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer file.Close()

		ctx, cancel := app.requestContext()
		defer cancel()
		result, err := app.client.UploadScan(ctx, token, api.UploadScanRequest{
			PatientID: patientID,
			FileName:  file.Name(),
			File:      file,
			ScanDate:  scanDate,
		})
		return submitFinishedMsg{result: result, err: err}
	})
}

func (v *detectionView) handleSubmitFinished(msg submitFinishedMsg) tea.Cmd {
	v.submitting = false
	if msg.err != nil {
		var apiErr *api.APIError
		switch {
		case api.IsAuthError(msg.err):
			v.formErr = "Session expired. Please log in again."
		case errors.As(msg.err, &apiErr):
			// Server message verbatim, generic fallback inside Error().
			v.formErr = apiErr.Error()
		case errors.Is(msg.err, api.ErrUnreachable):
			v.formErr = "Server not reachable"
		default:
			v.formErr = msg.err.Error()
		}
		v.app.logWarn("Scan upload failed: %v", msg.err)
		// Prior result, if any, stays on screen.
		return nil
	}
	result := msg.result
	v.result = &result
	v.app.setStatus(fmt.Sprintf("Scan %d analyzed · %s", result.ScanID, result.TumorType))
	return nil
}

// reset returns every field to its defaults. The session gate is untouched.
func (v *detectionView) reset() {
	v.uidInput.SetValue("")
	v.fileInput.SetValue("")
	v.dateInput.SetValue("")
	v.lookup = lookupIdle
	v.lookupSeq++
	v.patientID = 0
	v.patient = api.Patient{}
	v.filePath = ""
	v.preview = nil
	v.submitting = false
	v.formErr = ""
	v.result = nil
}

func (v *detectionView) cycleFocus(delta int) tea.Cmd {
	v.focus = (v.focus + delta + fieldCount) % fieldCount
	v.uidInput.Blur()
	v.fileInput.Blur()
	v.dateInput.Blur()
	switch v.focus {
	case fieldUID:
		return v.uidInput.Focus()
	case fieldFile:
		return v.fileInput.Focus()
	default:
		return v.dateInput.Focus()
	}
}

func (v *detectionView) View() string {
	sections := []string{panelTitleStyle.Render("Technician Detection")}

	if v.formErr != "" {
		sections = append(sections, errorBannerStyle.Render("⚠ "+v.formErr+"  (esc to dismiss)"))
	}

	sections = append(sections,
		v.renderPatientPanel(),
		v.renderUploadPanel(),
	)
	if v.result != nil {
		sections = append(sections, renderScanResult(*v.result))
	}
	sections = append(sections, hintStyle.Render(
		"tab → next field    enter → submit    ctrl+r → reset form    esc → back",
	))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *detectionView) renderPatientPanel() string {
	rows := []string{
		labelStyle.Render("PATIENT UID *") + "\n" + v.uidInput.View(),
	}
	switch v.lookup {
	case lookupPending:
		rows = append(rows, labelStyle.Render("Searching registry…"))
	case lookupResolved:
		rows = append(rows,
			renderField("FULL NAME", v.patient.FullName),
			renderField("AGE", v.patient.Age.String())+"   "+renderField("GENDER", v.patient.Gender),
			renderField("PHONE", v.patient.Phone),
			renderField("ADDRESS", v.patient.Address),
		)
	case lookupUnresolved:
		if strings.TrimSpace(v.uidInput.Value()) != "" {
			rows = append(rows, badgeWarnStyle.Render("UID not registered · create the patient first"))
		}
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(panelTitleStyle.Render("Patient Details") + "\n" + strings.Join(rows, "\n"))
}

func (v *detectionView) renderUploadPanel() string {
	rows := []string{
		labelStyle.Render("MRI IMAGE PATH *") + "\n" + v.fileInput.View(),
		labelStyle.Render("SCAN DATE") + "\n" + v.dateInput.View(),
	}
	if v.preview != nil {
		rows = append(rows, valueStyle.Render(
			fmt.Sprintf("◈ %s · %s · ready to analyze", v.preview.Name, humanizeSize(v.preview.Size)),
		))
	}
	if v.submitting {
		rows = append(rows, v.spin.View()+" Processing…")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(panelTitleStyle.Render("Upload Scan") + "\n" + strings.Join(rows, "\n"))
}

// renderScanResult renders the classification badge, confidence, clinical
// reasoning, and archive URL for one result.
func renderScanResult(result api.ScanResult) string {
	var badge string
	if result.TumorDetected() {
		badge = tumorBadgeStyle.Render(strings.ToUpper(result.TumorType) + " DETECTED")
	} else {
		badge = clearBadgeStyle.Render("NO TUMOR DETECTED")
	}
	rows := []string{
		badge,
		renderField("CONFIDENCE", fmt.Sprintf("%.1f%%", result.Confidence*100)),
	}
	if result.ClinicalReasoning != "" {
		rows = append(rows,
			labelStyle.Render("RECOMMENDED TREATMENT PROTOCOL"),
			reasoningStyle.Render(result.ClinicalReasoning),
			labelStyle.Render("AI generated context · for educational use only"),
		)
	}
	if result.MRIImageURL != "" {
		rows = append(rows, renderField("SCAN ARCHIVED", result.MRIImageURL))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(panelTitleStyle.Render("AI Classification") + "\n" + strings.Join(rows, "\n"))
}

func renderField(label, value string) string {
	if strings.TrimSpace(value) == "" {
		value = "—"
	}
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

func humanizeSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
