// internal/tui/patients_view.go
//
// Patient directory: browse registered patients, drill into a scan history,
// register a new record. Registration is a multipart create with an optional
// profile photo.

package tui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

type patientsMode int

const (
	patientsBrowse patientsMode = iota
	patientsCreate
	patientsDetail
)

type patientsLoadedMsg struct {
	patients []api.Patient
	err      error
}

type patientCreatedMsg struct {
	patient api.Patient
	err     error
}

type historyLoadedMsg struct {
	history api.PatientHistory
	err     error
}

type patientsView struct {
	app      *App
	mode     patientsMode
	table    table.Model
	patients []api.Patient
	history  *api.PatientHistory
	loading  bool
	formErr  string

	// registration form
	inputs   []textinput.Model
	focus    int
	creating bool
}

const (
	pfUID = iota
	pfName
	pfAge
	pfGender
	pfPhone
	pfAddress
	pfPhoto
	pfCount
)

func newPatientsView(app *App) *patientsView {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "UID", Width: 12},
			{Title: "NAME", Width: 24},
			{Title: "AGE", Width: 5},
			{Title: "GENDER", Width: 8},
			{Title: "PHONE", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#3C5A99"))
	t.SetStyles(styles)

	placeholders := [pfCount]string{"patient UID", "full name", "age", "gender", "phone", "address", "photo path (optional)"}
	inputs := make([]textinput.Model, pfCount)
	for i := range inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 128
		in.Width = 36
		inputs[i] = in
	}

	return &patientsView{app: app, table: t, inputs: inputs, loading: true}
}

// capturesEsc keeps esc inside the view while a sub-screen is open, so
// canceling a form returns to the directory instead of the main menu.
func (v *patientsView) capturesEsc() bool {
	return v.mode != patientsBrowse
}

func (v *patientsView) Init() tea.Cmd {
	app := v.app
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		patients, err := app.client.ListPatients(ctx, app.gate.AccessToken())
		return patientsLoadedMsg{patients: patients, err: err}
	}
}

func (v *patientsView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case patientsLoadedMsg:
		v.loading = false
		if m.err != nil {
			v.formErr = connectivityMessage(m.err)
			return nil
		}
		v.patients = m.patients
		v.refreshRows()
		return nil

	case patientCreatedMsg:
		v.creating = false
		if m.err != nil {
			v.formErr = connectivityMessage(m.err)
			return nil
		}
		v.app.setStatus(fmt.Sprintf("Patient %s registered", m.patient.PatientUID))
		v.mode = patientsBrowse
		v.resetForm()
		v.loading = true
		return v.Init()

	case historyLoadedMsg:
		v.loading = false
		if m.err != nil {
			v.formErr = connectivityMessage(m.err)
			v.mode = patientsBrowse
			return nil
		}
		history := m.history
		v.history = &history
		return nil

	case tea.KeyMsg:
		switch v.mode {
		case patientsBrowse:
			return v.updateBrowse(m)
		case patientsCreate:
			return v.updateCreate(m)
		case patientsDetail:
			if m.String() == "esc" || m.String() == "enter" {
				v.mode = patientsBrowse
				v.history = nil
			}
			return nil
		}
	}
	return nil
}

func (v *patientsView) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "n":
		v.mode = patientsCreate
		v.formErr = ""
		v.focus = pfUID
		return v.inputs[pfUID].Focus()
	case "r":
		v.loading = true
		v.formErr = ""
		return v.Init()
	case "enter":
		return v.openDetail()
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *patientsView) updateCreate(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return v.cycleFocus(1)
	case "shift+tab", "up":
		return v.cycleFocus(-1)
	case "esc":
		v.mode = patientsBrowse
		v.resetForm()
		return nil
	case "enter":
		return v.submitCreate()
	}
	v.formErr = ""
	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return cmd
}

func (v *patientsView) cycleFocus(delta int) tea.Cmd {
	v.inputs[v.focus].Blur()
	v.focus = (v.focus + delta + pfCount) % pfCount
	return v.inputs[v.focus].Focus()
}

func (v *patientsView) refreshRows() {
	rows := make([]table.Row, 0, len(v.patients))
	for _, p := range v.patients {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", p.ID),
			p.PatientUID,
			p.FullName,
			p.Age.String(),
			p.Gender,
			p.Phone,
		})
	}
	v.table.SetRows(rows)
}

func (v *patientsView) selectedPatient() (api.Patient, bool) {
	row := v.table.SelectedRow()
	if len(row) == 0 {
		return api.Patient{}, false
	}
	for _, p := range v.patients {
		if fmt.Sprintf("%d", p.ID) == row[0] {
			return p, true
		}
	}
	return api.Patient{}, false
}

func (v *patientsView) openDetail() tea.Cmd {
	patient, ok := v.selectedPatient()
	if !ok {
		return nil
	}
	v.mode = patientsDetail
	v.loading = true
	v.formErr = ""
	app := v.app
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		history, err := app.client.PatientDetail(ctx, app.gate.AccessToken(), patient.ID)
		return historyLoadedMsg{history: history, err: err}
	}
}

func (v *patientsView) submitCreate() tea.Cmd {
	if v.creating {
		return nil
	}
	draft := api.PatientDraft{
		PatientUID: strings.TrimSpace(v.inputs[pfUID].Value()),
		FullName:   strings.TrimSpace(v.inputs[pfName].Value()),
		Age:        strings.TrimSpace(v.inputs[pfAge].Value()),
		Gender:     strings.TrimSpace(v.inputs[pfGender].Value()),
		Phone:      strings.TrimSpace(v.inputs[pfPhone].Value()),
		Address:    strings.TrimSpace(v.inputs[pfAddress].Value()),
	}
	if draft.PatientUID == "" {
		v.formErr = "Patient UID is required"
		return nil
	}
	if draft.FullName == "" {
		v.formErr = "Full name is required"
		return nil
	}
	photoPath := strings.TrimSpace(v.inputs[pfPhoto].Value())
	v.creating = true
	v.formErr = ""
	app := v.app
	return func() tea.Msg {
		var (
			photo     io.Reader
			photoName string
		)
		if photoPath != "" {
			file, err := os.Open(photoPath)
			if err != nil {
				return patientCreatedMsg{err: fmt.Errorf("open %s: %w", photoPath, err)}
			}
			defer file.Close()
			photo = file
			photoName = file.Name()
		}
		ctx, cancel := app.requestContext()
		defer cancel()
		patient, err := app.client.CreatePatient(ctx, app.gate.AccessToken(), draft, photoName, photo)
		return patientCreatedMsg{patient: patient, err: err}
	}
}

func (v *patientsView) resetForm() {
	for i := range v.inputs {
		v.inputs[i].SetValue("")
		v.inputs[i].Blur()
	}
	v.focus = pfUID
	v.creating = false
	v.formErr = ""
}

// connectivityMessage folds the error taxonomy into one operator-facing line.
func connectivityMessage(err error) string {
	var apiErr *api.APIError
	switch {
	case api.IsAuthError(err):
		return "Session expired. Please log in again."
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, api.ErrUnreachable):
		return "Server not reachable"
	default:
		return err.Error()
	}
}

func (v *patientsView) View() string {
	switch v.mode {
	case patientsCreate:
		return v.viewCreate()
	case patientsDetail:
		return v.viewDetail()
	}
	rows := []string{panelTitleStyle.Render("Patients")}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	switch {
	case v.loading:
		rows = append(rows, labelStyle.Render("Loading patients…"))
	case len(v.patients) == 0:
		rows = append(rows, labelStyle.Render("No patients registered"))
	default:
		rows = append(rows, v.table.View())
	}
	rows = append(rows, hintStyle.Render("enter → history    n → new patient    r → reload    esc → back"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *patientsView) viewCreate() string {
	labels := [pfCount]string{"PATIENT UID", "FULL NAME", "AGE", "GENDER", "PHONE", "ADDRESS", "PROFILE PHOTO"}
	rows := []string{panelTitleStyle.Render("Register Patient"), ""}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	for i := range v.inputs {
		rows = append(rows, labelStyle.Render(labels[i])+"\n"+v.inputs[i].View())
	}
	if v.creating {
		rows = append(rows, labelStyle.Render("Registering…"))
	}
	rows = append(rows, hintStyle.Render("enter → register    esc → cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *patientsView) viewDetail() string {
	rows := []string{panelTitleStyle.Render("Patient History")}
	if v.loading || v.history == nil {
		rows = append(rows, labelStyle.Render("Loading history…"))
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	p := v.history.Patient
	rows = append(rows,
		renderField("NAME", p.FullName),
		renderField("UID", p.PatientUID),
		renderField("AGE", p.Age.String()),
		renderField("GENDER", p.Gender),
		"",
		labelStyle.Render(fmt.Sprintf("SCANS ON FILE · %d", len(v.history.Scans))),
	)
	for _, scan := range v.history.Scans {
		label := "no tumor"
		if scan.TumorType != "" && scan.TumorType != api.NoTumorLabel {
			label = scan.TumorType
		}
		rows = append(rows, valueStyle.Render(fmt.Sprintf("#%d  %s  %.1f%%  %s", scan.ID, label, scan.Confidence*100, scan.ScanDate)))
	}
	rows = append(rows, hintStyle.Render("esc → back to directory"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
