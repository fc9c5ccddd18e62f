// internal/tui/scans_view.go
//
// Scan history. Technicians see their own uploads; doctors see every scan on
// file and can pull the PDF report for the selected row.

package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

type scansLoadedMsg struct {
	scans []api.ScanRecord
	err   error
}

type reportSavedMsg struct {
	scanID int64
	path   string
	err    error
}

type scansView struct {
	app         *App
	table       table.Model
	scans       []api.ScanRecord
	filter      string
	loading     bool
	downloading bool
	formErr     string
}

func newScansView(app *App) *scansView {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "PATIENT", Width: 20},
		{Title: "UID", Width: 12},
		{Title: "RESULT", Width: 14},
		{Title: "CONF", Width: 7},
		{Title: "DATE", Width: 12},
	}
	if app.snapshot.Role() == api.RoleDoctor {
		columns = append(columns, table.Column{Title: "UPLOADED BY", Width: 16})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#3C5A99"))
	t.SetStyles(styles)

	return &scansView{app: app, table: t, loading: true}
}

// Init loads the role-appropriate scan list.
func (v *scansView) Init() tea.Cmd {
	app := v.app
	doctor := app.snapshot.Role() == api.RoleDoctor
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		token := app.gate.AccessToken()
		var (
			scans []api.ScanRecord
			err   error
		)
		if doctor {
			scans, err = app.client.AllScans(ctx, token)
		} else {
			scans, err = app.client.MyScans(ctx, token)
		}
		return scansLoadedMsg{scans: scans, err: err}
	}
}

func (v *scansView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case scansLoadedMsg:
		v.loading = false
		if m.err != nil {
			v.formErr = connectivityMessage(m.err)
			return nil
		}
		v.scans = m.scans
		v.applyFilter()
		return nil

	case reportSavedMsg:
		v.downloading = false
		if m.err != nil {
			v.formErr = fmt.Sprintf("Report download failed: %v", m.err)
			v.app.logWarn("Report for scan %d failed: %v", m.scanID, m.err)
			return nil
		}
		v.app.setStatus(fmt.Sprintf("Report saved to %s", m.path))
		return nil

	case tea.KeyMsg:
		switch m.String() {
		case "f":
			v.cycleFilter()
			return nil
		case "d", "enter":
			return v.downloadReport()
		case "r":
			v.loading = true
			v.formErr = ""
			return v.Init()
		}
		var cmd tea.Cmd
		v.table, cmd = v.table.Update(m)
		return cmd
	}
	return nil
}

// tumorFilters cycles all -> tumor-only -> clear-only.
var tumorFilters = []string{"", "tumor", "clear"}

func (v *scansView) cycleFilter() {
	for i, f := range tumorFilters {
		if f == v.filter {
			v.filter = tumorFilters[(i+1)%len(tumorFilters)]
			v.applyFilter()
			return
		}
	}
	v.filter = ""
	v.applyFilter()
}

func (v *scansView) applyFilter() {
	doctor := v.app.snapshot.Role() == api.RoleDoctor
	rows := make([]table.Row, 0, len(v.scans))
	for _, scan := range v.scans {
		detected := scan.TumorType != "" && scan.TumorType != api.NoTumorLabel
		if v.filter == "tumor" && !detected {
			continue
		}
		if v.filter == "clear" && detected {
			continue
		}
		result := "NO TUMOR"
		if detected {
			result = strings.ToUpper(scan.TumorType)
		}
		row := table.Row{
			fmt.Sprintf("%d", scan.ID),
			scan.OwnerName(),
			scan.OwnerUID(),
			result,
			fmt.Sprintf("%.1f%%", scan.Confidence*100),
			scan.ScanDate,
		}
		if doctor {
			row = append(row, scan.UploadedBy)
		}
		rows = append(rows, row)
	}
	v.table.SetRows(rows)
}

// selectedScan maps the highlighted row back to its record by scan id.
func (v *scansView) selectedScan() (api.ScanRecord, bool) {
	row := v.table.SelectedRow()
	if len(row) == 0 {
		return api.ScanRecord{}, false
	}
	for _, scan := range v.scans {
		if fmt.Sprintf("%d", scan.ID) == row[0] {
			return scan, true
		}
	}
	return api.ScanRecord{}, false
}

// downloadReport streams the PDF for the selected scan into the reports dir.
func (v *scansView) downloadReport() tea.Cmd {
	if v.downloading {
		return nil
	}
	scan, ok := v.selectedScan()
	if !ok {
		return nil
	}
	v.downloading = true
	v.formErr = ""
	app := v.app
	dst := filepath.Join(app.cfg.ReportsDir(), fmt.Sprintf("Medical_Report_%d.pdf", scan.ID))
	return func() tea.Msg {
		out, err := os.Create(dst)
		if err != nil {
			return reportSavedMsg{scanID: scan.ID, err: err}
		}
		defer out.Close()

		ctx, cancel := app.requestContext()
		defer cancel()
		token := app.gate.AccessToken()
		if _, err := app.client.ScanReport(ctx, token, scan.ID, out); err != nil {
			os.Remove(dst)
			return reportSavedMsg{scanID: scan.ID, err: err}
		}
		return reportSavedMsg{scanID: scan.ID, path: dst}
	}
}

func (v *scansView) View() string {
	title := "My Scans"
	if v.app.snapshot.Role() == api.RoleDoctor {
		title = "Scan Registry"
	}
	rows := []string{panelTitleStyle.Render(title)}
	switch v.filter {
	case "tumor":
		rows = append(rows, labelStyle.Render("Filter: tumor detected"))
	case "clear":
		rows = append(rows, labelStyle.Render("Filter: no tumor"))
	}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	switch {
	case v.loading:
		rows = append(rows, labelStyle.Render("Loading scans…"))
	case len(v.table.Rows()) == 0:
		rows = append(rows, labelStyle.Render("No scans on file"))
	default:
		rows = append(rows, v.table.View())
	}
	hint := "f → filter    r → reload    esc → back"
	if v.app.snapshot.Role() == api.RoleDoctor {
		hint = "enter → PDF report    " + hint
	}
	rows = append(rows, hintStyle.Render(hint))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
