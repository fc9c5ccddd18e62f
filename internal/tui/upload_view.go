// internal/tui/upload_view.go
//
// Anonymous scanner. No credential, no patient record, nothing persisted on
// the server side. The file goes straight to the prediction endpoint.

package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

type predictFinishedMsg struct {
	result api.ScanResult
	err    error
}

type uploadView struct {
	app       *App
	fileInput textinput.Model
	spin      spinner.Model
	filePath  string
	preview   *filePreview
	busy      bool
	formErr   string
	result    *api.ScanResult
}

func newUploadView(app *App) *uploadView {
	fileInput := textinput.New()
	fileInput.Placeholder = "/path/to/mri.jpg"
	fileInput.CharLimit = 256
	fileInput.Width = 48
	fileInput.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &uploadView{app: app, fileInput: fileInput, spin: spin}
}

func (v *uploadView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case predictFinishedMsg:
		return v.handlePredictFinished(m)

	case spinner.TickMsg:
		if !v.busy {
			return nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(m)
		return cmd

	case tea.KeyMsg:
		switch m.String() {
		case "enter":
			return v.submit()
		case "ctrl+r":
			v.reset()
			return nil
		}
		v.formErr = ""
		var cmd tea.Cmd
		v.fileInput, cmd = v.fileInput.Update(m)
		return cmd
	}
	return nil
}

// selectFile mirrors the clinical flow: a new file invalidates any displayed
// result before the preview is swapped in.
func (v *uploadView) selectFile(path string) {
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

func (v *uploadView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	v.selectFile(v.fileInput.Value())
	if v.filePath == "" {
		if v.formErr == "" {
			v.formErr = "MRI image is required"
		}
		return nil
	}
	v.busy = true
	v.formErr = ""
	app := v.app
	path := v.filePath
	return tea.Batch(v.spin.Tick, func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return predictFinishedMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer file.Close()

		ctx, cancel := app.requestContext()
		defer cancel()
		result, err := app.client.Predict(ctx, file.Name(), file)
		return predictFinishedMsg{result: result, err: err}
	})
}

func (v *uploadView) handlePredictFinished(msg predictFinishedMsg) tea.Cmd {
	v.busy = false
	if msg.err != nil {
		var apiErr *api.APIError
		switch {
		case errors.As(msg.err, &apiErr):
			v.formErr = apiErr.Error()
		case errors.Is(msg.err, api.ErrUnreachable):
			v.formErr = "Server not reachable"
		default:
			v.formErr = msg.err.Error()
		}
		v.app.logWarn("Anonymous prediction failed: %v", msg.err)
		return nil
	}
	result := msg.result
	v.result = &result
	v.app.setStatus(fmt.Sprintf("Anonymous analysis done · %s", result.TumorType))
	return nil
}

func (v *uploadView) reset() {
	v.fileInput.SetValue("")
	v.filePath = ""
	v.preview = nil
	v.busy = false
	v.formErr = ""
	v.result = nil
}

func (v *uploadView) View() string {
	rows := []string{
		panelTitleStyle.Render("Public Scanner"),
		labelStyle.Render("Anonymous analysis. Nothing is stored."),
		"",
	}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	rows = append(rows, labelStyle.Render("MRI IMAGE")+"\n"+v.fileInput.View())
	if v.preview != nil {
		rows = append(rows, valueStyle.Render(fmt.Sprintf("%s · %s", v.preview.Name, humanizeSize(v.preview.Size))))
	}
	if v.busy {
		rows = append(rows, v.spin.View()+" Analyzing…")
	}
	if v.result != nil {
		rows = append(rows, "", renderScanResult(*v.result))
	}
	rows = append(rows, hintStyle.Render("enter → analyze    ctrl+r → reset    esc → back"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
