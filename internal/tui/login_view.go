// internal/tui/login_view.go
//
// Login and register screens. Login stores the issued token pair through the
// session gate, which broadcasts the credential change to every subscriber.

package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

type loginFinishedMsg struct {
	tokens api.TokenPair
	err    error
}

type registerFinishedMsg struct {
	err error
}

type loginView struct {
	app      *App
	username textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	formErr  string
}

func newLoginView(app *App) *loginView {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 64
	password.Width = 32

	return &loginView{app: app, username: username, password: password}
}

func (v *loginView) Focus() tea.Cmd {
	v.focus = 0
	return v.username.Focus()
}

func (v *loginView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case loginFinishedMsg:
		v.busy = false
		if m.err != nil {
			if errors.Is(m.err, api.ErrUnreachable) {
				v.formErr = "Server not reachable"
			} else {
				v.formErr = "Invalid username or password"
			}
			return nil
		}
		if err := v.app.gate.Login(m.tokens); err != nil {
			v.formErr = "Could not store credentials"
			v.app.logWarn("Credential store failed: %v", err)
			return nil
		}
		v.app.state = stateHome
		v.app.setStatus("Logged in")
		return v.app.refreshSession()

	case tea.KeyMsg:
		switch m.String() {
		case "tab", "down", "shift+tab", "up":
			return v.toggleFocus()
		case "enter":
			return v.submit()
		}
		v.formErr = ""
		var cmd tea.Cmd
		if v.focus == 0 {
			v.username, cmd = v.username.Update(m)
		} else {
			v.password, cmd = v.password.Update(m)
		}
		return cmd
	}
	return nil
}

func (v *loginView) toggleFocus() tea.Cmd {
	v.focus = 1 - v.focus
	if v.focus == 0 {
		v.password.Blur()
		return v.username.Focus()
	}
	v.username.Blur()
	return v.password.Focus()
}

func (v *loginView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	username := strings.TrimSpace(v.username.Value())
	password := v.password.Value()
	if username == "" || password == "" {
		v.formErr = "Username and password are required"
		return nil
	}
	v.busy = true
	v.formErr = ""
	app := v.app
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		tokens, err := app.client.Login(ctx, username, password)
		return loginFinishedMsg{tokens: tokens, err: err}
	}
}

func (v *loginView) View() string {
	rows := []string{panelTitleStyle.Render("Login"), labelStyle.Render("Authorized medical personnel only"), ""}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	rows = append(rows,
		labelStyle.Render("USERNAME")+"\n"+v.username.View(),
		labelStyle.Render("PASSWORD")+"\n"+v.password.View(),
	)
	if v.busy {
		rows = append(rows, labelStyle.Render("Signing in…"))
	}
	rows = append(rows, hintStyle.Render("enter → sign in    esc → back"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

type registerView struct {
	app      *App
	username textinput.Model
	password textinput.Model
	role     api.Role
	focus    int
	busy     bool
	formErr  string
	done     bool
}

func newRegisterView(app *App) *registerView {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 64
	password.Width = 32

	return &registerView{app: app, username: username, password: password, role: api.RoleTechnician}
}

func (v *registerView) Focus() tea.Cmd {
	v.focus = 0
	return v.username.Focus()
}

func (v *registerView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case registerFinishedMsg:
		v.busy = false
		if m.err != nil {
			var apiErr *api.APIError
			switch {
			case errors.As(m.err, &apiErr):
				v.formErr = apiErr.Error()
			case errors.Is(m.err, api.ErrUnreachable):
				v.formErr = "Server not reachable"
			default:
				v.formErr = "Registration failed"
			}
			return nil
		}
		v.done = true
		v.app.setStatus("Account created · please log in")
		return nil

	case tea.KeyMsg:
		switch m.String() {
		case "tab", "down":
			return v.cycleFocus(1)
		case "shift+tab", "up":
			return v.cycleFocus(-1)
		case "left", "right":
			if v.focus == 2 {
				v.toggleRole()
				return nil
			}
		case "enter":
			if v.done {
				v.app.state = stateLogin
				v.app.loginView = newLoginView(v.app)
				return v.app.loginView.Focus()
			}
			return v.submit()
		}
		v.formErr = ""
		var cmd tea.Cmd
		switch v.focus {
		case 0:
			v.username, cmd = v.username.Update(m)
		case 1:
			v.password, cmd = v.password.Update(m)
		}
		return cmd
	}
	return nil
}

func (v *registerView) cycleFocus(delta int) tea.Cmd {
	v.focus = (v.focus + delta + 3) % 3
	v.username.Blur()
	v.password.Blur()
	switch v.focus {
	case 0:
		return v.username.Focus()
	case 1:
		return v.password.Focus()
	}
	return nil
}

func (v *registerView) toggleRole() {
	if v.role == api.RoleTechnician {
		v.role = api.RoleDoctor
	} else {
		v.role = api.RoleTechnician
	}
}

func (v *registerView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	username := strings.TrimSpace(v.username.Value())
	password := v.password.Value()
	if username == "" || password == "" {
		v.formErr = "Username and password are required"
		return nil
	}
	v.busy = true
	v.formErr = ""
	app := v.app
	role := v.role
	return func() tea.Msg {
		ctx, cancel := app.requestContext()
		defer cancel()
		return registerFinishedMsg{err: app.client.Register(ctx, username, password, role)}
	}
}

func (v *registerView) View() string {
	if v.done {
		return lipgloss.JoinVertical(lipgloss.Left,
			panelTitleStyle.Render("Register"),
			badgeOkStyle.Render("Account created."),
			hintStyle.Render("enter → go to login"),
		)
	}
	rows := []string{panelTitleStyle.Render("Register"), ""}
	if v.formErr != "" {
		rows = append(rows, errorBannerStyle.Render("⚠ "+v.formErr))
	}
	roleLine := labelStyle.Render("ROLE") + "\n" + valueStyle.Render(string(v.role))
	if v.focus == 2 {
		roleLine += labelStyle.Render("  ←/→ to switch")
	}
	rows = append(rows,
		labelStyle.Render("USERNAME")+"\n"+v.username.View(),
		labelStyle.Render("PASSWORD")+"\n"+v.password.View(),
		roleLine,
	)
	if v.busy {
		rows = append(rows, labelStyle.Render("Creating account…"))
	}
	rows = append(rows, hintStyle.Render("enter → create account    esc → back"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
