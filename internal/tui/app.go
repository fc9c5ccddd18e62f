// internal/tui/app.go
//
// This is the main TUI for the NeuroScan console. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neuroscan-project/neuroscan/internal/api"
	"github.com/neuroscan-project/neuroscan/internal/config"
	"github.com/neuroscan-project/neuroscan/internal/logbook"
	"github.com/neuroscan-project/neuroscan/internal/session"
)

// appState represents which "screen" we're on
type appState int

const (
	stateHome         appState = iota // Main menu with role-gated entries
	stateLogin                        // Username/password form
	stateRegister                     // Account creation form
	stateDetection                    // Technician scan submission flow
	statePublicUpload                 // Anonymous scanner (no credential)
	stateScans                        // Scan history / doctor registry
	statePatients                     // Patient directory + registration
)

const requestTimeout = 15 * time.Second

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRequestTimeout overrides the per-call deadline used by view commands.
func WithRequestTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

type sessionRefreshedMsg struct {
	snap session.Snapshot
}

type sessionEventMsg struct {
	event session.Event
}

// App is the main application model. In bubbletea, this holds ALL the state.
type App struct {
	state   appState
	cfg     *config.Config
	client  *api.Client
	gate    *session.Gate
	logbook *logbook.Logbook
	sub     session.Subscription
	timeout time.Duration

	snapshot session.Snapshot

	mainMenu      list.Model
	statusMsg     string
	lastLogStatus string

	loginView     *loginView
	registerView  *registerView
	detectionView *detectionView
	uploadView    *uploadView
	scansView     *scansView
	patientsView  *patientsView

	width  int
	height int
}

// menuItem implements list.Item for the main menu entries.
type menuItem struct {
	title string
	desc  string
	id    string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates the root model.
func NewApp(cfg *config.Config, client *api.Client, gate *session.Gate, lb *logbook.Logbook, opts ...AppOption) *App {
	mainMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "◉ NEUROSCAN"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	app := &App{
		state:    stateHome,
		cfg:      cfg,
		client:   client,
		gate:     gate,
		logbook:  lb,
		sub:      gate.Subscribe(),
		timeout:  requestTimeout,
		mainMenu: mainMenu,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.snapshot = gate.Snapshot()
	app.mainMenu.SetItems(buildMainMenu(app.snapshot))
	return app
}

// buildMainMenu assembles menu entries for the current session state.
func buildMainMenu(snap session.Snapshot) []list.Item {
	items := []list.Item{
		menuItem{id: "detection", title: "Detection", desc: "Open the scanner for your role"},
		menuItem{id: "public-upload", title: "Public Scanner", desc: "Anonymous analysis, nothing is stored"},
	}
	switch snap.Role() {
	case api.RoleTechnician:
		items = append(items,
			menuItem{id: "patients", title: "Patients", desc: "Directory and registration"},
			menuItem{id: "scans", title: "My Scans", desc: "Your analysis history"},
		)
	case api.RoleDoctor:
		items = append(items,
			menuItem{id: "patients", title: "Patients", desc: "Global patient directory"},
			menuItem{id: "scans", title: "Scan Registry", desc: "Every scan on file, with PDF reports"},
		)
	}
	if snap.Authenticated {
		items = append(items, menuItem{id: "logout", title: "Logout", desc: "Clear stored credentials"})
	} else {
		items = append(items,
			menuItem{id: "login", title: "Login", desc: "Authorized medical personnel only"},
			menuItem{id: "register", title: "Register", desc: "Create a technician or doctor account"},
		)
	}
	items = append(items, menuItem{id: "exit", title: "Exit", desc: "Quit the console"})
	return items
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logProgress(status string) {
	status = strings.TrimSpace(status)
	if status == "" || status == a.lastLogStatus {
		return
	}
	a.lastLogStatus = status
	a.logInfo(status)
}

func (a *App) setStatus(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.statusMsg = message
	a.logProgress(message)
}

// requestContext returns the deadline-bound context every view command uses.
func (a *App) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.refreshSession(), a.waitForSessionEvent())
}

// refreshSession re-derives session state from the stored credential.
func (a *App) refreshSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.requestContext()
		defer cancel()
		return sessionRefreshedMsg{snap: a.gate.Refresh(ctx)}
	}
}

// waitForSessionEvent blocks on the gate's credential-change channel and is
// re-issued after every delivery.
func (a *App) waitForSessionEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.sub.Events
		if !ok {
			return nil
		}
		return sessionEventMsg{event: event}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		return a, a.forwardToActiveView(msg)

	case sessionRefreshedMsg:
		a.applySnapshot(msg.snap)
		return a, nil

	case sessionEventMsg:
		a.applySnapshot(msg.event.Snapshot)
		return a, a.waitForSessionEvent()

	case loginFinishedMsg, registerFinishedMsg:
		return a, a.handleAuthMsg(msg)

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateHome {
				return a, tea.Quit
			}
		case "esc":
			if a.state != stateHome && !a.activeViewCapturesEsc() {
				return a.returnToHome()
			}
		case "enter":
			if a.state == stateHome {
				return a.handleMenuSelection()
			}
		}
	}

	var cmds []tea.Cmd
	if a.state == stateHome {
		var menuCmd tea.Cmd
		a.mainMenu, menuCmd = a.mainMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	} else if cmd := a.forwardToActiveView(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

// applySnapshot installs new session state and rebuilds role-gated entries.
func (a *App) applySnapshot(snap session.Snapshot) {
	a.snapshot = snap
	a.mainMenu.SetItems(buildMainMenu(snap))
}

// forwardToActiveView routes a message to the view owning the screen.
func (a *App) forwardToActiveView(msg tea.Msg) tea.Cmd {
	switch a.state {
	case stateLogin:
		if a.loginView != nil {
			return a.loginView.Update(msg)
		}
	case stateRegister:
		if a.registerView != nil {
			return a.registerView.Update(msg)
		}
	case stateDetection:
		if a.detectionView != nil {
			return a.detectionView.Update(msg)
		}
	case statePublicUpload:
		if a.uploadView != nil {
			return a.uploadView.Update(msg)
		}
	case stateScans:
		if a.scansView != nil {
			return a.scansView.Update(msg)
		}
	case statePatients:
		if a.patientsView != nil {
			return a.patientsView.Update(msg)
		}
	}
	return nil
}

// activeViewCapturesEsc lets form views use esc for field-level dismissal.
func (a *App) activeViewCapturesEsc() bool {
	switch a.state {
	case stateDetection:
		if a.detectionView != nil {
			return a.detectionView.capturesEsc()
		}
	case statePatients:
		if a.patientsView != nil {
			return a.patientsView.capturesEsc()
		}
	}
	return false
}

// handleMenuSelection processes main menu choices.
func (a *App) handleMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	a.logInfo("Menu · %s selected", item.title)

	switch item.id {
	case "detection":
		return a.openDetection()
	case "public-upload":
		a.state = statePublicUpload
		a.uploadView = newUploadView(a)
		return a, nil
	case "scans":
		return a.openScans()
	case "patients":
		a.state = statePatients
		a.patientsView = newPatientsView(a)
		return a, a.patientsView.Init()
	case "login":
		a.state = stateLogin
		a.loginView = newLoginView(a)
		return a, a.loginView.Focus()
	case "register":
		a.state = stateRegister
		a.registerView = newRegisterView(a)
		return a, a.registerView.Focus()
	case "logout":
		return a.logout()
	case "exit":
		return a, tea.Quit
	}
	return a, nil
}

// openDetection routes the detection entry point by session state, matching
// ResolveDestination exactly.
func (a *App) openDetection() (tea.Model, tea.Cmd) {
	switch session.ResolveDestination(a.snapshot) {
	case session.DestPublicUpload:
		a.state = statePublicUpload
		a.uploadView = newUploadView(a)
		return a, nil
	case session.DestTechnician:
		a.state = stateDetection
		a.detectionView = newDetectionView(a)
		return a, a.detectionView.Focus()
	case session.DestDoctor:
		return a.openScans()
	default:
		a.setStatus("Role not resolved yet · role-specific screens are hidden")
		return a, nil
	}
}

func (a *App) openScans() (tea.Model, tea.Cmd) {
	if !a.snapshot.Authenticated {
		a.setStatus("Login required for scan history")
		return a, nil
	}
	a.state = stateScans
	a.scansView = newScansView(a)
	return a, a.scansView.Init()
}

// logout clears credentials and returns to the home screen. The gate
// broadcasts the change; the menu rebuild arrives via sessionEventMsg.
func (a *App) logout() (tea.Model, tea.Cmd) {
	a.gate.Logout()
	a.state = stateHome
	a.setStatus("Logged out")
	return a, nil
}

// handleAuthMsg forwards auth outcomes to the owning view even when the user
// has already navigated elsewhere, so late responses never crash a screen.
func (a *App) handleAuthMsg(msg tea.Msg) tea.Cmd {
	switch a.state {
	case stateLogin:
		if a.loginView != nil {
			return a.loginView.Update(msg)
		}
	case stateRegister:
		if a.registerView != nil {
			return a.registerView.Update(msg)
		}
	}
	return nil
}

// returnToHome transitions back to the main menu.
func (a *App) returnToHome() (tea.Model, tea.Cmd) {
	a.state = stateHome
	a.loginView = nil
	a.registerView = nil
	a.detectionView = nil
	a.uploadView = nil
	a.scansView = nil
	a.patientsView = nil
	a.mainMenu.SetItems(buildMainMenu(a.snapshot))
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateHome:
		content = a.mainMenu.View()
	case stateLogin:
		content = a.loginView.View()
	case stateRegister:
		content = a.registerView.View()
	case stateDetection:
		content = a.detectionView.View()
	case statePublicUpload:
		content = a.uploadView.View()
	case stateScans:
		content = a.scansView.View()
	case statePatients:
		content = a.patientsView.View()
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render("◉ NEUROSCAN CONSOLE"),
		"  ",
		a.renderSessionBadge(),
	)
	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(max(40, width-2)).
		Render(content)
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := footerStyle.Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

// renderSessionBadge shows who is logged in. A resolved role gets its name;
// an unresolved one renders as role-unknown so no role affordance is implied.
func (a *App) renderSessionBadge() string {
	if !a.snapshot.Authenticated {
		return badgeMutedStyle.Render("anonymous")
	}
	if a.snapshot.Profile == nil {
		return badgeWarnStyle.Render("logged in · role unknown")
	}
	return badgeOkStyle.Render(fmt.Sprintf("%s · %s",
		a.snapshot.Profile.Username,
		strings.ToLower(string(a.snapshot.Profile.Role)),
	))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(5)
	if len(lines) == 0 {
		return ""
	}
	head := logHeadStyle.Render("LOG")
	body := logBodyStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(head + "\n" + body)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
