package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cinebooker-cli/model"
)

type formMode int

const (
	formLogin formMode = iota
	formRegister
)

const (
	fieldUsername = "Username"
	fieldEmail    = "Email"
	fieldPassword = "Password"
)

type authForm struct {
	mode        formMode
	labels      []string
	inputs      []textinput.Model
	focus       int
	returnState appState
	err         string
}

type authMsg struct {
	mode     formMode
	user     model.User
	username string
	err      error
}

func newAuthForm(mode formMode, returnState appState) authForm {
	f := authForm{mode: mode, returnState: returnState}
	if mode == formRegister {
		f.labels = []string{fieldUsername, fieldEmail, fieldPassword}
	} else {
		f.labels = []string{fieldUsername, fieldPassword}
	}
	for _, label := range f.labels {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = strings.ToLower(label)
		in.CharLimit = 128
		if label == fieldPassword {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		f.inputs = append(f.inputs, in)
	}
	return f
}

// focusField moves focus with wrap-around.
func (f *authForm) focusField(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = (i%len(f.inputs) + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *authForm) update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f authForm) value(label string) string {
	for i, l := range f.labels {
		if l != label {
			continue
		}
		if label == fieldPassword {
			return f.inputs[i].Value()
		}
		return strings.TrimSpace(f.inputs[i].Value())
	}
	return ""
}

func (f *authForm) setValue(label string, value string) {
	for i, l := range f.labels {
		if l == label {
			f.inputs[i].SetValue(value)
		}
	}
}

func (f authForm) view() string {
	title := "Log in"
	if f.mode == formRegister {
		title = "Create account"
	}
	labelStyle := lipgloss.NewStyle().Width(10)
	focusedLabel := labelStyle.Foreground(lipgloss.Color("5")).Bold(true)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")
	for i, label := range f.labels {
		style := labelStyle
		if i == f.focus {
			style = focusedLabel
		}
		b.WriteString(style.Render(label))
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(f.err))
		b.WriteString("\n")
	}
	if f.mode == formRegister {
		b.WriteString("\n" + hint("Username needs 3+ characters, password 6+."))
	}

	panel := lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63"))
	return panel.Render(strings.TrimRight(b.String(), "\n"))
}

func (m appModel) openForm(mode formMode) (appModel, tea.Cmd, bool) {
	m.form = newAuthForm(mode, m.state)
	m.state = formState(mode)
	m.clearNotice()
	return m, m.form.focusField(0), true
}

func formState(mode formMode) appState {
	if mode == formRegister {
		return stateRegister
	}
	return stateLogin
}

func (m appModel) handleFormKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true
	case "esc":
		m.state = m.form.returnState
		return m, nil, true
	case "tab", "down":
		return m, m.form.focusField(m.form.focus + 1), true
	case "shift+tab", "up":
		return m, m.form.focusField(m.form.focus - 1), true
	case "enter":
		if m.form.focus < len(m.form.inputs)-1 {
			return m, m.form.focusField(m.form.focus + 1), true
		}
		return m.submitForm()
	}
	return m, nil, false
}

func (m appModel) submitForm() (appModel, tea.Cmd, bool) {
	m.form.err = ""
	m.state = stateAuthenticating
	if m.form.mode == formRegister {
		payload := model.RegisterPayload{
			Username: m.form.value(fieldUsername),
			Email:    m.form.value(fieldEmail),
			Password: m.form.value(fieldPassword),
		}
		return m, tea.Batch(m.registerCmd(payload), m.spinner.Tick), true
	}
	payload := model.LoginPayload{
		Username: m.form.value(fieldUsername),
		Password: m.form.value(fieldPassword),
	}
	return m, tea.Batch(m.loginCmd(payload), m.spinner.Tick), true
}

func (m appModel) loginCmd(payload model.LoginPayload) tea.Cmd {
	return func() tea.Msg {
		token, err := m.sessions.Login(context.Background(), payload)
		msg := authMsg{mode: formLogin, username: payload.Username, err: err}
		if token.User != nil {
			msg.user = *token.User
		}
		return msg
	}
}

func (m appModel) registerCmd(payload model.RegisterPayload) tea.Cmd {
	return func() tea.Msg {
		user, err := m.sessions.Register(context.Background(), payload)
		return authMsg{mode: formRegister, user: user, username: payload.Username, err: err}
	}
}

func (m appModel) applyAuth(msg authMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.form.err = displayError(msg.err)
		m.state = formState(m.form.mode)
		return m, m.form.focusField(m.form.focus)
	}
	if msg.mode == formRegister {
		m.form = newAuthForm(formLogin, m.form.returnState)
		m.form.setValue(fieldUsername, msg.username)
		m.state = stateLogin
		m.setNotice("Account created. Log in to continue.", false)
		return m, m.form.focusField(1)
	}
	m.state = m.form.returnState
	name := msg.user.Username
	if name == "" {
		name = msg.username
	}
	m.setNotice(fmt.Sprintf("Logged in as %s.", name), false)
	return m, nil
}
