package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kiosk/internal/dialog"
	"kiosk/internal/presenter"
	"kiosk/internal/session"
)

const (
	greeting    = "歡迎光臨！請問今天想喝點什麼？"
	maxMessages = 200
)

type screen int

const (
	screenChat screen = iota
	screenOrders
)

// sender is the part of tea.Program the display sink needs
type sender interface {
	Send(msg tea.Msg)
}

// programSink forwards presenter output into the bubbletea event loop
type programSink struct {
	p sender
}

func (s *programSink) Render(m presenter.Message) { s.p.Send(renderMsg{message: m}) }

func (s *programSink) SetControls(c presenter.Controls) { s.p.Send(controlsMsg{controls: c}) }

// Custom message types for the tea.Model
type renderMsg struct {
	message presenter.Message
}

type controlsMsg struct {
	controls presenter.Controls
}

type handledMsg struct {
	action dialog.Action
	ok     bool
}

// Model defines the application state
type Model struct {
	ctx context.Context
	k   *kiosk

	input    textinput.Model
	spinner  spinner.Model
	messages []presenter.Message
	controls presenter.Controls
	busy     bool
	listen   bool
	screen   screen
	orders   ordersModel
	width    int
}

func newModel(ctx context.Context, k *kiosk) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "請輸入您想點的飲料..."
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	return Model{
		ctx:     ctx,
		k:       k,
		input:   ti,
		spinner: s,
		orders:  newOrdersModel(),
		screen:  screenChat,
	}
}

// Init shows the greeting
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.greet())
}

func (m Model) greet() tea.Cmd {
	return func() tea.Msg {
		m.k.view.Assistant(greeting)
		return nil
	}
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-10)
		return m, nil
	case renderMsg:
		m.messages = append(m.messages, msg.message)
		if len(m.messages) > maxMessages {
			m.messages = m.messages[len(m.messages)-maxMessages:]
		}
		m.controls = msg.message.Controls
		return m, nil
	case controlsMsg:
		m.controls = msg.controls
		return m, nil
	case handledMsg:
		m.busy = false
		m.listen = false
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case ordersMsg, tokenMsg, errorMsg, confirmMsg:
		var cmd tea.Cmd
		m.orders, cmd = m.orders.update(m.ctx, m.k, msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == screenOrders {
			return m.updateOrders(msg)
		}
		return m.updateChat(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.screen = screenOrders
		return m, m.orders.refresh(m.ctx, m.k)
	case "esc":
		m.k.speaker.Stop()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.input.SetValue("")
		m.busy = true
		return m, tea.Batch(m.handleText(text), m.spinner.Tick)
	case "ctrl+y", "ctrl+n":
		if !m.controls.Visible || !m.controls.Enabled || m.busy {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.handleButton(msg.String() == "ctrl+y"), m.spinner.Tick)
	case "ctrl+v":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.listen = true
		return m, tea.Batch(m.handleVoice(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleText(text string) tea.Cmd {
	return func() tea.Msg {
		action := m.k.assistant.HandleText(m.ctx, text)
		return handledMsg{action: action, ok: true}
	}
}

func (m Model) handleButton(confirm bool) tea.Cmd {
	return func() tea.Msg {
		m.k.assistant.HandleButton(m.ctx, confirm)
		return handledMsg{ok: true}
	}
}

func (m Model) handleVoice() tea.Cmd {
	return func() tea.Msg {
		action, ok := m.k.assistant.HandleVoice(m.ctx, m.k.listener)
		return handledMsg{action: action, ok: ok}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.screen == screenOrders {
		return docStyle.Render(m.orders.view())
	}
	return docStyle.Render(m.chatView())
}

func (m Model) chatView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("飲料點餐機") + "  " + m.orderBadge() + "\n\n")

	for _, msg := range m.messages {
		b.WriteString(renderBubble(msg) + "\n")
	}
	b.WriteString("\n")

	if m.busy {
		label := "處理中..."
		if m.listen {
			label = "聆聽中..."
		}
		b.WriteString(m.spinner.View() + " " + label + "\n")
	}
	b.WriteString(m.input.View() + "\n\n")
	b.WriteString(m.buttons() + "\n")
	b.WriteString(disabledStyle.Render("enter 送出 • ctrl+v 語音 • esc 停止朗讀 • tab 訂單管理 • ctrl+c 離開"))
	return b.String()
}

func renderBubble(msg presenter.Message) string {
	switch msg.Role {
	case presenter.RoleUser:
		return userStyle.Render("您：") + msg.Text
	case presenter.RoleSystem:
		return systemStyle.Render(msg.Text)
	default:
		return assistantStyle.Render("店員：") + msg.Text
	}
}

func (m Model) buttons() string {
	if !m.controls.Visible {
		return ""
	}
	if !m.controls.Enabled {
		return disabledStyle.Render("[ctrl+y 確認訂單]  [ctrl+n 取消訂單]")
	}
	return successStyle.Render("ctrl+y 確認訂單") + "  " + errorStyle.Render("ctrl+n 取消訂單")
}

func (m Model) orderBadge() string {
	snap := m.k.sess.Snapshot()
	switch snap.State {
	case session.StateConfirmed:
		if snap.WaitingMinutes > 0 {
			return infoStyle.Render(fmt.Sprintf("訂單 %s 約 %d 分鐘", snap.OrderNumber, snap.WaitingMinutes))
		}
		return successStyle.Render(fmt.Sprintf("訂單 %s 可取餐", snap.OrderNumber))
	case session.StateSubmitting:
		return infoStyle.Render("送出中")
	default:
		return ""
	}
}
