package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/internal/config"
	"kiosk/internal/logging"
	"kiosk/internal/models"
	"kiosk/internal/presenter"
	"kiosk/internal/session"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeSender) drain() []tea.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.msgs
	f.msgs = nil
	return out
}

func newDesk(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze_text", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.AnalyzeResponse{
			Status:       models.StatusSuccess,
			OrderDetails: []models.OrderLine{{DrinkName: "紅茶", Quantity: 1}},
		})
	})
	mux.HandleFunc("/confirm_order", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ConfirmResponse{
			Status:          models.StatusSuccess,
			Message:         "成功建立 1/1 筆訂單",
			OrderNumber:     "A1",
			FullOrderNumber: "A1",
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestModel(t *testing.T) (Model, *fakeSender) {
	ts := newDesk(t)
	cfg := config.Default()
	cfg.Client.BackendURL = ts.URL

	ctx := context.Background()
	k, err := newKiosk(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(k.Close)

	sender := &fakeSender{}
	k.view.AddSink(&programSink{p: sender})
	return newModel(ctx, k), sender
}

func feed(m Model, msgs []tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestChatOrderAndConfirm(t *testing.T) {
	m, sender := newTestModel(t)

	m.input.SetValue("一杯紅茶")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	done := m.handleText("一杯紅茶")()
	m = feed(m, sender.drain())
	m = feed(m, []tea.Msg{done})

	assert.False(t, m.busy)
	require.NotEmpty(t, m.messages)
	assert.Equal(t, presenter.RoleUser, m.messages[0].Role)
	assert.Equal(t, "一杯紅茶", m.messages[0].Text)
	assert.Equal(t, presenter.Controls{Visible: true, Enabled: true}, m.controls)
	assert.Equal(t, session.StateConfirming, m.k.sess.State())
	assert.Contains(t, m.View(), "確認訂單")

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	done = m.handleButton(true)()
	m = feed(m, sender.drain())
	m = feed(m, []tea.Msg{done})

	assert.Equal(t, session.StateConfirmed, m.k.sess.State())
	assert.False(t, m.controls.Visible)
	assert.Contains(t, m.orderBadge(), "A1")
}

func TestButtonsIgnoredWhenHidden(t *testing.T) {
	m, _ := newTestModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
}

func TestVoiceWithoutRecognizer(t *testing.T) {
	m, sender := newTestModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	m = next.(Model)
	assert.True(t, m.listen)

	done := m.handleVoice()()
	m = feed(m, sender.drain())
	m = feed(m, []tea.Msg{done})

	assert.False(t, m.busy)
	assert.False(t, done.(handledMsg).ok)
	require.NotEmpty(t, m.messages)
	assert.Equal(t, presenter.RoleAssistant, m.messages[len(m.messages)-1].Role)
}

func TestConvertOrdersToRows(t *testing.T) {
	rows := convertOrdersToRows([]models.OrderView{
		{OrderNumber: "B3-2", DrinkName: "綠茶", Size: "大杯", Sugar: "半糖", Ice: "少冰", Status: "ready"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "B3-2", rows[0][0])
	assert.Equal(t, "可取餐", rows[0][5])
}
