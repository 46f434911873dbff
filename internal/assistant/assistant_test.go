package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kiosk/internal/dialog"
	"kiosk/internal/models"
	"kiosk/internal/presenter"
	"kiosk/internal/session"
	"kiosk/internal/speech"
)

// MockDesk is a mock implementation of the order desk
type MockDesk struct {
	mock.Mock
}

func (m *MockDesk) AnalyzeOrder(ctx context.Context, text string) (models.AnalyzeResponse, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.AnalyzeResponse), args.Error(1)
}

func (m *MockDesk) ConfirmOrder(ctx context.Context, key string, lines []models.OrderLine) (models.ConfirmResponse, error) {
	args := m.Called(ctx, key, lines)
	return args.Get(0).(models.ConfirmResponse), args.Error(1)
}

func (m *MockDesk) AnalyzeChat(ctx context.Context, text string) (models.ChatResponse, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.ChatResponse), args.Error(1)
}

var standardPearl = models.OrderLine{
	DrinkName: "珍珠奶茶", Size: models.SizeStandard, Sugar: models.SugarStandard, Ice: models.IceStandard, Quantity: 1,
}

type fixture struct {
	desk       *MockDesk
	sess       *session.Session
	transcript *presenter.Transcript
	assistant  *Assistant
}

func newFixture(t *testing.T, speaker *speech.Speaker) *fixture {
	t.Helper()
	desk := new(MockDesk)
	sess := session.New(desk)
	transcript := &presenter.Transcript{}
	view := presenter.New(sess, transcript)
	t.Cleanup(view.Close)
	return &fixture{
		desk:       desk,
		sess:       sess,
		transcript: transcript,
		assistant:  New(sess, dialog.NewRouter(nil), desk, view, speaker),
	}
}

// confirming drives the fixture to a pending 珍珠奶茶 draft
func (f *fixture) confirming(t *testing.T) {
	t.Helper()
	f.desk.On("AnalyzeOrder", mock.Anything, "一杯珍珠奶茶").
		Return(models.AnalyzeResponse{Status: models.StatusSuccess, OrderDetails: []models.OrderLine{{DrinkName: "珍珠奶茶"}}}, nil).Once()
	action := f.assistant.HandleText(context.Background(), "珍珠奶茶")
	require.Equal(t, dialog.ActionAnalyzeOrder, action.Kind)
	require.Equal(t, session.StateConfirming, f.sess.State())
}

func (f *fixture) lastAssistant() string {
	texts := f.transcript.Texts(presenter.RoleAssistant)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestBareDrinkNameDraftsOneStandardCup(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)

	assert.Equal(t, models.Draft{standardPearl}, f.sess.Snapshot().Draft)
	assert.Equal(t, "我幫您確認一下訂單：珍珠奶茶\n\n請問確認訂購嗎？", f.lastAssistant())
	assert.Equal(t, presenter.Controls{Visible: true, Enabled: true}, f.transcript.Controls())
	assert.Equal(t, []string{"珍珠奶茶"}, f.transcript.Texts(presenter.RoleUser))
}

func TestAffirmativeReplyConfirmsDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)
	f.desk.On("ConfirmOrder", mock.Anything, mock.Anything, []models.OrderLine{standardPearl}).
		Return(models.ConfirmResponse{Status: models.StatusSuccess, OrderNumber: "A12"}, nil).Once()

	action := f.assistant.HandleText(context.Background(), "好的")
	assert.Equal(t, dialog.ActionConfirmOrder, action.Kind)

	snap := f.sess.Snapshot()
	assert.Equal(t, session.StateConfirmed, snap.State)
	assert.Equal(t, "A12", snap.OrderNumber)
	assert.Contains(t, f.lastAssistant(), "A12")
	assert.Equal(t, presenter.Controls{}, f.transcript.Controls())
	f.desk.AssertExpectations(t)
}

func TestNegativeReplyCancelsDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)

	action := f.assistant.HandleText(context.Background(), "算了不要了")
	assert.Equal(t, dialog.ActionCancelOrder, action.Kind)
	assert.Equal(t, session.StateIdle, f.sess.State())
	assert.Empty(t, f.sess.Snapshot().Draft)
	assert.Equal(t, session.MsgCancelled, f.lastAssistant())
	f.desk.AssertNotCalled(t, "ConfirmOrder", mock.Anything, mock.Anything, mock.Anything)
}

// an unclear answer keeps the draft and asks again
func TestUnclearReplyKeepsDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)

	action := f.assistant.HandleText(context.Background(), "嗯…好像不太對")
	assert.Equal(t, dialog.ActionReprompt, action.Kind)
	assert.Equal(t, session.StateConfirming, f.sess.State())
	assert.Equal(t, session.MsgReprompt, f.lastAssistant())
	assert.Equal(t, presenter.Controls{Visible: true, Enabled: true}, f.transcript.Controls())
}

func TestReadyEventAnnouncesPickup(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)
	f.desk.On("ConfirmOrder", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ConfirmResponse{Status: models.StatusSuccess, OrderNumber: "A12"}, nil).Once()
	f.assistant.HandleButton(context.Background(), true)
	require.Equal(t, session.StateConfirmed, f.sess.State())

	assert.True(t, f.sess.ApplyStatusEvent(models.StatusEvent{OrderNumber: "A12", Status: models.OrderStatusReady}))
	assert.Equal(t, 0, f.sess.Snapshot().WaitingMinutes)
	assert.Equal(t, "您的訂單 A12 已完成，請前往櫃檯取餐。", f.lastAssistant())
}

func TestAnalysisFailureInvitesRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.desk.On("AnalyzeOrder", mock.Anything, mock.Anything).Return(models.AnalyzeResponse{}, errors.New("timeout"))

	f.assistant.HandleText(context.Background(), "我要一杯紅茶")
	assert.Equal(t, session.StateIdle, f.sess.State())
	assert.Equal(t, session.MsgAnalysisError, f.lastAssistant())
}

func TestConfirmFailureInvitesRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)
	f.desk.On("ConfirmOrder", mock.Anything, mock.Anything, mock.Anything).Return(models.ConfirmResponse{}, errors.New("refused")).Once()

	f.assistant.HandleButton(context.Background(), true)
	assert.Equal(t, session.StateConfirming, f.sess.State())
	assert.Equal(t, session.MsgConfirmError, f.lastAssistant())
	assert.Equal(t, []string{"珍珠奶茶", "確認訂單"}, f.transcript.Texts(presenter.RoleUser))
}

func TestCancelButton(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)

	f.assistant.HandleButton(context.Background(), false)
	assert.Equal(t, session.StateIdle, f.sess.State())
	assert.Equal(t, session.MsgCancelled, f.lastAssistant())
}

func TestButtonOutsideConfirmingIsSilent(t *testing.T) {
	f := newFixture(t, nil)

	f.assistant.HandleButton(context.Background(), true)
	assert.Empty(t, f.transcript.Texts(presenter.RoleAssistant))
}

func TestChitchat(t *testing.T) {
	f := newFixture(t, nil)
	f.desk.On("AnalyzeChat", mock.Anything, "你好").Return(models.ChatResponse{Status: models.StatusSuccess, Reply: "您好！想喝點什麼？"}, nil)
	f.desk.On("AnalyzeChat", mock.Anything, "嗨").Return(models.ChatResponse{}, nil)
	f.desk.On("AnalyzeChat", mock.Anything, "在嗎").Return(models.ChatResponse{}, errors.New("down"))

	f.assistant.HandleText(context.Background(), "你好")
	assert.Equal(t, "您好！想喝點什麼？", f.lastAssistant())

	f.assistant.HandleText(context.Background(), "嗨")
	assert.Equal(t, MsgChatFallback, f.lastAssistant())

	f.assistant.HandleText(context.Background(), "在嗎")
	assert.Equal(t, MsgChatError, f.lastAssistant())
	assert.Equal(t, session.StateIdle, f.sess.State())
}

func TestChitchatAdoptsOrderLines(t *testing.T) {
	f := newFixture(t, nil)
	f.desk.On("AnalyzeChat", mock.Anything, mock.Anything).Return(models.ChatResponse{
		Status:       models.StatusSuccess,
		Reply:        "好的，幫您準備",
		IsOrder:      true,
		OrderDetails: []models.OrderLine{{DrinkName: "拿鐵咖啡", Ice: "熱"}},
	}, nil)

	f.assistant.HandleText(context.Background(), "老樣子")
	assert.Equal(t, session.StateConfirming, f.sess.State())
	assert.Equal(t, models.IceHot, f.sess.Snapshot().Draft[0].Ice)
	assert.Contains(t, f.lastAssistant(), "熱拿鐵咖啡")
}

func TestNewOrderAfterConfirmationResets(t *testing.T) {
	f := newFixture(t, nil)
	f.confirming(t)
	f.desk.On("ConfirmOrder", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ConfirmResponse{Status: models.StatusSuccess, OrderNumber: "A12"}, nil).Once()
	f.assistant.HandleText(context.Background(), "確認")
	require.Equal(t, session.StateConfirmed, f.sess.State())

	f.confirming(t)
	assert.Empty(t, f.sess.Snapshot().OrderNumber)
}

func TestHandleVoice(t *testing.T) {
	f := newFixture(t, nil)
	f.desk.On("AnalyzeOrder", mock.Anything, "一杯紅茶").
		Return(models.AnalyzeResponse{Status: models.StatusSuccess, OrderDetails: []models.OrderLine{{DrinkName: "紅茶"}}}, nil)

	listener := speech.NewListener(speech.RecognizerFunc(func(context.Context) (string, error) { return "紅茶", nil }))
	action, ok := f.assistant.HandleVoice(context.Background(), listener)
	require.True(t, ok)
	assert.Equal(t, dialog.ActionAnalyzeOrder, action.Kind)
	assert.Equal(t, session.StateConfirming, f.sess.State())
}

func TestHandleVoiceDegradesToText(t *testing.T) {
	f := newFixture(t, nil)

	_, ok := f.assistant.HandleVoice(context.Background(), speech.NewListener(nil))
	assert.False(t, ok)
	assert.Equal(t, "語音識別出錯，請嘗試使用文字輸入。", f.lastAssistant())

	silent := speech.NewListener(speech.RecognizerFunc(func(context.Context) (string, error) { return "", nil }))
	_, ok = f.assistant.HandleVoice(context.Background(), silent)
	assert.False(t, ok)
	assert.Equal(t, "我沒有聽到您的語音，請再試一次。", f.lastAssistant())
	assert.Equal(t, session.StateIdle, f.sess.State())
}

type spokenLog struct {
	mu   sync.Mutex
	text []string
}

func (s *spokenLog) Play(_ context.Context, audio speech.AudioHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = append(s.text, audio.URL)
	return nil
}

func (s *spokenLog) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.text...)
}

func TestAssistantMessagesAreSpoken(t *testing.T) {
	played := &spokenLog{}
	synth := speech.SynthesizerFunc(func(_ context.Context, text string) (speech.AudioHandle, error) {
		return speech.AudioHandle{URL: text}, nil
	})
	speaker := speech.NewSpeaker(synth, played, speech.WithMode(speech.ModeQueue))
	defer speaker.Close()

	f := newFixture(t, speaker)
	f.desk.On("AnalyzeChat", mock.Anything, mock.Anything).Return(models.ChatResponse{Reply: "歡迎光臨"}, nil)
	f.assistant.HandleText(context.Background(), "你好")

	require.Eventually(t, func() bool { return len(played.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"歡迎光臨"}, played.get())
}
