// Package assistant ties the order session, the dialog router, the chat
// endpoint, the display and the voice together into one kiosk conversation.
package assistant

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"kiosk/internal/dialog"
	"kiosk/internal/logging"
	"kiosk/internal/models"
	"kiosk/internal/presenter"
	"kiosk/internal/session"
	"kiosk/internal/speech"
)

// Chat replies shown when the chat endpoint has nothing useful to say
const (
	MsgProcessing   = "正在為您處理訂單，請稍候..."
	MsgChatFallback = "抱歉，我不太理解您的意思。請問您想點什麼飲料呢？"
	MsgChatError    = "抱歉，系統暫時遇到問題，請稍後再試。"
)

// ChatBackend answers small talk
type ChatBackend interface {
	AnalyzeChat(ctx context.Context, text string) (models.ChatResponse, error)
}

// Assistant runs one kiosk conversation
type Assistant struct {
	sess    *session.Session
	router  *dialog.Router
	chat    ChatBackend
	view    *presenter.Presenter
	speaker *speech.Speaker
	logger  logrus.FieldLogger
}

// Option configures an Assistant
type Option func(*Assistant)

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Assistant) { a.logger = l }
}

// New creates an assistant. speaker may be nil for a text-only kiosk; when it
// is set, every assistant message is also read aloud.
func New(sess *session.Session, router *dialog.Router, chat ChatBackend, view *presenter.Presenter, speaker *speech.Speaker, opts ...Option) *Assistant {
	a := &Assistant{
		sess:    sess,
		router:  router,
		chat:    chat,
		view:    view,
		speaker: speaker,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if speaker != nil && speaker.Available() {
		view.AddSink(&voiceSink{speaker: speaker, logger: a.logger})
	}
	return a
}

// HandleText processes one line typed or spoken by the customer and returns
// the action it was routed to.
func (a *Assistant) HandleText(ctx context.Context, text string) dialog.Action {
	a.view.User(text)

	action := a.router.Route(text, a.sess.State())
	a.logger.WithFields(logrus.Fields{
		"action": action.Kind.String(),
		"state":  a.sess.State(),
	}).Debug("routed customer text")

	switch action.Kind {
	case dialog.ActionAnalyzeOrder:
		a.analyze(ctx, action.Text)
	case dialog.ActionConfirmOrder:
		a.confirm(ctx)
	case dialog.ActionCancelOrder:
		a.cancel()
	case dialog.ActionReprompt:
		a.view.Assistant(session.MsgReprompt)
	default:
		a.chitchat(ctx, action.Text)
	}
	return action
}

// HandleButton processes a tap on the confirm or cancel control
func (a *Assistant) HandleButton(ctx context.Context, confirm bool) {
	if confirm {
		a.view.User("確認訂單")
		a.confirm(ctx)
		return
	}
	a.view.User("取消訂單")
	a.cancel()
}

// HandleVoice captures one utterance and handles it like typed text. Speech
// failures are shown as a hint to use the keyboard; ordering is never blocked.
func (a *Assistant) HandleVoice(ctx context.Context, listener *speech.Listener) (dialog.Action, bool) {
	if a.speaker != nil {
		a.speaker.Stop()
	}

	text, err := listener.Listen(ctx)
	if err != nil {
		if !errors.Is(err, speech.ErrListening) {
			a.view.Assistant(speech.UserMessage(err))
		}
		return dialog.Action{}, false
	}
	return a.HandleText(ctx, text), true
}

func (a *Assistant) analyze(ctx context.Context, text string) {
	if a.sess.State() == session.StateConfirmed {
		// a new order ends tracking of the confirmed one
		a.logger.WithField("order_number", a.sess.Snapshot().OrderNumber).Info("new order after confirmation, resetting session")
		a.sess.Reset()
	}

	a.view.Assistant(MsgProcessing)
	if _, err := a.sess.StartAnalysis(ctx, text); err != nil {
		a.report(err)
	}
}

func (a *Assistant) confirm(ctx context.Context) {
	if _, err := a.sess.Confirm(ctx); err != nil {
		a.report(err)
	}
}

func (a *Assistant) cancel() {
	msg, err := a.sess.Cancel()
	if err != nil {
		a.report(err)
		return
	}
	a.view.Assistant(msg)
}

func (a *Assistant) chitchat(ctx context.Context, text string) {
	resp, err := a.chat.AnalyzeChat(ctx, text)
	if err != nil {
		a.logger.WithError(err).Warn("chat request failed")
		a.view.Assistant(MsgChatError)
		return
	}

	reply := resp.Reply
	if reply == "" {
		reply = resp.Message
	}
	if reply == "" {
		reply = MsgChatFallback
	}
	a.view.Assistant(reply)

	if resp.IsOrder && len(resp.OrderDetails) > 0 {
		if _, err := a.sess.AdoptDraft(resp.OrderDetails); err != nil {
			a.logger.WithError(err).Info("order lines from chat not adopted")
		}
	}
}

// report shows the customer-facing text for err; busy and stale results stay silent
func (a *Assistant) report(err error) {
	a.logger.WithError(err).Debug("session operation failed")
	a.view.Assistant(session.UserMessage(err))
}

// voiceSink reads assistant messages aloud
type voiceSink struct {
	speaker *speech.Speaker
	logger  logrus.FieldLogger
}

func (v *voiceSink) Render(m presenter.Message) {
	if m.Role != presenter.RoleAssistant {
		return
	}
	if err := v.speaker.Say(m.Text); err != nil {
		v.logger.WithError(err).Debug("message not spoken")
	}
}

func (v *voiceSink) SetControls(presenter.Controls) {}
