// Package dialog decides what a line of customer text should do to the order session.
package dialog

import (
	"strings"

	"kiosk/internal/models"
	"kiosk/internal/session"
)

// ActionKind identifies the next step for a piece of customer text
type ActionKind int

const (
	ActionChitchat ActionKind = iota
	ActionAnalyzeOrder
	ActionConfirmOrder
	ActionCancelOrder
	ActionReprompt
)

func (k ActionKind) String() string {
	switch k {
	case ActionAnalyzeOrder:
		return "analyze_order"
	case ActionConfirmOrder:
		return "confirm_order"
	case ActionCancelOrder:
		return "cancel_order"
	case ActionReprompt:
		return "reprompt"
	default:
		return "chitchat"
	}
}

// Action is the routing decision. Text carries the input for AnalyzeOrder and Chitchat.
type Action struct {
	Kind ActionKind
	Text string
}

var orderVerbs = []string{"要", "買", "點", "杯", "來一杯", "訂", "喝"}

var qualifiers = []string{
	"大杯", "中杯", "小杯",
	"全糖", "正常糖", "七分糖", "少糖", "半糖", "三分糖", "微糖", "無糖",
	"正常冰", "少冰", "微冰", "去冰", "常溫", "溫", "熱",
}

// Router routes customer text against the drink menu
type Router struct {
	menu *models.Menu
}

// Option configures a Router
type Option func(*Router)

// NewRouter creates a router. A nil menu uses the default drink list.
func NewRouter(menu *models.Menu, opts ...Option) *Router {
	if menu == nil {
		menu = models.DefaultMenu()
	}
	r := &Router{menu: menu}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decides the next action for text given the session state
func (r *Router) Route(text string, state session.State) Action {
	text = strings.TrimSpace(text)

	if state == session.StateConfirming {
		switch ClassifyReply(text) {
		case ReplyConfirm:
			return Action{Kind: ActionConfirmOrder}
		case ReplyCancel:
			return Action{Kind: ActionCancelOrder}
		default:
			return Action{Kind: ActionReprompt}
		}
	}

	if r.IsOrderIntent(text) {
		// a bare drink name is one standard cup
		if r.menu.IsDrink(text) {
			return Action{Kind: ActionAnalyzeOrder, Text: "一杯" + text}
		}
		return Action{Kind: ActionAnalyzeOrder, Text: text}
	}
	return Action{Kind: ActionChitchat, Text: text}
}

// IsOrderIntent reports whether text names a drink, or combines an order verb
// with a size, sugar or ice qualifier.
func (r *Router) IsOrderIntent(text string) bool {
	if text == "" {
		return false
	}
	if _, ok := r.menu.Find(text); ok {
		return true
	}
	return containsAny(text, orderVerbs) && containsAny(text, qualifiers)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
