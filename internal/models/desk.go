package models

import "time"

// Wire contracts between the kiosk and the order desk.

// Response status values used by the order desk
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AnalyzeRequest is the body of /analyze_text and /analyze_chat
type AnalyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

// AnalyzeResponse is the reply of /analyze_text
type AnalyzeResponse struct {
	Status       string      `json:"status"`
	OrderDetails []OrderLine `json:"order_details,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// OK reports whether the analysis produced at least one line
func (r AnalyzeResponse) OK() bool {
	return r.Status == StatusSuccess && len(r.OrderDetails) > 0
}

// ChatResponse is the reply of /analyze_chat
type ChatResponse struct {
	Status       string      `json:"status"`
	Reply        string      `json:"reply"`
	Intent       string      `json:"intent"`
	Confidence   float64     `json:"confidence"`
	IsOrder      bool        `json:"is_order_intent"`
	OrderDetails []OrderLine `json:"order_details,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// ConfirmRequest is the body of /confirm_order
type ConfirmRequest struct {
	OrderDetails []OrderLine `json:"order_details" binding:"required,min=1,dive"`
}

// ConfirmResponse is the reply of /confirm_order
type ConfirmResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	OrderNumber     string `json:"order_number,omitempty"`
	FullOrderNumber string `json:"full_order_number,omitempty"`
}

// OK reports whether the order desk accepted the order
func (r ConfirmResponse) OK() bool {
	return r.Status == StatusSuccess && r.OrderNumber != ""
}

// SpeechRequest is the body of /api/get_speech
type SpeechRequest struct {
	Text  string  `json:"text" binding:"required"`
	Style string  `json:"style"`
	Rate  float64 `json:"rate"`
}

// SpeechResponse is the reply of /api/get_speech
type SpeechResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audio_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LoginRequest is the body of /admin/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the admin token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// StatusChangeRequest is the body of PUT /admin/api/orders/:number/status
type StatusChangeRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderView is one stored cup as listed on the admin side
type OrderView struct {
	OrderNumber string     `json:"order_number"`
	DrinkName   string     `json:"drink_name"`
	Size        string     `json:"size"`
	Sugar       string     `json:"sugar"`
	Ice         string     `json:"ice"`
	Status      string     `json:"status"`
	OrderedAt   time.Time  `json:"ordered_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// View converts a stored record for the admin list
func (o Order) View() OrderView {
	return OrderView{
		OrderNumber: o.OrderNumber,
		DrinkName:   o.DrinkName,
		Size:        o.Size,
		Sugar:       o.Sugar,
		Ice:         o.Ice,
		Status:      o.Status,
		OrderedAt:   o.OrderedAt,
		CompletedAt: o.CompletedAt,
	}
}
