package session

import (
	"fmt"

	"kiosk/internal/models"
)

// Customer-facing texts
const (
	MsgEmptyOrder      = "請輸入訂單內容"
	MsgAnalysisFailed  = "抱歉，我無法理解您的訂單，請再說一次。"
	MsgAnalysisError   = "訂單處理出錯，請稍後再試。"
	MsgConfirmFailed   = "訂單確認失敗，請稍後再試。"
	MsgConfirmError    = "處理訂單請求時出現錯誤，請稍後再試。"
	MsgCancelled       = "訂單已取消，請問還需要其他飲料嗎？"
	MsgStillSubmitting = "訂單正在送出中，請稍候。"
	MsgReprompt        = "請明確告訴我是「確認」還是「取消」訂單。"
	MsgUnexpected      = "抱歉，系統發生問題，請稍後再試。"
)

// ConfirmPrompt is the read-back shown while a draft waits for confirmation
func ConfirmPrompt(d models.Draft) string {
	return fmt.Sprintf("我幫您確認一下訂單：%s\n\n請問確認訂購嗎？", models.FormatDraft(d))
}

// ConfirmedMessage is shown once the order desk accepted the order
func ConfirmedMessage(orderNumber string, waitingMinutes int) string {
	return fmt.Sprintf("訂單已確認！您的取餐號碼是 %s，預計等候 %d 分鐘，謝謝您的光臨。", orderNumber, waitingMinutes)
}

// StatusMessage describes a status change of the customer's order
func StatusMessage(status models.OrderStatus, orderNumber string, waitingMinutes int) string {
	switch status {
	case models.OrderStatusPending:
		return fmt.Sprintf("您的訂單 %s 已進入處理佇列，請稍候。", orderNumber)
	case models.OrderStatusPreparing:
		return fmt.Sprintf("您的訂單 %s 正在製作中，預計等候時間約 %d 分鐘。", orderNumber, waitingMinutes)
	case models.OrderStatusReady:
		return fmt.Sprintf("您的訂單 %s 已完成，請前往櫃檯取餐。", orderNumber)
	case models.OrderStatusCompleted:
		return fmt.Sprintf("您的訂單 %s 已完成，感謝您的光臨。", orderNumber)
	default:
		return fmt.Sprintf("您的訂單 %s 狀態已更新為: %s", orderNumber, status)
	}
}
