package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"kiosk/internal/models"
)

type ordersMsg struct {
	orders []models.OrderView
}

type tokenMsg struct {
	token string
}

type errorMsg struct {
	err string
}

type confirmMsg struct {
	message string
}

// status keys on the orders screen
var statusKeys = map[string]models.OrderStatus{
	"p": models.OrderStatusPreparing,
	"r": models.OrderStatusReady,
	"c": models.OrderStatusCompleted,
	"x": models.OrderStatusCancelled,
}

// ordersModel is the staff view of open orders
type ordersModel struct {
	table   table.Model
	token   string
	orders  []models.OrderView
	error   string
	message string
}

func newOrdersModel() ordersModel {
	columns := []table.Column{
		{Title: "單號", Width: 8},
		{Title: "飲料", Width: 14},
		{Title: "大小", Width: 6},
		{Title: "甜度", Width: 8},
		{Title: "冰量", Width: 8},
		{Title: "狀態", Width: 10},
		{Title: "時間", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return ordersModel{table: t}
}

// refresh logs in when needed and reloads the order list
func (o ordersModel) refresh(ctx context.Context, k *kiosk) tea.Cmd {
	if o.token == "" {
		return login(ctx, k)
	}
	return fetchOrders(ctx, k, o.token)
}

func (o ordersModel) update(ctx context.Context, k *kiosk, msg tea.Msg) (ordersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tokenMsg:
		o.token = msg.token
		return o, fetchOrders(ctx, k, o.token)
	case ordersMsg:
		o.orders = msg.orders
		o.table.SetRows(convertOrdersToRows(msg.orders))
		o.error = ""
		return o, nil
	case errorMsg:
		o.error = msg.err
		o.message = ""
		return o, nil
	case confirmMsg:
		o.error = ""
		o.message = msg.message
		return o, fetchOrders(ctx, k, o.token)
	}
	return o, nil
}

func (m Model) updateOrders(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "esc", "tab":
		m.screen = screenChat
		return m, nil
	case "f5", "ctrl+r":
		return m, m.orders.refresh(m.ctx, m.k)
	case "p", "r", "c", "x":
		row := m.orders.table.SelectedRow()
		if row == nil || m.orders.token == "" {
			return m, nil
		}
		return m, updateStatus(m.ctx, m.k, m.orders.token, row[0], statusKeys[key])
	}

	var cmd tea.Cmd
	m.orders.table, cmd = m.orders.table.Update(msg)
	return m, cmd
}

func (o ordersModel) view() string {
	view := titleStyle.Render("訂單管理") + "\n\n" + o.table.View() + "\n"
	view += "\np 製作中 • r 可取餐 • c 已完成 • x 取消 • ctrl+r 重新整理 • esc 返回點餐\n"
	if o.message != "" {
		view += successStyle.Render(o.message) + "\n"
	}
	if o.error != "" {
		view += errorStyle.Render(o.error) + "\n"
	}
	return view
}

func login(ctx context.Context, k *kiosk) tea.Cmd {
	return func() tea.Msg {
		token, err := k.client.Login(ctx, k.adminUser, k.adminPassword)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("登入失敗: %v", err)}
		}
		return tokenMsg{token: token}
	}
}

func fetchOrders(ctx context.Context, k *kiosk, token string) tea.Cmd {
	return func() tea.Msg {
		orders, err := k.client.Orders(ctx, token, "")
		if err != nil {
			return errorMsg{err: fmt.Sprintf("無法取得訂單: %v", err)}
		}
		return ordersMsg{orders: orders}
	}
}

func updateStatus(ctx context.Context, k *kiosk, token, orderNumber string, status models.OrderStatus) tea.Cmd {
	return func() tea.Msg {
		if err := k.client.UpdateStatus(ctx, token, orderNumber, status); err != nil {
			return errorMsg{err: fmt.Sprintf("無法更新訂單 %s: %v", orderNumber, err)}
		}
		return confirmMsg{message: fmt.Sprintf("訂單 %s 已更新為 %s", orderNumber, statusLabel(status))}
	}
}

func statusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPending:
		return "待處理"
	case models.OrderStatusPreparing:
		return "製作中"
	case models.OrderStatusReady:
		return "可取餐"
	case models.OrderStatusCompleted:
		return "已完成"
	case models.OrderStatusCancelled:
		return "已取消"
	default:
		return string(s)
	}
}

// convertOrdersToRows converts listed orders to table rows
func convertOrdersToRows(orders []models.OrderView) []table.Row {
	rows := make([]table.Row, len(orders))
	for i, o := range orders {
		rows[i] = table.Row{
			o.OrderNumber,
			o.DrinkName,
			o.Size,
			o.Sugar,
			o.Ice,
			statusLabel(models.OrderStatus(o.Status)),
			o.OrderedAt.Local().Format("15:04"),
		}
	}
	return rows
}
