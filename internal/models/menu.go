package models

import (
	"sort"
	"strings"
)

// MenuItem represents a drink on the menu
type MenuItem struct {
	Name      string  `json:"name" yaml:"name"`
	Category  string  `json:"category" yaml:"category"`
	Price     float64 `json:"price" yaml:"price"`
	Available bool    `json:"available" yaml:"available"`
}

// MenuCategory represents the category of a menu item
type MenuCategory string

const (
	MenuCategoryTea     MenuCategory = "tea"
	MenuCategoryMilkTea MenuCategory = "milk_tea"
	MenuCategoryCoffee  MenuCategory = "coffee"
	MenuCategoryOther   MenuCategory = "other"
)

// Menu is the drink catalog used to recognise orders
type Menu struct {
	items  []MenuItem
	byName []string // longest first so 烏龍奶茶 wins over 奶茶
}

// NewMenu builds a menu from items
func NewMenu(items []MenuItem) *Menu {
	m := &Menu{items: append([]MenuItem(nil), items...)}
	for _, item := range m.items {
		m.byName = append(m.byName, item.Name)
	}
	sort.SliceStable(m.byName, func(i, j int) bool {
		return len([]rune(m.byName[i])) > len([]rune(m.byName[j]))
	})
	return m
}

// Items returns a copy of the menu items
func (m *Menu) Items() []MenuItem {
	return append([]MenuItem(nil), m.items...)
}

// Names returns drink names, longest first
func (m *Menu) Names() []string {
	return append([]string(nil), m.byName...)
}

// Find returns the first (longest) drink name contained in text
func (m *Menu) Find(text string) (string, bool) {
	for _, name := range m.byName {
		if strings.Contains(text, name) {
			return name, true
		}
	}
	return "", false
}

// IsDrink reports whether text is exactly a drink name
func (m *Menu) IsDrink(text string) bool {
	text = strings.TrimSpace(text)
	for _, name := range m.byName {
		if name == text {
			return true
		}
	}
	return false
}

// DefaultMenu is the shop's drink list
func DefaultMenu() *Menu {
	tea := []string{"紅茶", "綠茶", "青茶", "烏龍茶", "冬瓜茶", "檸檬茶", "蜂蜜檸檬", "梅子綠茶", "冬瓜檸檬", "普洱茶"}
	milkTea := []string{"珍珠奶茶", "奶茶", "鮮奶茶", "奶綠", "烏龍奶茶", "焦糖奶茶", "波霸奶茶", "椰果奶茶", "蜂蜜奶茶", "仙草奶茶", "布丁奶茶"}
	coffee := []string{"美式咖啡", "卡布奇諾", "拿鐵咖啡", "摩卡咖啡", "烏龍拿鐵", "紅茶咖啡", "牛奶咖啡"}

	var items []MenuItem
	add := func(names []string, cat MenuCategory, price float64) {
		for _, n := range names {
			items = append(items, MenuItem{Name: n, Category: string(cat), Price: price, Available: true})
		}
	}
	add(tea, MenuCategoryTea, 30)
	add(milkTea, MenuCategoryMilkTea, 50)
	add(coffee, MenuCategoryCoffee, 65)
	add([]string{"巧克力牛奶"}, MenuCategoryOther, 55)
	return NewMenu(items)
}
