// Package analyzer turns customer text into order lines and chat replies.
package analyzer

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"kiosk/internal/models"
)

// ErrUnrecognized means no drink on the menu was found in the text
var ErrUnrecognized = errors.New("無法識別飲料名稱，請重新點餐。")

// OrderAnalyzer extracts order lines from free text
type OrderAnalyzer interface {
	Analyze(ctx context.Context, text string) ([]models.OrderLine, error)
}

// checked in order, so longer labels come before labels they contain
var (
	sizeWords  = []string{"大杯", "中杯", "小杯"}
	sugarWords = []string{"正常糖", "七分糖", "三分糖", "全糖", "少糖", "半糖", "微糖", "無糖"}
	iceWords   = []string{"正常冰", "少冰", "微冰", "去冰", "常溫", "熱飲", "熱", "溫"}
)

var numerals = map[rune]int{
	'一': 1, '二': 2, '兩': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

var (
	digitsCups  = regexp.MustCompile(`(\d+)\s*杯`)
	numeralCups = regexp.MustCompile(`([一二兩三四五六七八九十]+)\s*杯`)
	separators = regexp.MustCompile(`[、，,；;]|還有|和|跟|再來`)
)

// KeywordAnalyzer finds drinks and options by matching menu names and option labels
type KeywordAnalyzer struct {
	menu     *models.Menu
	defaults models.Defaults
}

// NewKeywordAnalyzer creates an analyzer for menu. A nil menu uses the default drink list.
func NewKeywordAnalyzer(menu *models.Menu, defaults models.Defaults) *KeywordAnalyzer {
	if menu == nil {
		menu = models.DefaultMenu()
	}
	return &KeywordAnalyzer{menu: menu, defaults: defaults}
}

// Analyze returns one line per drink mentioned. Options are read from the
// part of the text that names the drink.
func (k *KeywordAnalyzer) Analyze(_ context.Context, text string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	for _, part := range separators.Split(text, -1) {
		if line, ok := k.parse(part); ok {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, ErrUnrecognized
	}
	return lines, nil
}

// IsSimpleOrder reports whether text is just a drink name, optionally prefixed with 一杯
func (k *KeywordAnalyzer) IsSimpleOrder(text string) bool {
	text = strings.TrimSpace(text)
	return k.menu.IsDrink(strings.TrimPrefix(text, "一杯"))
}

func (k *KeywordAnalyzer) parse(text string) (models.OrderLine, bool) {
	drink, ok := k.menu.Find(text)
	if !ok {
		return models.OrderLine{}, false
	}
	line := models.OrderLine{
		DrinkName: drink,
		Size:      models.Size(firstIn(text, sizeWords)),
		Sugar:     models.Sugar(firstIn(text, sugarWords)),
		Ice:       models.Ice(firstIn(text, iceWords)),
		Quantity:  quantity(text),
	}
	return line.Normalize(k.defaults), true
}

func firstIn(text string, words []string) string {
	for _, w := range words {
		if strings.Contains(text, w) {
			return w
		}
	}
	return ""
}

func quantity(text string) int {
	if m := digitsCups.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	for _, m := range numeralCups.FindAllStringSubmatch(text, -1) {
		if n, ok := parseNumeral(m[1]); ok {
			return n
		}
	}
	return 1
}

// parseNumeral reads a chinese number below one hundred: 三, 十一, 二十, 二十五
func parseNumeral(s string) (int, bool) {
	tens, units, found := strings.Cut(s, "十")
	if !found {
		return digit(s)
	}
	n := 10
	if tens != "" {
		d, ok := digit(tens)
		if !ok {
			return 0, false
		}
		n = d * 10
	}
	if units != "" {
		d, ok := digit(units)
		if !ok {
			return 0, false
		}
		n += d
	}
	return n, true
}

func digit(s string) (int, bool) {
	r := []rune(s)
	if len(r) != 1 {
		return 0, false
	}
	n, ok := numerals[r[0]]
	return n, ok
}
