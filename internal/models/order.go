package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
)

// Size is the cup size of an order line
type Size string

// Sugar is the sweetness level of an order line
type Sugar string

// Ice is the ice/temperature option of an order line
type Ice string

// Standard is the house default for any option the customer did not name.
const Standard = "standard"

const (
	SizeSmall    Size = "small"
	SizeMedium   Size = "medium"
	SizeLarge    Size = "large"
	SizeStandard Size = Standard
)

const (
	SugarFull     Sugar = "full"
	SugarSeventy  Sugar = "seventy"
	SugarHalf     Sugar = "half"
	SugarThirty   Sugar = "thirty"
	SugarLight    Sugar = "light"
	SugarFree     Sugar = "free"
	SugarStandard Sugar = Standard
)

const (
	IceIced     Ice = "iced"
	IceLess     Ice = "less"
	IceLight    Ice = "light"
	IceNone     Ice = "no_ice"
	IceRoomTemp Ice = "room_temp"
	IceHot      Ice = "hot"
	IceStandard Ice = Standard
)

// OrderLine is one drink in a draft order
type OrderLine struct {
	DrinkName string `json:"drink_name" validate:"required"`
	Size      Size   `json:"size" validate:"oneof=small medium large standard"`
	Sugar     Sugar  `json:"sugar" validate:"oneof=full seventy half thirty light free standard"`
	Ice       Ice    `json:"ice" validate:"oneof=iced less light no_ice room_temp hot standard"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// Draft is an unconfirmed order held by a session
type Draft []OrderLine

// Defaults holds the values used for options the analyzer left empty
type Defaults struct {
	Size  Size  `yaml:"size"`
	Sugar Sugar `yaml:"sugar"`
	Ice   Ice   `yaml:"ice"`
}

// StandardDefaults fills every unspecified option with the house standard
func StandardDefaults() Defaults {
	return Defaults{Size: SizeStandard, Sugar: SugarStandard, Ice: IceStandard}
}

var validate = validator.New()

var sizeLabels = map[string]Size{
	"大杯": SizeLarge,
	"中杯": SizeMedium,
	"小杯": SizeSmall,
}

var sugarLabels = map[string]Sugar{
	"全糖":  SugarFull,
	"正常糖": SugarFull,
	"七分糖": SugarSeventy,
	"少糖":  SugarSeventy,
	"半糖":  SugarHalf,
	"三分糖": SugarThirty,
	"微糖":  SugarLight,
	"無糖":  SugarFree,
}

var iceLabels = map[string]Ice{
	"正常冰": IceIced,
	"少冰":  IceLess,
	"微冰":  IceLight,
	"去冰":  IceNone,
	"常溫":  IceRoomTemp,
	"溫":   IceRoomTemp,
	"熱":   IceHot,
	"熱飲":  IceHot,
}

// Normalize returns a copy of the line with labels mapped to enum values,
// empty options replaced by the defaults and quantity clamped to at least one.
func (l OrderLine) Normalize(d Defaults) OrderLine {
	l.DrinkName = strings.TrimSpace(l.DrinkName)

	size := Size(strings.TrimSpace(string(l.Size)))
	if v, ok := sizeLabels[string(size)]; ok {
		size = v
	}
	if size == "" {
		size = d.Size
	}
	l.Size = size

	sugar := Sugar(strings.TrimSpace(string(l.Sugar)))
	if v, ok := sugarLabels[string(sugar)]; ok {
		sugar = v
	}
	if sugar == "" {
		sugar = d.Sugar
	}
	l.Sugar = sugar

	ice := Ice(strings.TrimSpace(string(l.Ice)))
	if v, ok := iceLabels[string(ice)]; ok {
		ice = v
	}
	if ice == "" {
		ice = d.Ice
	}
	l.Ice = ice

	if l.Quantity < 1 {
		l.Quantity = 1
	}
	return l
}

// Validate checks the line invariants
func (l OrderLine) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid order line %q: %w", l.DrinkName, err)
	}
	return nil
}

// NormalizeDraft normalizes every line and drops the ones that stay invalid.
func NormalizeDraft(lines []OrderLine, d Defaults) Draft {
	draft := make(Draft, 0, len(lines))
	for _, line := range lines {
		line = line.Normalize(d)
		if line.Validate() != nil {
			continue
		}
		draft = append(draft, line)
	}
	return draft
}

// Clone returns an independent copy of the draft
func (d Draft) Clone() Draft {
	if d == nil {
		return nil
	}
	out := make(Draft, len(d))
	copy(out, d)
	return out
}

// Cups returns the total number of cups in the draft
func (d Draft) Cups() int {
	total := 0
	for _, line := range d {
		total += line.Quantity
	}
	return total
}

var sizeText = map[Size]string{SizeLarge: "大杯", SizeMedium: "中杯", SizeSmall: "小杯"}

var sugarText = map[Sugar]string{
	SugarFull: "全糖", SugarSeventy: "七分糖", SugarHalf: "半糖",
	SugarThirty: "三分糖", SugarLight: "微糖", SugarFree: "無糖",
}

var iceText = map[Ice]string{
	IceIced: "正常冰", IceLess: "少冰", IceLight: "微冰",
	IceNone: "去冰", IceRoomTemp: "常溫", IceHot: "熱",
}

// Text renders the line the way the counter reads it back, e.g. 大杯半糖少冰珍珠奶茶 2杯.
// Standard options are left out.
func (l OrderLine) Text() string {
	var b strings.Builder
	b.WriteString(sizeText[l.Size])
	b.WriteString(sugarText[l.Sugar])
	b.WriteString(iceText[l.Ice])
	b.WriteString(l.DrinkName)
	if l.Quantity > 1 {
		fmt.Fprintf(&b, " %d杯", l.Quantity)
	}
	return b.String()
}

// FormatDraft joins the lines of a draft for display
func FormatDraft(d Draft) string {
	parts := make([]string, len(d))
	for i, line := range d {
		parts[i] = line.Text()
	}
	return strings.Join(parts, "、")
}

// Order is one submitted cup as stored by the order desk
type Order struct {
	gorm.Model
	OrderNumber string `gorm:"index"`
	DrinkName   string
	Size        string
	Sugar       string
	Ice         string
	Status      string
	OrderedAt   time.Time
	CompletedAt *time.Time
}
