package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLine_NormalizeFillsDefaults(t *testing.T) {
	line := OrderLine{DrinkName: " 珍珠奶茶 "}.Normalize(StandardDefaults())

	assert.Equal(t, OrderLine{
		DrinkName: "珍珠奶茶",
		Size:      SizeStandard,
		Sugar:     SugarStandard,
		Ice:       IceStandard,
		Quantity:  1,
	}, line)
	assert.NoError(t, line.Validate())
}

func TestOrderLine_NormalizeMapsLabels(t *testing.T) {
	line := OrderLine{DrinkName: "紅茶", Size: "大杯", Sugar: "半糖", Ice: "去冰", Quantity: 2}.
		Normalize(StandardDefaults())

	assert.Equal(t, SizeLarge, line.Size)
	assert.Equal(t, SugarHalf, line.Sugar)
	assert.Equal(t, IceNone, line.Ice)
	assert.Equal(t, 2, line.Quantity)
}

func TestOrderLine_Validate(t *testing.T) {
	tests := []struct {
		name string
		line OrderLine
		ok   bool
	}{
		{"valid", OrderLine{DrinkName: "紅茶", Size: SizeSmall, Sugar: SugarFree, Ice: IceHot, Quantity: 1}, true},
		{"empty name", OrderLine{Size: SizeSmall, Sugar: SugarFree, Ice: IceHot, Quantity: 1}, false},
		{"zero quantity", OrderLine{DrinkName: "紅茶", Size: SizeSmall, Sugar: SugarFree, Ice: IceHot}, false},
		{"unknown size", OrderLine{DrinkName: "紅茶", Size: "huge", Sugar: SugarFree, Ice: IceHot, Quantity: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeDraft_DropsInvalidLines(t *testing.T) {
	draft := NormalizeDraft([]OrderLine{
		{DrinkName: "綠茶"},
		{DrinkName: ""},
		{DrinkName: "奶茶", Size: "giant"},
	}, StandardDefaults())

	require.Len(t, draft, 1)
	assert.Equal(t, "綠茶", draft[0].DrinkName)
}

func TestFormatDraft(t *testing.T) {
	draft := Draft{
		{DrinkName: "珍珠奶茶", Size: SizeLarge, Sugar: SugarHalf, Ice: IceLess, Quantity: 2},
		{DrinkName: "紅茶", Size: SizeStandard, Sugar: SugarStandard, Ice: IceStandard, Quantity: 1},
	}

	assert.Equal(t, "大杯半糖少冰珍珠奶茶 2杯、紅茶", FormatDraft(draft))
	assert.Equal(t, 3, draft.Cups())
}

func TestDraft_CloneIsIndependent(t *testing.T) {
	draft := Draft{{DrinkName: "紅茶", Quantity: 1}}
	clone := draft.Clone()
	clone[0].Quantity = 5

	assert.Equal(t, 1, draft[0].Quantity)
	assert.Nil(t, Draft(nil).Clone())
}

func TestDecodeStatusEvent(t *testing.T) {
	ev, err := DecodeStatusEvent([]byte(`{"order_number":"A12","status":"ready"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusEvent{OrderNumber: "A12", Status: OrderStatusReady}, ev)

	ev, err = DecodeStatusEvent([]byte(`{"order_number":"A12","event":"completed"}`))
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, ev.Status)

	_, err = DecodeStatusEvent([]byte(`{"status":"ready"}`))
	assert.Error(t, err)

	_, err = DecodeStatusEvent([]byte(`{"order_number":"A12"}`))
	assert.Error(t, err)
}

func TestMenu_FindPrefersLongestName(t *testing.T) {
	menu := DefaultMenu()

	name, ok := menu.Find("我要一杯烏龍奶茶半糖")
	require.True(t, ok)
	assert.Equal(t, "烏龍奶茶", name)

	_, ok = menu.Find("今天天氣如何")
	assert.False(t, ok)

	assert.True(t, menu.IsDrink(" 珍珠奶茶 "))
	assert.False(t, menu.IsDrink("一杯珍珠奶茶"))
}
