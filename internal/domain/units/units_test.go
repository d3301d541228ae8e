package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestConvert_SameFamily(t *testing.T) {
	tests := []struct {
		qty      string
		from, to string
		want     string
	}{
		{"500", "g", "kg", "0.5"},
		{"1.5", "kg", "g", "1500"},
		{"250", "ml", "l", "0.25"},
		{"2", "m", "cm", "200"},
		{"1", "lb", "oz", "16"},
		{"3", "Kilo", " KG ", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			got := Convert(dec(tt.qty), tt.from, tt.to)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestConvert_FailOpen(t *testing.T) {
	res, err := (&Converter{}).Convert(dec("3"), "kg", "l")
	require.NoError(t, err)
	assert.True(t, res.Mismatch)
	assert.True(t, dec("3").Equal(res.Quantity))

	res, err = (&Converter{}).Convert(dec("2"), "box", "unit")
	require.NoError(t, err)
	assert.True(t, res.Mismatch)

	res, err = (&Converter{}).Convert(dec("2"), "box", "box")
	require.NoError(t, err)
	assert.False(t, res.Mismatch)
	assert.True(t, dec("2").Equal(res.Quantity))
}

func TestConvert_Strict(t *testing.T) {
	_, err := NewConverter(true).Convert(dec("3"), "kg", "ml")
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestConvert_RoundTrip(t *testing.T) {
	tolerance := dec("0.000000001")
	pairs := [][2]string{{"g", "kg"}, {"oz", "lb"}, {"ml", "m3"}, {"mm", "km"}, {"cl", "ml"}}
	for _, p := range pairs {
		q := dec("123.456")
		back := Convert(Convert(q, p[0], p[1]), p[1], p[0])
		assert.True(t, back.Sub(q).Abs().LessThan(tolerance), "%s<->%s: %s", p[0], p[1], back)
	}
}

func TestToBaseFromBase(t *testing.T) {
	q := dec("750")
	base := ToBase(q, "g")
	assert.True(t, dec("0.75").Equal(base))
	assert.True(t, q.Equal(FromBase(base, "g")))

	// native unit of the product is kg: base of the converted value equals base of the original
	native := FromBase(base, "kg")
	assert.True(t, ToBase(native, "kg").Equal(base))

	assert.True(t, dec("4").Equal(ToBase(dec("4"), "dozen")))
}
