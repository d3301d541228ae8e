package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettled(t *testing.T) {
	total := MustMoney("100")

	assert.True(t, Settled(MustMoney("100"), total))
	assert.True(t, Settled(MustMoney("99.99"), total))
	assert.False(t, Settled(MustMoney("99.98"), total))
	assert.True(t, Settled(MustMoney("150"), total))
}

func TestPercentAndRounding(t *testing.T) {
	assert.True(t, MustMoney("15").Equal(Percent(MustMoney("50"), MustMoney("30"))))
	assert.Equal(t, "34.33", RoundMoney(MustMoney("103").Div(MustMoney("3"))).String())
	assert.Equal(t, "0.333", RoundStock(MustMoney("1").Div(MustMoney("3"))).String())
}
