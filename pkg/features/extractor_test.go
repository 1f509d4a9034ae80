package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestExtractPackSize(t *testing.T) {
	e := New(DefaultConfig())

	t.Run("simple milliliter amount", func(t *testing.T) {
		profile := e.Extract("Shampoo X 400ml")

		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 400.0, *profile.PackAmount)
		assert.Equal(t, models.PackUnitMilliliter, profile.PackUnit)
		assert.Contains(t, profile.Tokens, "shampoo")
		assert.NotContains(t, profile.Tokens, "400ml")
	})

	t.Run("liter converts to milliliters", func(t *testing.T) {
		profile := e.Extract("מיץ תפוזים 1.5 ליטר")

		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 1500.0, *profile.PackAmount)
		assert.Equal(t, models.PackUnitMilliliter, profile.PackUnit)
	})

	t.Run("kilogram converts to grams", func(t *testing.T) {
		profile := e.Extract("White Flour 1 kg")

		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 1000.0, *profile.PackAmount)
		assert.Equal(t, models.PackUnitGram, profile.PackUnit)
	})

	t.Run("multi-pack resolves before single amount", func(t *testing.T) {
		profile := e.Extract("יוגורט 3*100 גרם")

		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 300.0, *profile.PackAmount)
		assert.Equal(t, models.PackUnitGram, profile.PackUnit)
		assert.Empty(t, profile.AuxiliaryCodes)
	})

	t.Run("unit amount is not a quantity code", func(t *testing.T) {
		// "700 ml" is a container size. The 700 must not leak into the
		// auxiliary codes.
		profile := e.Extract("Olive Oil 700 ml")

		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 700.0, *profile.PackAmount)
		assert.Empty(t, profile.AuxiliaryCodes)
	})
}

func TestExtractAuxiliaryCodes(t *testing.T) {
	e := New(DefaultConfig())

	t.Run("spf strength", func(t *testing.T) {
		profile := e.Extract("Sunscreen Lotion SPF 50 200ml")

		assert.Contains(t, profile.AuxiliaryCodes, 50)
		require.NotNil(t, profile.PackAmount)
		assert.Equal(t, 200.0, *profile.PackAmount)
	})

	t.Run("leftover digits become variant codes", func(t *testing.T) {
		profile := e.Extract("Lipstick Shade 204")

		assert.Contains(t, profile.AuxiliaryCodes, 204)
	})

	t.Run("no digits no codes", func(t *testing.T) {
		profile := e.Extract("Olive Oil Extra Virgin")

		assert.Empty(t, profile.AuxiliaryCodes)
	})
}

func TestExtractTokens(t *testing.T) {
	e := New(DefaultConfig())

	t.Run("lowercased and punctuation stripped", func(t *testing.T) {
		profile := e.Extract("Ben & Jerry's Chocolate!")

		assert.Contains(t, profile.Tokens, "ben")
		assert.Contains(t, profile.Tokens, "chocolate")
	})

	t.Run("short tokens dropped", func(t *testing.T) {
		profile := e.Extract("vitamin c tablets")

		assert.NotContains(t, profile.Tokens, "c")
		assert.Contains(t, profile.Tokens, "vitamin")
	})

	t.Run("stop words dropped", func(t *testing.T) {
		profile := e.Extract("שמפו של פינוק עם קוקוס")

		assert.NotContains(t, profile.Tokens, "של")
		assert.NotContains(t, profile.Tokens, "עם")
		assert.Contains(t, profile.Tokens, "פינוק")
	})

	t.Run("deal breakers recorded", func(t *testing.T) {
		profile := e.Extract("Night Cream Brand Y")

		assert.Contains(t, profile.DealBreakerTokens, "night")
		assert.Contains(t, profile.DealBreakerTokens, "cream")
		assert.NotContains(t, profile.DealBreakerTokens, "brand")
	})
}

func TestExtractDegradesToEmptyProfile(t *testing.T) {
	e := New(DefaultConfig())

	for _, name := range []string{"", "   ", "!!??", "& -"} {
		profile := e.Extract(name)

		assert.Empty(t, profile.Tokens)
		assert.Nil(t, profile.PackAmount)
		assert.Equal(t, models.PackUnitNone, profile.PackUnit)
		assert.Empty(t, profile.AuxiliaryCodes)
		assert.Empty(t, profile.DealBreakerTokens)
	}
}
