package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/models"
)

func TestDefaultRegistry_SixBuiltins(t *testing.T) {
	r := NewDefaultRegistry()
	defs := r.List()
	require.Len(t, defs, 6)

	ids := make([]string, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}
	assert.Equal(t, []string{
		"blue_chip_stable",
		"high_dividend",
		"quality_growth",
		"deep_value",
		"momentum_trend",
		"small_cap_growth",
	}, ids)
}

func TestRegistry_Get(t *testing.T) {
	r := NewDefaultRegistry()

	def, ok := r.Get("deep_value")
	require.True(t, ok)
	assert.Equal(t, "Deep Value", def.Name)
	assert.NotEmpty(t, def.Schema)
	assert.Equal(t, float64(60), def.MinScoreDefault)

	_, ok = r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_DefaultsCoverSchema(t *testing.T) {
	r := NewDefaultRegistry()
	for _, def := range r.List() {
		assert.Len(t, def.Defaults, len(def.Schema), def.ID)
		for _, spec := range def.Schema {
			v, ok := def.Defaults[spec.Name]
			require.True(t, ok, "%s missing default for %s", def.ID, spec.Name)
			assert.GreaterOrEqual(t, v, spec.RangeMin, "%s %s", def.ID, spec.Name)
			assert.LessOrEqual(t, v, spec.RangeMax, "%s %s", def.ID, spec.Name)
		}
	}
}

func TestValidateParameters_UnknownName(t *testing.T) {
	r := NewDefaultRegistry()
	def, _ := r.Get("blue_chip_stable")

	err := ValidateParameters(def, models.StrategyParameters{"pe_ceiling": 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter")
}

func TestValidateParameters_OutOfRange(t *testing.T) {
	r := NewDefaultRegistry()
	def, _ := r.Get("blue_chip_stable")

	err := ValidateParameters(def, models.StrategyParameters{"pe_max": 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside declared range")
}

func TestValidateParameters_ValidBinding(t *testing.T) {
	r := NewDefaultRegistry()
	def, _ := r.Get("blue_chip_stable")

	err := ValidateParameters(def, models.StrategyParameters{
		"pe_max":  20,
		"roe_min": 12,
	})
	assert.NoError(t, err)
}
