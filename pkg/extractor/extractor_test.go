package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	e := New()

	t.Run("TopLevelKey", func(t *testing.T) {
		value, err := e.Extract(map[string]any{"name": "Acme Inc"}, "name")
		require.NoError(t, err)
		assert.Equal(t, "Acme Inc", value)
	})

	t.Run("NestedPath", func(t *testing.T) {
		row := map[string]any{"company": map[string]any{"address": map[string]any{"city": "Denver"}}}
		value, err := e.Extract(row, "company.address.city")
		require.NoError(t, err)
		assert.Equal(t, "Denver", value)
	})

	t.Run("MissingKeyReturnsNil", func(t *testing.T) {
		value, err := e.Extract(map[string]any{"name": "Acme Inc"}, "missing")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("NonMapIntermediateErrors", func(t *testing.T) {
		_, err := e.Extract(map[string]any{"name": "Acme Inc"}, "name.first")
		assert.Error(t, err)
	})
}

func TestExtractString(t *testing.T) {
	e := New()

	t.Run("StringValue", func(t *testing.T) {
		value, err := e.ExtractString(map[string]any{"name": "Acme Inc"}, "name")
		require.NoError(t, err)
		require.NotNil(t, value)
		assert.Equal(t, "Acme Inc", *value)
	})

	t.Run("NumericValue", func(t *testing.T) {
		value, err := e.ExtractString(map[string]any{"zip": float64(80203)}, "zip")
		require.NoError(t, err)
		require.NotNil(t, value)
		assert.Equal(t, "80203", *value)
	})

	t.Run("MissingReturnsNil", func(t *testing.T) {
		value, err := e.ExtractString(map[string]any{}, "name")
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}
