package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	t.Run("KeyOrderInsensitive", func(t *testing.T) {
		a, err := FromJSON(json.RawMessage(`{"join_field":"name","record_type":"company"}`))
		require.NoError(t, err)
		b, err := FromJSON(json.RawMessage(`{"record_type":"company","join_field":"name"}`))
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("NestedObjectsCanonicalized", func(t *testing.T) {
		a, err := FromJSON(json.RawMessage(`{"dataset_a":[{"name":"Acme","state":"CA"}]}`))
		require.NoError(t, err)
		b, err := FromJSON(json.RawMessage(`{"dataset_a":[{"state":"CA","name":"Acme"}]}`))
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("ArrayOrderMatters", func(t *testing.T) {
		a, err := FromJSON(json.RawMessage(`{"rows":[1,2]}`))
		require.NoError(t, err)
		b, err := FromJSON(json.RawMessage(`{"rows":[2,1]}`))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("DifferentValuesDiffer", func(t *testing.T) {
		a, err := FromJSON(json.RawMessage(`{"join_field":"name"}`))
		require.NoError(t, err)
		b, err := FromJSON(json.RawMessage(`{"join_field":"title"}`))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := FromJSON(json.RawMessage(`{not json`))
		assert.Error(t, err)
	})

	t.Run("StableHexDigest", func(t *testing.T) {
		digest, err := FromJSON(json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.Len(t, digest, 64)
	})
}
