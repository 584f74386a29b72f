package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKindValid(t *testing.T) {
	assert.True(t, EventRumorCreated.Valid())
	assert.True(t, EventRumorVerified.Valid())
	assert.True(t, EventContractUpgraded.Valid())
	assert.False(t, EventKind("Transfer").Valid())
	assert.False(t, EventKind("").Valid())
}

func TestAllEventKindsOrder(t *testing.T) {
	// Creation must be processed before verification within one cycle.
	require.Len(t, AllEventKinds, 3)
	assert.Equal(t, EventRumorCreated, AllEventKinds[0])
	assert.Equal(t, EventRumorVerified, AllEventKinds[1])
}

func TestDecodeRumorCreated(t *testing.T) {
	payload := map[string]any{
		"rumor_id": float64(42),
		"creator":  "0xc1",
		"content":  "hello world",
	}

	decoded, err := DecodeRumorCreated(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), decoded.RumorID)
	assert.Equal(t, "0xc1", decoded.Creator)
	assert.Equal(t, "hello world", decoded.Content)
}

func TestDecodeRumorCreatedMissingField(t *testing.T) {
	_, err := DecodeRumorCreated(map[string]any{"rumor_id": int64(1), "creator": "0xc1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content")
}

func TestDecodeRumorCreatedWrongType(t *testing.T) {
	_, err := DecodeRumorCreated(map[string]any{
		"rumor_id": "not-a-number",
		"creator":  "0xc1",
		"content":  "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rumor_id")
}

func TestDecodeRumorVerified(t *testing.T) {
	decoded, err := DecodeRumorVerified(map[string]any{
		"rumor_id": int64(7),
		"verifier": "0xv1",
		"result":   "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), decoded.RumorID)
	assert.Equal(t, "confirmed", decoded.Result)
}

func TestDecodeContractUpgraded(t *testing.T) {
	decoded, err := DecodeContractUpgraded(map[string]any{"new_implementation": "0xnew"})
	require.NoError(t, err)
	assert.Equal(t, "0xnew", decoded.NewImplementation)

	_, err = DecodeContractUpgraded(map[string]any{})
	assert.Error(t, err)
}
