package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	out, err := Marshal(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestHashIsStableAcrossFieldOrder(t *testing.T) {
	h1, err := Hash(map[string]any{"debit": 100, "account": "1000"})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"account": "1000", "debit": 100})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestHashDiffersOnContent(t *testing.T) {
	h1, err := Hash(map[string]any{"debit": 100})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"debit": 101})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestChainHashDependsOnPrev(t *testing.T) {
	event := map[string]any{"action": "transaction.posted"}
	h1, err := ChainHash("", event)
	require.NoError(t, err)
	h2, err := ChainHash(h1, event)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
