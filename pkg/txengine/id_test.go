package txengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTransactionIDUnique(t *testing.T) {
	a, err := NewTransactionID()
	require.NoError(t, err)
	b, err := NewTransactionID()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.False(t, a.IsZero())
	require.Len(t, a.String(), idSize*2)
}

func TestTransactionIDZeroValue(t *testing.T) {
	var id TransactionID
	require.True(t, id.IsZero())
}

func TestTransactionIDUsableAsMapKey(t *testing.T) {
	a, err := NewTransactionID()
	require.NoError(t, err)

	m := map[TransactionID]int{a: 7}
	require.Equal(t, 7, m[a])
}
