package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntentDelta_MarshalRoundTrip(t *testing.T) {
	d := IntentDelta{
		Context:        []byte("/v1/users/42"),
		DeltaTrue:      3,
		DeltaFalse:     1,
		SequenceNumber: 9001,
	}
	got, err := UnmarshalIntentDelta(d.Marshal())
	require.NoError(t, err)
	require.Equal(t, d.Context, got.Context)
	require.Equal(t, d.DeltaTrue, got.DeltaTrue)
	require.Equal(t, d.DeltaFalse, got.DeltaFalse)
	require.Equal(t, d.SequenceNumber, got.SequenceNumber)
}

func TestUnmarshalIntentDelta_Truncated(t *testing.T) {
	d := IntentDelta{Context: []byte("abc"), SequenceNumber: 1}
	raw := d.Marshal()
	_, err := UnmarshalIntentDelta(raw[:len(raw)-1])
	require.Error(t, err)
}
