package congestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestController_EvaluateDropsOnHighRTT(t *testing.T) {
	c := NewController(10 * time.Millisecond)
	require.Equal(t, 2, c.Evaluate(5*time.Millisecond))
	require.Equal(t, 0, c.Evaluate(20*time.Millisecond))
	require.Equal(t, 0, c.Level())
}

func TestController_NotifyLossForcesZero(t *testing.T) {
	c := NewController(10 * time.Millisecond)
	c.SetLevel(2)
	c.NotifyLoss()
	require.Equal(t, 0, c.Level())
}

// TestStability_Hysteresis covers thresholds (misses=3, recoveries=10)
// starting Integrated: two misses, one success, three misses -> Sovereign;
// then nine successes -> still Sovereign; the tenth success -> Integrated.
func TestStability_Hysteresis(t *testing.T) {
	s := NewStability(3, 10)
	require.Equal(t, ModeIntegrated, s.CurrentMode())

	s.RecordMiss()
	s.RecordMiss()
	require.Equal(t, ModeIntegrated, s.CurrentMode())

	s.RecordSuccess()
	require.Equal(t, ModeIntegrated, s.CurrentMode())

	s.RecordMiss()
	s.RecordMiss()
	s.RecordMiss()
	require.Equal(t, ModeSovereign, s.CurrentMode())

	for i := 0; i < 9; i++ {
		s.RecordSuccess()
	}
	require.Equal(t, ModeSovereign, s.CurrentMode())

	s.RecordSuccess()
	require.Equal(t, ModeIntegrated, s.CurrentMode())
}
