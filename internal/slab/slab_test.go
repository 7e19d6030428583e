package slab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_GuardedLayoutBasics(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 8, s.Slots())
	for i := 0; i < 8; i++ {
		ptr := s.SlotPtr(i)
		require.Len(t, ptr, 4096)
		ptr[0] = 0xAB
		require.Equal(t, byte(0xAB), s.SlotPtr(i)[0])
	}
}

func TestRC_IncDecInFlight(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.InFlight(0))
	s.IncRC(0)
	require.True(t, s.InFlight(0))
	s.IncRC(0)
	s.DecRC(0)
	require.True(t, s.InFlight(0))
	s.DecRC(0)
	require.False(t, s.InFlight(0))
}

func TestRelease_PanicsWhenInFlight(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	defer s.Close()

	s.IncRC(0)
	require.Panics(t, func() { s.Release(0) })
	s.DecRC(0)
	require.NotPanics(t, func() { s.Release(0) })
}

func TestDecRC_PanicsFromZero(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	defer s.Close()

	require.Panics(t, func() { s.DecRC(0) })
}

func TestVersion_SetGetInc(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, uint32(0), s.GetVersion(0))
	s.SetVersion(0, 100)
	require.Equal(t, uint32(100), s.GetVersion(0))
	newV := s.IncVersion(0)
	require.Equal(t, uint32(101), newV)
	require.Equal(t, uint32(101), s.GetVersion(0))
}

func TestSlotPtr_OutOfRangePanics(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	defer s.Close()

	require.Panics(t, func() { s.SlotPtr(2) })
	require.Panics(t, func() { s.SlotPtr(-1) })
}

func TestConcurrentRC_NeverGoesNegative(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	defer s.Close()

	const n = 1000
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		s.IncRC(0)
	}
	for i := 0; i < n; i++ {
		go func() {
			s.DecRC(0)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	require.False(t, s.InFlight(0))
}
