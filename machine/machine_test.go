package machine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
)

func TestKind(t *testing.T) {
	tests := []struct {
		unit     media.Element
		expected machine.Kind
	}{
		{unit: media.NewTestSrc(""), expected: machine.Source},
		{unit: media.NewVolume(""), expected: machine.Processor},
		{unit: media.NewFakeSink(""), expected: machine.Sink},
	}
	for _, test := range tests {
		m, err := machine.New("m", test.unit)
		require.NoError(t, err)
		assert.Equal(t, test.expected, m.Kind())
		assert.Equal(t, test.unit, m.EffectiveSource())
		assert.Equal(t, test.unit, m.EffectiveSink())
		assert.True(t, m.Bin().Contains(test.unit))
	}

	_, err := machine.New("empty", media.NewBin(""))
	assert.ErrorIs(t, err, machine.ErrNoPads)
}

func TestActivateAdder(t *testing.T) {
	m, err := machine.New("fx", media.NewVolume(""))
	require.NoError(t, err)
	assert.False(t, m.HasActiveAdder())

	require.NoError(t, m.ActivateAdder())
	adder := m.EffectiveSink()
	assert.True(t, m.HasActiveAdder())
	assert.NotEqual(t, m.Unit(), adder)
	assert.True(t, media.Linked(adder, m.Unit()))
	assert.True(t, adder.LockedState())

	// idempotent
	require.NoError(t, m.ActivateAdder())
	assert.Equal(t, adder, m.EffectiveSink())
	assert.Len(t, m.Bin().Children(), 2)

	require.NoError(t, m.DeactivateAdder())
	assert.False(t, m.HasActiveAdder())
	assert.Equal(t, m.Unit(), m.EffectiveSink())
	assert.Len(t, m.Bin().Children(), 1)
	assert.False(t, m.Unit().Pad("sink").IsLinked())
}

func TestActivateSpreader(t *testing.T) {
	m, err := machine.New("gen", media.NewTestSrc(""))
	require.NoError(t, err)
	require.NoError(t, m.ActivateSpreader())
	assert.True(t, m.HasActiveSpreader())
	assert.True(t, media.Linked(m.Unit(), m.EffectiveSource()))
	assert.Equal(t, m.Unit(), m.EffectiveSink())

	require.NoError(t, m.DeactivateSpreader())
	assert.False(t, m.HasActiveSpreader())
	assert.Equal(t, m.Unit(), m.EffectiveSource())
}

func TestActivationFailure(t *testing.T) {
	gen, err := machine.New("gen", media.NewTestSrc(""))
	require.NoError(t, err)
	assert.ErrorIs(t, gen.ActivateAdder(), machine.ErrActivation)
	assert.False(t, gen.HasActiveAdder())
	assert.Len(t, gen.Bin().Children(), 1)

	// unit's sink pad is taken.
	fx, err := machine.New("fx", media.NewVolume(""))
	require.NoError(t, err)
	require.NoError(t, media.Link(gen.Unit(), fx.Unit()))
	assert.ErrorIs(t, fx.ActivateAdder(), machine.ErrActivation)
	assert.False(t, fx.HasActiveAdder())
	assert.Equal(t, []media.Element{fx.Unit()}, fx.Bin().Children())
	assert.Equal(t, fx.Unit(), fx.EffectiveSink())
	assert.True(t, media.Linked(gen.Unit(), fx.Unit()))
}

func TestPinned(t *testing.T) {
	m, err := machine.New("master", media.NewFakeSink(""), machine.WithAdder())
	require.NoError(t, err)
	assert.True(t, m.HasActiveAdder())
	require.NoError(t, m.DeactivateAdder())
	assert.True(t, m.HasActiveAdder())
}

func TestSyncFanState(t *testing.T) {
	m, err := machine.New("fx", media.NewVolume(""))
	require.NoError(t, err)
	pipeline := media.NewBin("")
	require.NoError(t, pipeline.Add(m.Bin()))
	require.NoError(t, m.ActivateAdder())
	require.NoError(t, pipeline.SetState(media.Paused))

	adder := m.EffectiveSink()
	assert.Equal(t, media.Paused, m.Unit().State())
	assert.Equal(t, media.Null, adder.State())

	// no links yet, adder stays locked.
	require.NoError(t, m.SyncFanState())
	assert.True(t, adder.LockedState())

	gen := media.NewTestSrc("")
	require.NoError(t, media.Link(gen, adder))
	require.NoError(t, m.SyncFanState())
	assert.False(t, adder.LockedState())
	assert.Equal(t, media.Paused, adder.State())

	require.NoError(t, pipeline.SetState(media.Null))
	assert.Equal(t, media.Null, adder.State())
}

func TestParams(t *testing.T) {
	m, err := machine.New("fx", media.NewVolume(""), machine.WithParams(map[string]float64{"volume": 0.5}))
	require.NoError(t, err)
	v, err := m.Param("volume")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	require.NoError(t, m.SetParam("volume", 1.5))
	v, _ = m.Param("volume")
	assert.Equal(t, 1.5, v)
	assert.Len(t, m.Params(), 1)

	_, err = machine.New("fx", media.NewVolume(""), machine.WithParams(map[string]float64{"gain": 1}))
	assert.ErrorIs(t, err, media.ErrUnknownParam)
}

func TestFanCounters(t *testing.T) {
	m, err := machine.New("fx", media.NewVolume(""))
	require.NoError(t, err)
	m.AddFanIn(2)
	m.AddFanOut(1)
	m.AddFanIn(-1)
	assert.Equal(t, 1, m.FanIn())
	assert.Equal(t, 1, m.FanOut())
}
