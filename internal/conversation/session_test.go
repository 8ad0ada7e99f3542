package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tumo   = DeviceRef{Name: "TUMO", ExternalID: "id1"}
	gyumri = DeviceRef{Name: "Gyumri", ExternalID: "id2"}
)

func TestSingleDeviceFlow(t *testing.T) {
	s := New(42)
	assert.Equal(t, PhaseIdle, s.Phase)

	s.SelectRegion("Yerevan")
	assert.Equal(t, PhaseRegionChosen, s.Phase)
	assert.Equal(t, "Yerevan", s.Region)

	s.SelectDevice(tumo)
	assert.Equal(t, PhaseDeviceChosen, s.Phase)
	require.NotNil(t, s.Device)
	assert.Equal(t, tumo, *s.Device)
	assert.Empty(t, s.Region)
}

func TestComparisonFlow(t *testing.T) {
	s := New(42)
	s.SelectDevice(tumo)

	s.StartCompare()
	assert.True(t, s.Comparing())
	assert.Equal(t, PhaseCompareAwaitingRegion1, s.Phase)

	s.SelectRegion("Yerevan")
	assert.Equal(t, PhaseCompareAwaitingDevice1, s.Phase)
	assert.Equal(t, "Yerevan", s.Compare.Region1)

	assert.False(t, s.PickForComparison(tumo))
	assert.Equal(t, PhaseCompareAwaitingRegion2, s.Phase)
	require.NotNil(t, s.Compare.First)
	assert.Equal(t, "Yerevan", s.Compare.First.Region)

	s.SelectRegion("Shirak")
	assert.Equal(t, PhaseCompareAwaitingDevice2, s.Phase)

	assert.True(t, s.PickForComparison(gyumri))
	require.NotNil(t, s.Compare.Second)
	assert.Equal(t, "Shirak", s.Compare.Second.Region)

	s.FinishCompare()
	assert.False(t, s.Comparing())
	assert.Equal(t, Comparison{}, s.Compare)
	assert.Equal(t, PhaseDeviceChosen, s.Phase)
	assert.Equal(t, tumo, *s.Device)
}

func TestComparisonRegionDoesNotTouchSelection(t *testing.T) {
	s := New(1)
	s.StartCompare()
	s.SelectRegion("Yerevan")

	assert.Empty(t, s.Region)
	assert.Nil(t, s.Device)
}

func TestStartCompareClearsPriorComparison(t *testing.T) {
	s := New(1)
	s.StartCompare()
	s.SelectRegion("Yerevan")
	s.PickForComparison(tumo)

	s.StartCompare()
	assert.Equal(t, Comparison{}, s.Compare)
	assert.Equal(t, PhaseCompareAwaitingRegion1, s.Phase)
}

func TestCancelReturnsToRestPhase(t *testing.T) {
	s := New(1)
	s.StartCompare()
	s.CancelCompare()
	assert.Equal(t, PhaseIdle, s.Phase)

	s.SelectDevice(tumo)
	s.StartCompare()
	s.SelectRegion("Yerevan")
	s.CancelCompare()
	assert.Equal(t, PhaseDeviceChosen, s.Phase)
	assert.Equal(t, Comparison{}, s.Compare)
}

func TestChangeDeviceAndLocation(t *testing.T) {
	s := New(1)
	s.SelectDevice(tumo)
	s.StartCompare()
	s.SelectRegion("Yerevan")

	loc := s
	loc.ChangeLocation()
	assert.Equal(t, Comparison{}, loc.Compare)
	assert.NotNil(t, loc.Device)
	assert.Equal(t, PhaseDeviceChosen, loc.Phase)

	s.ChangeDevice()
	assert.Nil(t, s.Device)
	assert.Equal(t, Comparison{}, s.Compare)
	assert.Equal(t, PhaseIdle, s.Phase)
}

func TestSessionCopiesAreIndependent(t *testing.T) {
	s := New(1)
	s.SelectDevice(tumo)

	cp := s
	cp.SelectDevice(gyumri)
	assert.Equal(t, "TUMO", s.Device.Name)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "compare_awaiting_device2", PhaseCompareAwaitingDevice2.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
