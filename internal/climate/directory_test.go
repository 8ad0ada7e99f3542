package climate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	devices []Device
	err     error
}

func (s *stubSource) ListDevices(context.Context) ([]Device, error) {
	return s.devices, s.err
}

func (s *stubSource) Latest(context.Context, string) (Measurement, error) {
	return Measurement{}, ErrNoData
}

func TestDirectoryLoad(t *testing.T) {
	src := &stubSource{devices: []Device{
		{Name: "TUMO", RegionName: "Yerevan", ExternalID: "id1"},
		{Name: "Gyumri", RegionName: "Shirak", ExternalID: "id2"},
		{Name: "AUA", RegionName: "Yerevan", ExternalID: "id3"},
		{Name: "Lonely", RegionName: "", ExternalID: "id4"},
		{Name: "TUMO", RegionName: "Yerevan", ExternalID: "id1"},
	}}
	dir := NewDirectory(src, zap.NewNop())
	require.NoError(t, dir.Load(context.Background()))

	assert.Equal(t, []string{"Yerevan", "Shirak", UnknownRegion}, dir.RegionNames())
	assert.Equal(t, []string{"TUMO", "AUA"}, dir.DevicesIn("Yerevan"))
	assert.Nil(t, dir.DevicesIn("Mars"))
	assert.True(t, dir.IsRegion("Shirak"))
	assert.True(t, dir.IsDevice("Lonely"))
	assert.False(t, dir.IsDevice("Yerevan"))
	assert.Equal(t, 4, dir.Len())

	dev, err := dir.Resolve("TUMO")
	require.NoError(t, err)
	assert.Equal(t, "id1", dev.ExternalID)

	_, err = dir.Resolve("Nope")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestDirectoryInitialFailureIsEmpty(t *testing.T) {
	dir := NewDirectory(&stubSource{err: ErrUpstreamUnavailable}, zap.NewNop())

	err := dir.Load(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Empty(t, dir.Regions())
	assert.Equal(t, 0, dir.Len())
}

func TestDirectoryRefreshFailureKeepsSnapshot(t *testing.T) {
	src := &stubSource{devices: []Device{{Name: "TUMO", RegionName: "Yerevan", ExternalID: "id1"}}}
	dir := NewDirectory(src, zap.NewNop())
	require.NoError(t, dir.Load(context.Background()))

	src.err = errors.New("boom")
	require.Error(t, dir.Load(context.Background()))

	assert.Equal(t, []string{"Yerevan"}, dir.RegionNames())
	assert.True(t, dir.IsDevice("TUMO"))
}

func TestDirectoryRegionsAreCopies(t *testing.T) {
	src := &stubSource{devices: []Device{{Name: "TUMO", RegionName: "Yerevan", ExternalID: "id1"}}}
	dir := NewDirectory(src, zap.NewNop())
	require.NoError(t, dir.Load(context.Background()))

	regions := dir.Regions()
	regions[0].Devices[0] = "changed"
	assert.Equal(t, []string{"TUMO"}, dir.DevicesIn("Yerevan"))
}
