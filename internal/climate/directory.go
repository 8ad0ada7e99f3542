package climate

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Region is a named group of devices in listing order.
type Region struct {
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// snapshot is an immutable view of the device list.
type snapshot struct {
	regions []Region
	byName  map[string]Device
	region  map[string]int
}

// Directory caches the device list and answers name and region lookups.
// It is safe for concurrent use; Load swaps the whole snapshot at once.
type Directory struct {
	source Source
	log    *zap.Logger

	mu   sync.RWMutex
	snap snapshot
}

// NewDirectory creates an empty Directory backed by source.
func NewDirectory(source Source, log *zap.Logger) *Directory {
	return &Directory{
		source: source,
		log:    log,
		snap:   build(nil),
	}
}

// Load fetches the device list and replaces the cached snapshot. On failure
// the previous snapshot is kept (empty before the first successful load).
func (d *Directory) Load(ctx context.Context) error {
	devices, err := d.source.ListDevices(ctx)
	if err != nil {
		d.log.Error("directory: load failed; keeping last snapshot", zap.Error(err))
		return err
	}

	snap := build(devices)

	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()

	d.log.Info("directory: loaded",
		zap.Int("devices", len(snap.byName)),
		zap.Int("regions", len(snap.regions)))
	return nil
}

func build(devices []Device) snapshot {
	s := snapshot{
		byName: make(map[string]Device, len(devices)),
		region: make(map[string]int),
	}
	for _, dev := range devices {
		if dev.RegionName == "" {
			dev.RegionName = UnknownRegion
		}
		// A repeated name keeps the last id seen.
		s.byName[dev.Name] = dev

		idx, ok := s.region[dev.RegionName]
		if !ok {
			idx = len(s.regions)
			s.region[dev.RegionName] = idx
			s.regions = append(s.regions, Region{Name: dev.RegionName})
		}
		if !slices.Contains(s.regions[idx].Devices, dev.Name) {
			s.regions[idx].Devices = append(s.regions[idx].Devices, dev.Name)
		}
	}
	return s
}

func (d *Directory) current() snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Regions returns every region with its device names, in listing order.
func (d *Directory) Regions() []Region {
	snap := d.current()
	out := make([]Region, len(snap.regions))
	for i, r := range snap.regions {
		out[i] = Region{Name: r.Name, Devices: append([]string(nil), r.Devices...)}
	}
	return out
}

// RegionNames returns the region names in listing order.
func (d *Directory) RegionNames() []string {
	snap := d.current()
	names := make([]string, len(snap.regions))
	for i, r := range snap.regions {
		names[i] = r.Name
	}
	return names
}

// DevicesIn returns the device names of a region, or nil if it is unknown.
func (d *Directory) DevicesIn(region string) []string {
	snap := d.current()
	idx, ok := snap.region[region]
	if !ok {
		return nil
	}
	return append([]string(nil), snap.regions[idx].Devices...)
}

// IsRegion reports whether name is a known region.
func (d *Directory) IsRegion(name string) bool {
	_, ok := d.current().region[name]
	return ok
}

// IsDevice reports whether name is a known device.
func (d *Directory) IsDevice(name string) bool {
	_, ok := d.current().byName[name]
	return ok
}

// Resolve returns the device with the given name.
func (d *Directory) Resolve(name string) (Device, error) {
	dev, ok := d.current().byName[name]
	if !ok || dev.ExternalID == "" {
		return Device{}, ErrUnknownDevice
	}
	return dev, nil
}

// Len returns the number of known devices.
func (d *Directory) Len() int {
	return len(d.current().byName)
}
