package climate

import (
	"context"
)

// Source abstracts the upstream device service (e.g. ClimateNet).
type Source interface {
	// ListDevices returns every device known upstream.
	ListDevices(ctx context.Context) ([]Device, error)

	// Latest returns the most recent measurement for a device id.
	// It returns ErrNoData when the device has no samples.
	Latest(ctx context.Context, deviceID string) (Measurement, error)
}
