package httpapi

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/climatenet-bot/internal/climate"
)

var validate = validator.New()

// Directory is the read side of the device directory.
type Directory interface {
	Regions() []climate.Region
	Resolve(name string) (climate.Device, error)
	Len() int
}

// Sessions exposes the chat session store to operators.
type Sessions interface {
	Len() int
	Clear(chatID int64)
}

// CommandStats reports usage counts per command.
type CommandStats interface {
	CommandCounts(ctx context.Context) (map[string]int64, error)
}

// Deps is what the operations API reads from. Stats may be nil when no
// database is configured; Restarts may be nil.
type Deps struct {
	Directory Directory
	Source    climate.Source
	Formatter *climate.Formatter
	Sessions  Sessions
	Stats     CommandStats
	Restarts  func() int64
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if d.Directory.Len() == 0 {
			status = "degraded"
		}
		var restarts int64
		if d.Restarts != nil {
			restarts = d.Restarts()
		}
		return c.JSON(fiber.Map{
			"status":            status,
			"service":           "climatenet-bot",
			"devices":           d.Directory.Len(),
			"sessions":          d.Sessions.Len(),
			"listener_restarts": restarts,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/regions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"regions": d.Directory.Regions()})
	})

	v1.Get("/devices/:name/latest", func(c *fiber.Ctx) error {
		dev, err := d.Directory.Resolve(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "unknown device")
		}

		m, err := d.Source.Latest(c.UserContext(), dev.ExternalID)
		if err != nil {
			return upstreamError(err)
		}

		return c.JSON(fiber.Map{
			"device":      dev,
			"measurement": m,
			"report":      d.Formatter.FormatSingle(m, dev.Name),
		})
	})

	v1.Get("/compare", func(c *fiber.Ctx) error {
		req := compareQuery{
			Device1: c.Query("device1"),
			Device2: c.Query("device2"),
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var devs [2]climate.Device
		for i, name := range []string{req.Device1, req.Device2} {
			dev, err := d.Directory.Resolve(name)
			if err != nil {
				return fiber.NewError(fiber.StatusNotFound, "unknown device: "+name)
			}
			devs[i] = dev
		}

		ctx := c.UserContext()
		var (
			wg   sync.WaitGroup
			meas [2]climate.Measurement
			errs [2]error
		)
		for i := range devs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				meas[i], errs[i] = d.Source.Latest(ctx, devs[i].ExternalID)
			}(i)
		}
		wg.Wait()
		if err := errors.Join(errs[0], errs[1]); err != nil {
			return upstreamError(err)
		}

		return c.JSON(fiber.Map{
			"device1":      devs[0],
			"device2":      devs[1],
			"measurement1": meas[0],
			"measurement2": meas[1],
			"report":       d.Formatter.FormatComparison(devs[0].Name, meas[0], devs[1].Name, meas[1]),
		})
	})

	v1.Delete("/sessions/:chatID", func(c *fiber.Ctx) error {
		chatID, err := strconv.ParseInt(c.Params("chatID"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "chat id must be an integer")
		}
		d.Sessions.Clear(chatID)
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/stats/commands", func(c *fiber.Ctx) error {
		if d.Stats == nil {
			return fiber.NewError(fiber.StatusNotFound, "usage tracking is disabled")
		}
		counts, err := d.Stats.CommandCounts(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read command stats")
		}
		return c.JSON(fiber.Map{"commands": counts})
	})
}

// compareQuery holds query parameters for the compare endpoint.
type compareQuery struct {
	Device1 string `validate:"required"`
	Device2 string `validate:"required"`
}

func upstreamError(err error) error {
	if errors.Is(err, climate.ErrNoData) {
		return fiber.NewError(fiber.StatusNotFound, "no measurement data for device")
	}
	return fiber.NewError(fiber.StatusBadGateway, "device service unavailable")
}
