package bot

import (
	"strings"
	"time"
	"unicode"

	"github.com/i474232898/climatenet-bot/internal/tracking"
)

// Inbound is a raw message as delivered by the chat transport.
type Inbound struct {
	ChatID   int64
	User     tracking.User
	Text     string
	Location *tracking.Coordinates
	// Unsupported marks media (photos, stickers, voice, ...) the bot does not read.
	Unsupported bool
}

// EventKind is the typed meaning of an inbound message.
type EventKind int

const (
	EventInvalidInput EventKind = iota
	EventStart
	EventRegionSelected
	EventDeviceSelected
	EventCompare
	EventCancel
	EventCurrent
	EventHelp
	EventChangeDevice
	EventChangeLocation
	EventWebsite
	EventMap
	EventShareLocation
	EventBack
	EventLocationShared
)

var eventNames = map[EventKind]string{
	EventInvalidInput:   "invalid_input",
	EventStart:          "start",
	EventRegionSelected: "region_selected",
	EventDeviceSelected: "device_selected",
	EventCompare:        "compare",
	EventCancel:         "cancel",
	EventCurrent:        "current",
	EventHelp:           "help",
	EventChangeDevice:   "change_device",
	EventChangeLocation: "change_location",
	EventWebsite:        "website",
	EventMap:            "map",
	EventShareLocation:  "share_location",
	EventBack:           "back",
	EventLocationShared: "location_shared",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is an inbound message after routing.
type Event struct {
	ID         string
	ChatID     int64
	User       tracking.User
	Kind       EventKind
	Arg        string
	Location   tracking.Coordinates
	ReceivedAt time.Time
}

// commands maps lower-cased command tokens to events.
var commands = map[string]EventKind{
	"start":           EventStart,
	"compare":         EventCompare,
	"cancel":          EventCancel,
	"current":         EventCurrent,
	"help":            EventHelp,
	"change_device":   EventChangeDevice,
	"change_location": EventChangeLocation,
	"website":         EventWebsite,
	"map":             EventMap,
	"share_location":  EventShareLocation,
	"back":            EventBack,
}

// Catalog answers whether a text names a region or a device.
type Catalog interface {
	IsRegion(name string) bool
	IsDevice(name string) bool
}

// Router classifies inbound messages. Region names take precedence over
// device names when a text matches both.
type Router struct {
	catalog Catalog
}

// NewRouter creates a Router backed by catalog.
func NewRouter(catalog Catalog) *Router {
	return &Router{catalog: catalog}
}

// Route turns an inbound message into an Event.
func (r *Router) Route(in Inbound) Event {
	ev := Event{ChatID: in.ChatID, User: in.User, Kind: EventInvalidInput}

	switch {
	case in.Location != nil:
		ev.Kind = EventLocationShared
		ev.Location = *in.Location
	case in.Unsupported:
		ev.Arg = "media"
	default:
		text := strings.TrimSpace(in.Text)
		ev.Arg = text
		if cmd, ok := parseCommand(text); ok {
			if kind, known := commands[strings.ToLower(cmd)]; known {
				ev.Kind = kind
			}
			return ev
		}
		switch {
		case text == "":
		case r.catalog.IsRegion(text):
			ev.Kind = EventRegionSelected
		case r.catalog.IsDevice(text):
			ev.Kind = EventDeviceSelected
		}
	}
	return ev
}

// parseCommand extracts "Current" from "/Current 📍TUMO" or "/current@bot".
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	rest := text[1:]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	if end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}
