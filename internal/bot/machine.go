package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/climatenet-bot/internal/climate"
	"github.com/i474232898/climatenet-bot/internal/conversation"
	"github.com/i474232898/climatenet-bot/internal/tracking"
)

// Directory is the device lookup the machine needs.
type Directory interface {
	Catalog
	RegionNames() []string
	DevicesIn(region string) []string
	Resolve(name string) (climate.Device, error)
}

var _ Directory = (*climate.Directory)(nil)

// SessionStore keeps one session per chat.
type SessionStore interface {
	GetOrCreate(chatID int64) conversation.Session
	Update(chatID int64, fn func(*conversation.Session) error) error
}

// Links are the static resources the bot points users to.
type Links struct {
	Website  string
	MapImage string
}

// Machine drives the per-chat dialogue: it validates selections against the
// directory, fetches measurements and replies through the messenger.
type Machine struct {
	dir       Directory
	source    climate.Source
	sessions  SessionStore
	out       Messenger
	formatter *climate.Formatter
	rec       tracking.Recorder
	links     Links
	log       *zap.Logger
}

// NewMachine creates a Machine. rec may be nil.
func NewMachine(
	dir Directory,
	source climate.Source,
	sessions SessionStore,
	out Messenger,
	formatter *climate.Formatter,
	rec tracking.Recorder,
	links Links,
	log *zap.Logger,
) *Machine {
	if rec == nil {
		rec = tracking.Noop{}
	}
	return &Machine{
		dir:       dir,
		source:    source,
		sessions:  sessions,
		out:       out,
		formatter: formatter,
		rec:       rec,
		links:     links,
		log:       log,
	}
}

// Handle applies one event. Errors that the user was already told about are
// returned wrapped so middleware can classify them.
func (m *Machine) Handle(ctx context.Context, ev Event) (Action, error) {
	switch ev.Kind {
	case EventStart:
		return m.start(ctx, ev)
	case EventRegionSelected:
		return m.regionSelected(ctx, ev)
	case EventDeviceSelected:
		return m.deviceSelected(ctx, ev)
	case EventCompare:
		return m.transition(ctx, ev, "compare_started", (*conversation.Session).StartCompare,
			func(s conversation.Session) error {
				return m.sendRegionMenu(ctx, ev.ChatID, textCompareFirstRegion)
			})
	case EventCancel:
		return m.reset(ctx, ev, "compare_canceled", (*conversation.Session).CancelCompare,
			func(s conversation.Session) error {
				return m.send(ctx, ev.ChatID, Message{Text: textCompareCanceled, Keyboard: commandMenu(deviceName(s))})
			})
	case EventChangeDevice:
		return m.reset(ctx, ev, "device_cleared", (*conversation.Session).ChangeDevice,
			func(conversation.Session) error {
				return m.sendRegionMenu(ctx, ev.ChatID, textChooseLocation)
			})
	case EventChangeLocation:
		return m.reset(ctx, ev, "location_cleared", (*conversation.Session).ChangeLocation,
			func(conversation.Session) error {
				return m.sendRegionMenu(ctx, ev.ChatID, textChooseLocation)
			})
	case EventCurrent:
		return m.current(ctx, ev)
	case EventHelp:
		return m.reply(ctx, ev, "help", Message{Text: textHelp, HTML: true})
	case EventWebsite:
		return m.reply(ctx, ev, "website", Message{Text: textWebsite, Keyboard: websiteButton(m.links.Website)})
	case EventMap:
		return m.showMap(ctx, ev)
	case EventShareLocation:
		return m.reply(ctx, ev, "location_requested", Message{Text: textShareLocation, Keyboard: shareLocationMenu()})
	case EventBack:
		return m.reply(ctx, ev, "main_menu", Message{Text: textBackToMenu, Keyboard: m.menuFor(ev.ChatID)})
	case EventLocationShared:
		return m.locationShared(ctx, ev)
	default:
		act, err := m.reply(ctx, ev, "invalid_input", Message{Text: textInvalidInput})
		if err != nil {
			return act, err
		}
		return act, fmt.Errorf("%w: %q", ErrInvalidInput, ev.Arg)
	}
}

// transition applies a pure session change and then notifies the user. The
// change is committed only if the notification was sent.
func (m *Machine) transition(
	ctx context.Context,
	ev Event,
	name string,
	apply func(*conversation.Session),
	notify func(conversation.Session) error,
) (Action, error) {
	act := Action{Name: name}
	err := m.sessions.Update(ev.ChatID, func(s *conversation.Session) error {
		act.From = s.Phase
		apply(s)
		act.To = s.Phase
		return notify(*s)
	})
	return act, err
}

// reset clears session state whether or not the confirmation reaches the
// user, then sends it.
func (m *Machine) reset(
	ctx context.Context,
	ev Event,
	name string,
	apply func(*conversation.Session),
	notify func(conversation.Session) error,
) (Action, error) {
	act := Action{Name: name}
	var after conversation.Session
	_ = m.sessions.Update(ev.ChatID, func(s *conversation.Session) error {
		act.From = s.Phase
		apply(s)
		act.To = s.Phase
		after = *s
		return nil
	})
	return act, notify(after)
}

// reply sends a message without touching the session.
func (m *Machine) reply(ctx context.Context, ev Event, name string, msg Message) (Action, error) {
	phase := m.sessions.GetOrCreate(ev.ChatID).Phase
	return Action{Name: name, From: phase, To: phase}, m.send(ctx, ev.ChatID, msg)
}

func (m *Machine) start(ctx context.Context, ev Event) (Action, error) {
	_ = m.rec.UserSeen(ctx, ev.User)

	if err := m.send(ctx, ev.ChatID, Message{Text: textWelcome}); err != nil {
		return Action{Name: "welcome"}, err
	}
	if err := m.send(ctx, ev.ChatID, Message{Text: greeting(ev.User.FirstName)}); err != nil {
		return Action{Name: "welcome"}, err
	}
	phase := m.sessions.GetOrCreate(ev.ChatID).Phase
	return Action{Name: "welcome", From: phase, To: phase}, m.sendRegionMenu(ctx, ev.ChatID, textChooseLocation)
}

func (m *Machine) regionSelected(ctx context.Context, ev Event) (Action, error) {
	region := ev.Arg
	return m.transition(ctx, ev, "device_menu",
		func(s *conversation.Session) { s.SelectRegion(region) },
		func(s conversation.Session) error {
			return m.send(ctx, ev.ChatID, Message{
				Text:     textChooseDevice,
				Keyboard: deviceMenu(m.dir.DevicesIn(region), s.Comparing()),
			})
		})
}

func (m *Machine) deviceSelected(ctx context.Context, ev Event) (Action, error) {
	dev, err := m.dir.Resolve(ev.Arg)
	if err != nil {
		phase := m.sessions.GetOrCreate(ev.ChatID).Phase
		act := Action{Name: "device_not_found", From: phase, To: phase}
		if sendErr := m.send(ctx, ev.ChatID, Message{Text: textDeviceNotFound, Keyboard: m.menuFor(ev.ChatID)}); sendErr != nil {
			return act, sendErr
		}
		return act, fmt.Errorf("device %q: %w", ev.Arg, err)
	}
	ref := conversation.DeviceRef{Name: dev.Name, ExternalID: dev.ExternalID}

	var act Action
	err = m.sessions.Update(ev.ChatID, func(s *conversation.Session) error {
		act.From = s.Phase
		defer func() { act.To = s.Phase }()

		if !s.Comparing() {
			act.Name = "device_report"
			return m.selectDevice(ctx, ev, s, ref)
		}

		if !s.PickForComparison(ref) {
			act.Name = "compare_first_picked"
			return m.sendRegionMenu(ctx, ev.ChatID, compareSecondRegion(ref.Name))
		}

		act.Name = "comparison_report"
		first, second := *s.Compare.First, *s.Compare.Second
		if err := m.compare(ctx, ev.ChatID, first, second, deviceName(*s)); err != nil {
			// device 2 is not committed; offer the same menu again
			m.notify(ctx, ev.ChatID, Message{
				Text:     textCompareFailed,
				Keyboard: deviceMenu(m.dir.DevicesIn(s.Compare.Region2), true),
			})
			return err
		}
		s.FinishCompare()
		return nil
	})
	if err != nil {
		act.To = act.From
	}
	return act, err
}

// selectDevice reports on ref and commits it as the selected device.
func (m *Machine) selectDevice(ctx context.Context, ev Event, s *conversation.Session, ref conversation.DeviceRef) error {
	menu := commandMenu(ref.Name)

	meas, err := m.source.Latest(ctx, ref.ExternalID)
	if err != nil {
		m.notify(ctx, ev.ChatID, Message{Text: textFetchFailed, Keyboard: menu})
		return fmt.Errorf("latest for %s: %w", ref.Name, err)
	}

	if err := m.sendReport(ctx, ev.ChatID, meas, ref.Name, menu); err != nil {
		return err
	}
	s.SelectDevice(ref)
	_ = m.rec.DeviceSelected(ctx, ev.User.ID, ref.Name, ref.ExternalID)
	return nil
}

func (m *Machine) current(ctx context.Context, ev Event) (Action, error) {
	_ = m.rec.UserSeen(ctx, ev.User)

	s := m.sessions.GetOrCreate(ev.ChatID)
	act := Action{Name: "device_report", From: s.Phase, To: s.Phase}

	if s.Device == nil {
		act.Name = "device_required"
		return act, m.send(ctx, ev.ChatID, Message{Text: textSelectDeviceFirst, Keyboard: commandMenu("")})
	}

	menu := commandMenu(s.Device.Name)
	meas, err := m.source.Latest(ctx, s.Device.ExternalID)
	if err != nil {
		m.notify(ctx, ev.ChatID, Message{Text: textFetchFailed, Keyboard: menu})
		return act, fmt.Errorf("latest for %s: %w", s.Device.Name, err)
	}
	return act, m.sendReport(ctx, ev.ChatID, meas, s.Device.Name, menu)
}

func (m *Machine) sendReport(ctx context.Context, chatID int64, meas climate.Measurement, device string, menu *Keyboard) error {
	report := m.formatter.FormatSingle(meas, device)
	if err := m.send(ctx, chatID, Message{Text: report, HTML: m.formatter.HTML(), Keyboard: menu}); err != nil {
		return err
	}
	return m.send(ctx, chatID, Message{Text: textNextMeasurement})
}

// compare fetches both devices concurrently and sends the comparison report.
func (m *Machine) compare(ctx context.Context, chatID int64, first, second conversation.Pick, current string) error {
	var (
		wg    sync.WaitGroup
		meas  [2]climate.Measurement
		errs  [2]error
		picks = [2]conversation.Pick{first, second}
	)
	for i := range picks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meas[i], errs[i] = m.source.Latest(ctx, picks[i].ExternalID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("latest for %s: %w", picks[i].Name, err)
		}
	}

	report := m.formatter.FormatComparison(first.Name, meas[0], second.Name, meas[1])
	return m.send(ctx, chatID, Message{Text: report, HTML: m.formatter.HTML(), Keyboard: commandMenu(current)})
}

func (m *Machine) showMap(ctx context.Context, ev Event) (Action, error) {
	act, err := m.reply(ctx, ev, "map", Message{Text: textMap})
	if err != nil {
		return act, err
	}
	return act, m.out.SendPhoto(ctx, ev.ChatID, m.links.MapImage)
}

func (m *Machine) locationShared(ctx context.Context, ev Event) (Action, error) {
	_ = m.rec.LocationShared(ctx, ev.User.ID, ev.Location)
	return m.reply(ctx, ev, "location_saved", Message{Text: textLocationSaved, Keyboard: m.menuFor(ev.ChatID)})
}

// sendRegionMenu prompts for a region, or explains that none are known.
func (m *Machine) sendRegionMenu(ctx context.Context, chatID int64, prompt string) error {
	regions := m.dir.RegionNames()
	if len(regions) == 0 {
		return m.send(ctx, chatID, Message{Text: textNoLocations, Keyboard: commandMenu("")})
	}
	return m.send(ctx, chatID, Message{Text: prompt, Keyboard: regionMenu(regions)})
}

// menuFor builds the command menu for a chat outside of a session update.
func (m *Machine) menuFor(chatID int64) *Keyboard {
	return commandMenu(deviceName(m.sessions.GetOrCreate(chatID)))
}

func (m *Machine) send(ctx context.Context, chatID int64, msg Message) error {
	if err := m.out.Send(ctx, chatID, msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// notify sends an error notice. The caller is already returning an error, so
// a failed send is only logged.
func (m *Machine) notify(ctx context.Context, chatID int64, msg Message) {
	if err := m.send(ctx, chatID, msg); err != nil {
		m.log.Warn("bot: error notice not delivered", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func deviceName(s conversation.Session) string {
	if s.Device == nil {
		return ""
	}
	return s.Device.Name
}
