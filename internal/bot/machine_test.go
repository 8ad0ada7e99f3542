package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/climatenet-bot/internal/climate"
	"github.com/i474232898/climatenet-bot/internal/conversation"
	"github.com/i474232898/climatenet-bot/internal/store"
	"github.com/i474232898/climatenet-bot/internal/tracking"
)

type sentMessage struct {
	chatID int64
	msg    Message
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []sentMessage
	photos []string
	err    error
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, msg: msg})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, _ int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, url)
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.msg.Text
	}
	return out
}

func (f *fakeMessenger) last() Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1].msg
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.photos = nil
}

type fakeSource struct {
	mu       sync.Mutex
	devices  []climate.Device
	readings map[string]climate.Measurement
	failing  map[string]error
	calls    map[string]int
}

func (f *fakeSource) ListDevices(context.Context) ([]climate.Device, error) {
	return f.devices, nil
}

func (f *fakeSource) Latest(_ context.Context, id string) (climate.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	if err := f.failing[id]; err != nil {
		return climate.Measurement{}, err
	}
	return f.readings[id], nil
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type captureRecorder struct {
	mu        sync.Mutex
	users     []tracking.User
	selected  []string
	locations []tracking.Coordinates
}

func (r *captureRecorder) UserSeen(_ context.Context, u tracking.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
	return nil
}

func (r *captureRecorder) DeviceSelected(_ context.Context, _ int64, name, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = append(r.selected, name)
	return nil
}

func (r *captureRecorder) LocationShared(_ context.Context, _ int64, at tracking.Coordinates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, at)
	return nil
}

func (r *captureRecorder) CommandHandled(context.Context, tracking.Command) error { return nil }

type machineFixture struct {
	machine  *Machine
	out      *fakeMessenger
	source   *fakeSource
	sessions *store.MemoryStore
	rec      *captureRecorder
}

const testChat int64 = 100

func newMachineFixture(t *testing.T, devices ...climate.Device) *machineFixture {
	t.Helper()

	if devices == nil {
		devices = []climate.Device{
			{Name: "TUMO", RegionName: "Yerevan", ExternalID: "d-tumo"},
			{Name: "AUA", RegionName: "Yerevan", ExternalID: "d-aua"},
			{Name: "Gyumri", RegionName: "Shirak", ExternalID: "d-gyumri"},
		}
	}
	src := &fakeSource{
		devices: devices,
		readings: map[string]climate.Measurement{
			"d-tumo":   {Timestamp: "2024-06-01 12:00:00", Temperature: climate.Float(24.4), UV: climate.Float(5)},
			"d-aua":    {Timestamp: "2024-06-01 12:00:00", Temperature: climate.Float(23)},
			"d-gyumri": {Timestamp: "2024-06-01 12:05:00", Temperature: climate.Float(18.6), UV: climate.Float(2)},
		},
	}
	dir := climate.NewDirectory(src, zap.NewNop())
	require.NoError(t, dir.Load(context.Background()))

	f := &machineFixture{
		out:      &fakeMessenger{},
		source:   src,
		sessions: store.NewMemoryStore(0, 0),
		rec:      &captureRecorder{},
	}
	f.machine = NewMachine(dir, src, f.sessions, f.out,
		climate.NewFormatter(false, []string{"AUA"}), f.rec,
		Links{Website: "https://climatenet.am/en/", MapImage: "https://example.com/map.png"},
		zap.NewNop())
	return f
}

func (f *machineFixture) handle(t *testing.T, kind EventKind, arg string) (Action, error) {
	t.Helper()
	return f.machine.Handle(context.Background(), Event{
		ChatID: testChat,
		User:   tracking.User{ID: 7, FirstName: "Ani"},
		Kind:   kind,
		Arg:    arg,
	})
}

func (f *machineFixture) must(t *testing.T, kind EventKind, arg string) Action {
	t.Helper()
	act, err := f.handle(t, kind, arg)
	require.NoError(t, err)
	return act
}

func (f *machineFixture) session() conversation.Session {
	return f.sessions.GetOrCreate(testChat)
}

func keyboardLabels(k *Keyboard) []string {
	if k == nil {
		return nil
	}
	var out []string
	for _, row := range k.Rows {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

func TestStartGreetsAndOffersRegions(t *testing.T) {
	f := newMachineFixture(t)

	f.must(t, EventStart, "/start")

	texts := f.out.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, textWelcome, texts[0])
	assert.Contains(t, texts[1], "Hello Ani!")
	assert.Equal(t, textChooseLocation, texts[2])
	assert.Equal(t, []string{"Yerevan", "Shirak"}, keyboardLabels(f.out.last().Keyboard))
	assert.Len(t, f.rec.users, 1)
}

func TestStartWithoutRegions(t *testing.T) {
	f := newMachineFixture(t, []climate.Device{}...)

	f.must(t, EventStart, "/start")

	assert.Equal(t, textNoLocations, f.out.last().Text)
}

func TestRegionSelectedShowsDevices(t *testing.T) {
	f := newMachineFixture(t)

	act := f.must(t, EventRegionSelected, "Yerevan")

	assert.Equal(t, conversation.PhaseIdle, act.From)
	assert.Equal(t, conversation.PhaseRegionChosen, act.To)
	msg := f.out.last()
	assert.Equal(t, textChooseDevice, msg.Text)
	assert.Equal(t, []string{"TUMO", "AUA", "/Change_location"}, keyboardLabels(msg.Keyboard))
	assert.Equal(t, "Yerevan", f.session().Region)
}

func TestDeviceSelectedSendsReport(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventRegionSelected, "Yerevan")
	f.out.reset()

	act := f.must(t, EventDeviceSelected, "TUMO")

	assert.Equal(t, "device_report", act.Name)
	texts := f.out.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Device: TUMO")
	assert.Contains(t, texts[0], "Temperature: 24°C")
	assert.Equal(t, textNextMeasurement, texts[1])
	assert.Contains(t, keyboardLabels(f.out.sent[0].msg.Keyboard), "/Current 📍TUMO")

	s := f.session()
	assert.Equal(t, conversation.PhaseDeviceChosen, s.Phase)
	require.NotNil(t, s.Device)
	assert.Equal(t, "d-tumo", s.Device.ExternalID)
	assert.Empty(t, s.Region)
	assert.Equal(t, []string{"TUMO"}, f.rec.selected)
}

func TestDeviceSelectedImpairedFooter(t *testing.T) {
	f := newMachineFixture(t)

	f.must(t, EventDeviceSelected, "AUA")

	assert.Contains(t, f.out.texts()[0], "technical issues")
}

func TestDeviceFetchFailureLeavesSessionUnchanged(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventDeviceSelected, "TUMO")
	f.source.failing = map[string]error{"d-gyumri": climate.ErrUpstreamUnavailable}
	before := f.session()

	_, err := f.handle(t, EventDeviceSelected, "Gyumri")

	assert.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
	assert.Equal(t, textFetchFailed, f.out.last().Text)
	after := f.session()
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, "TUMO", after.Device.Name)
	assert.Equal(t, []string{"TUMO"}, f.rec.selected)
}

func TestNoDataIsReportedLikeUpstreamFailure(t *testing.T) {
	f := newMachineFixture(t)
	f.source.failing = map[string]error{"d-tumo": climate.ErrNoData}

	_, err := f.handle(t, EventDeviceSelected, "TUMO")

	assert.ErrorIs(t, err, climate.ErrNoData)
	assert.Equal(t, textFetchFailed, f.out.last().Text)
	assert.Nil(t, f.session().Device)
}

func TestUnknownDeviceIsRejected(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	before := f.session()

	_, err := f.handle(t, EventDeviceSelected, "Atlantis")

	assert.ErrorIs(t, err, climate.ErrUnknownDevice)
	assert.Equal(t, textDeviceNotFound, f.out.last().Text)
	assert.Equal(t, before.Phase, f.session().Phase)
	assert.Nil(t, f.session().Compare.First)
	assert.Equal(t, 0, f.source.totalCalls())
}

func TestComparisonFlow(t *testing.T) {
	f := newMachineFixture(t)

	f.must(t, EventCompare, "/Compare")
	assert.Equal(t, textCompareFirstRegion, f.out.last().Text)
	assert.Equal(t, conversation.PhaseCompareAwaitingRegion1, f.session().Phase)

	f.must(t, EventRegionSelected, "Yerevan")
	assert.Equal(t, []string{"TUMO", "AUA", "/Cancel"}, keyboardLabels(f.out.last().Keyboard))

	f.must(t, EventDeviceSelected, "TUMO")
	assert.Equal(t, compareSecondRegion("TUMO"), f.out.last().Text)
	assert.Equal(t, conversation.PhaseCompareAwaitingRegion2, f.session().Phase)
	assert.Equal(t, 0, f.source.totalCalls())

	f.must(t, EventRegionSelected, "Shirak")
	assert.Equal(t, conversation.PhaseCompareAwaitingDevice2, f.session().Phase)
	f.out.reset()

	act := f.must(t, EventDeviceSelected, "Gyumri")

	assert.Equal(t, "comparison_report", act.Name)
	texts := f.out.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Devices: TUMO vs Gyumri")
	assert.Contains(t, texts[0], "TUMO is warmer")
	assert.Equal(t, 2, f.source.totalCalls())

	s := f.session()
	assert.False(t, s.Comparing())
	assert.Equal(t, conversation.PhaseIdle, s.Phase)
	assert.Equal(t, conversation.Comparison{}, s.Compare)
	assert.Nil(t, s.Device)
	assert.Empty(t, f.rec.selected)
}

func TestComparisonKeepsEarlierSelection(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventDeviceSelected, "AUA")

	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	f.must(t, EventDeviceSelected, "TUMO")
	f.must(t, EventRegionSelected, "Shirak")
	f.must(t, EventDeviceSelected, "Gyumri")

	s := f.session()
	assert.Equal(t, conversation.PhaseDeviceChosen, s.Phase)
	require.NotNil(t, s.Device)
	assert.Equal(t, "AUA", s.Device.Name)
	assert.Contains(t, keyboardLabels(f.out.last().Keyboard), "/Current 📍AUA")
}

func TestComparisonFetchFailureKeepsSecondStep(t *testing.T) {
	f := newMachineFixture(t)
	f.source.failing = map[string]error{"d-gyumri": climate.ErrUpstreamUnavailable}

	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	f.must(t, EventDeviceSelected, "TUMO")
	f.must(t, EventRegionSelected, "Shirak")

	_, err := f.handle(t, EventDeviceSelected, "Gyumri")

	assert.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
	msg := f.out.last()
	assert.Equal(t, textCompareFailed, msg.Text)
	assert.Equal(t, []string{"Gyumri", "/Cancel"}, keyboardLabels(msg.Keyboard))

	s := f.session()
	assert.Equal(t, conversation.PhaseCompareAwaitingDevice2, s.Phase)
	require.NotNil(t, s.Compare.First)
	assert.Equal(t, "TUMO", s.Compare.First.Name)
	assert.Nil(t, s.Compare.Second)

	// retry once upstream recovers
	f.source.failing = nil
	f.must(t, EventDeviceSelected, "Gyumri")
	assert.False(t, f.session().Comparing())
}

func TestCancelComparison(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	f.must(t, EventDeviceSelected, "TUMO")

	act := f.must(t, EventCancel, "/Cancel")

	assert.Equal(t, conversation.PhaseCompareAwaitingRegion2, act.From)
	assert.Equal(t, conversation.PhaseIdle, act.To)
	assert.Equal(t, textCompareCanceled, f.out.last().Text)
	assert.Equal(t, conversation.Comparison{}, f.session().Compare)
}

func TestResetsApplyWhenConfirmationFails(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventDeviceSelected, "TUMO")
	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	f.must(t, EventDeviceSelected, "AUA")
	f.out.err = errors.New("telegram down")

	act, err := f.handle(t, EventCancel, "/Cancel")
	assert.Error(t, err)
	assert.Equal(t, conversation.PhaseDeviceChosen, act.To)
	assert.Equal(t, conversation.Comparison{}, f.session().Compare)
	assert.Equal(t, "TUMO", f.session().Device.Name)

	_, err = f.handle(t, EventChangeDevice, "/Change_device")
	assert.Error(t, err)
	assert.Nil(t, f.session().Device)
	assert.Equal(t, conversation.PhaseIdle, f.session().Phase)
}

func TestCompareRestartClearsPreviousPicks(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventCompare, "/Compare")
	f.must(t, EventRegionSelected, "Yerevan")
	f.must(t, EventDeviceSelected, "TUMO")

	f.must(t, EventCompare, "/Compare")

	s := f.session()
	assert.Equal(t, conversation.PhaseCompareAwaitingRegion1, s.Phase)
	assert.Nil(t, s.Compare.First)
}

func TestCurrent(t *testing.T) {
	f := newMachineFixture(t)

	f.must(t, EventCurrent, "/Current 📍")
	assert.Equal(t, textSelectDeviceFirst, f.out.last().Text)

	f.must(t, EventDeviceSelected, "Gyumri")
	f.out.reset()

	f.must(t, EventCurrent, "/Current 📍Gyumri")
	texts := f.out.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Device: Gyumri")
	assert.Equal(t, textNextMeasurement, texts[1])
	assert.Len(t, f.rec.users, 2)
}

func TestCurrentFetchFailure(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventDeviceSelected, "Gyumri")
	f.source.failing = map[string]error{"d-gyumri": climate.ErrUpstreamUnavailable}

	_, err := f.handle(t, EventCurrent, "/Current")

	assert.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
	assert.Equal(t, textFetchFailed, f.out.last().Text)
	assert.Equal(t, "Gyumri", f.session().Device.Name)
}

func TestChangeDeviceAndLocation(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventDeviceSelected, "TUMO")

	f.must(t, EventChangeLocation, "/Change_location")
	assert.Equal(t, textChooseLocation, f.out.last().Text)
	assert.Equal(t, "TUMO", f.session().Device.Name)

	f.must(t, EventChangeDevice, "/Change_device")
	assert.Equal(t, textChooseLocation, f.out.last().Text)
	assert.Nil(t, f.session().Device)
	assert.Equal(t, conversation.PhaseIdle, f.session().Phase)
}

func TestStaticReplies(t *testing.T) {
	f := newMachineFixture(t)

	f.must(t, EventHelp, "/Help")
	help := f.out.last()
	assert.True(t, help.HTML)
	assert.Contains(t, help.Text, "/Compare 🔍")

	f.must(t, EventWebsite, "/Website")
	site := f.out.last()
	require.NotNil(t, site.Keyboard)
	assert.True(t, site.Keyboard.Inline)
	assert.Equal(t, "https://climatenet.am/en/", site.Keyboard.Rows[0][0].URL)

	f.must(t, EventMap, "/Map")
	assert.Equal(t, textMap, f.out.last().Text)
	assert.Equal(t, []string{"https://example.com/map.png"}, f.out.photos)

	f.must(t, EventShareLocation, "/Share_location")
	share := f.out.last()
	assert.True(t, share.Keyboard.OneTime)
	assert.True(t, share.Keyboard.Rows[0][0].RequestLocation)

	f.must(t, EventBack, "/back")
	assert.Equal(t, textBackToMenu, f.out.last().Text)
	assert.Equal(t, 0, f.source.totalCalls())
}

func TestLocationShared(t *testing.T) {
	f := newMachineFixture(t)

	_, err := f.machine.Handle(context.Background(), Event{
		ChatID:   testChat,
		User:     tracking.User{ID: 7},
		Kind:     EventLocationShared,
		Location: tracking.Coordinates{Latitude: 40.1, Longitude: 44.5},
	})

	require.NoError(t, err)
	assert.Equal(t, textLocationSaved, f.out.last().Text)
	assert.Equal(t, []tracking.Coordinates{{Latitude: 40.1, Longitude: 44.5}}, f.rec.locations)
}

func TestInvalidInput(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventCompare, "/Compare")
	before := f.session()

	_, err := f.handle(t, EventInvalidInput, "what's the weather")

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, strings.HasPrefix(f.out.last().Text, "❗ Please use a valid command."))
	assert.Equal(t, before.Phase, f.session().Phase)
}

func TestUsersAreIndependent(t *testing.T) {
	f := newMachineFixture(t)
	f.must(t, EventCompare, "/Compare")

	_, err := f.machine.Handle(context.Background(), Event{ChatID: testChat + 1, Kind: EventDeviceSelected, Arg: "TUMO"})
	require.NoError(t, err)

	assert.True(t, f.session().Comparing())
	other := f.sessions.GetOrCreate(testChat + 1)
	assert.False(t, other.Comparing())
	assert.Equal(t, "TUMO", other.Device.Name)
}
