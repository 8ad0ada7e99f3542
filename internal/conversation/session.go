// Package conversation holds per-user dialogue state and its transitions.
// Transitions are pure; the bot package decides when to apply them.
package conversation

import "time"

// Phase is where a user currently is in the dialogue.
type Phase int

const (
	// PhaseIdle: nothing selected yet, or selection was reset.
	PhaseIdle Phase = iota
	// PhaseRegionChosen: a region's device menu is showing.
	PhaseRegionChosen
	// PhaseDeviceChosen: a device is selected for /Current.
	PhaseDeviceChosen
	// PhaseCompareAwaitingRegion1: comparison started, no region picked yet.
	PhaseCompareAwaitingRegion1
	// PhaseCompareAwaitingDevice1: region 1 picked, device menu showing.
	PhaseCompareAwaitingDevice1
	// PhaseCompareAwaitingRegion2: device 1 fixed, waiting for region 2.
	PhaseCompareAwaitingRegion2
	// PhaseCompareAwaitingDevice2: region 2 picked, device menu showing.
	PhaseCompareAwaitingDevice2
)

var phaseNames = map[Phase]string{
	PhaseIdle:                   "idle",
	PhaseRegionChosen:           "region_chosen",
	PhaseDeviceChosen:           "device_chosen",
	PhaseCompareAwaitingRegion1: "compare_awaiting_region1",
	PhaseCompareAwaitingDevice1: "compare_awaiting_device1",
	PhaseCompareAwaitingRegion2: "compare_awaiting_region2",
	PhaseCompareAwaitingDevice2: "compare_awaiting_device2",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Comparing reports whether the phase belongs to a comparison flow.
func (p Phase) Comparing() bool {
	return p >= PhaseCompareAwaitingRegion1
}

// DeviceRef identifies a device by display name and upstream id.
type DeviceRef struct {
	Name       string
	ExternalID string
}

// Pick is a device chosen for a comparison, with the region it was picked from.
type Pick struct {
	DeviceRef
	Region string
}

// Comparison tracks an in-progress two-device comparison.
type Comparison struct {
	Region1 string
	Region2 string
	First   *Pick
	Second  *Pick
}

// Session is the conversational state of one chat. It is a value type;
// the store hands out copies and commits them back.
type Session struct {
	ChatID    int64
	Phase     Phase
	Region    string
	Device    *DeviceRef
	Compare   Comparison
	UpdatedAt time.Time
}

// New returns an idle session for a chat.
func New(chatID int64) Session {
	return Session{ChatID: chatID, Phase: PhaseIdle}
}

// Comparing reports whether a comparison is in progress.
func (s Session) Comparing() bool {
	return s.Phase.Comparing()
}

// restPhase is the phase to return to when a comparison ends.
func (s Session) restPhase() Phase {
	if s.Device != nil {
		return PhaseDeviceChosen
	}
	return PhaseIdle
}

// StartCompare drops any previous comparison and waits for the first region.
func (s *Session) StartCompare() {
	s.Compare = Comparison{}
	s.Phase = PhaseCompareAwaitingRegion1
}

// SelectRegion records the region whose devices are about to be listed.
func (s *Session) SelectRegion(region string) {
	switch {
	case !s.Comparing():
		s.Region = region
		s.Phase = PhaseRegionChosen
	case s.Compare.First == nil:
		s.Compare.Region1 = region
		s.Phase = PhaseCompareAwaitingDevice1
	default:
		s.Compare.Region2 = region
		s.Phase = PhaseCompareAwaitingDevice2
	}
}

// SelectDevice makes ref the device used for single reports. The region is
// only needed to show the menu and is dropped here.
func (s *Session) SelectDevice(ref DeviceRef) {
	d := ref
	s.Device = &d
	s.Region = ""
	s.Phase = PhaseDeviceChosen
}

// PickForComparison fills the next comparison slot. It returns true once
// both devices are known and the comparison can run.
func (s *Session) PickForComparison(ref DeviceRef) bool {
	if s.Compare.First == nil {
		s.Compare.First = &Pick{DeviceRef: ref, Region: s.Compare.Region1}
		s.Phase = PhaseCompareAwaitingRegion2
		return false
	}
	s.Compare.Second = &Pick{DeviceRef: ref, Region: s.Compare.Region2}
	return true
}

// FinishCompare clears the comparison and returns to the resting phase,
// keeping any earlier device selection.
func (s *Session) FinishCompare() {
	s.Compare = Comparison{}
	s.Phase = s.restPhase()
}

// CancelCompare is FinishCompare triggered by the user.
func (s *Session) CancelCompare() {
	s.FinishCompare()
}

// ChangeDevice forgets the selected device and any comparison.
func (s *Session) ChangeDevice() {
	s.Device = nil
	s.Region = ""
	s.Compare = Comparison{}
	s.Phase = PhaseIdle
}

// ChangeLocation clears comparison state only; the selected device stays.
func (s *Session) ChangeLocation() {
	s.Compare = Comparison{}
	s.Phase = s.restPhase()
}
