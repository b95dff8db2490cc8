package agent

import (
	"fmt"
	"slices"
	"time"

	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// ActivityWindows bound the automatic status classification: activity within
// Available reads as available, within Away as away, anything older as offline.
type ActivityWindows struct {
	Available time.Duration
	Away      time.Duration
}

type Agent struct {
	id                 ids.AgentID
	userID             ids.UserID
	kind               vo.Kind
	displayName        string
	isActive           bool
	primaryRegion      *ids.RegionID
	secondaryRegions   []ids.RegionID
	currentActiveChats int
	maxConcurrentChats int
	status             vo.Status
	autoDetectedStatus vo.Status
	manualStatus       *vo.Status
	manualStatusSetAt  *time.Time
	manualStatusExpiry *time.Time
	lastActivityAt     *time.Time
	version            int
	createdAt          time.Time
	updatedAt          time.Time
}

// NewHuman provisions a staff agent. It starts offline until the first activity.
func NewHuman(userID ids.UserID, displayName string, maxConcurrentChats int, primaryRegion *ids.RegionID, secondaryRegions []ids.RegionID, now time.Time) (*Agent, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if displayName == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if maxConcurrentChats <= 0 {
		return nil, fmt.Errorf("max concurrent chats must be positive")
	}

	return &Agent{
		userID:             userID,
		kind:               vo.KindHuman,
		displayName:        displayName,
		isActive:           true,
		primaryRegion:      primaryRegion,
		secondaryRegions:   normalizeRegions(secondaryRegions),
		maxConcurrentChats: maxConcurrentChats,
		status:             vo.StatusOffline,
		autoDetectedStatus: vo.StatusOffline,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// NewBot provisions the virtual overflow agent for a region, or the global
// one when region is nil.
func NewBot(userID ids.UserID, displayName string, region *ids.RegionID, now time.Time) (*Agent, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if displayName == "" {
		displayName = "Support Bot"
	}

	return &Agent{
		userID:             userID,
		kind:               vo.KindBot,
		displayName:        displayName,
		isActive:           true,
		primaryRegion:      region,
		status:             vo.StatusAvailable,
		autoDetectedStatus: vo.StatusAvailable,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// Snapshot is the persisted form used to rebuild an Agent.
type Snapshot struct {
	ID                 ids.AgentID
	UserID             ids.UserID
	Kind               vo.Kind
	DisplayName        string
	IsActive           bool
	PrimaryRegion      *ids.RegionID
	SecondaryRegions   []ids.RegionID
	CurrentActiveChats int
	MaxConcurrentChats int
	Status             vo.Status
	AutoDetectedStatus vo.Status
	ManualStatus       *vo.Status
	ManualStatusSetAt  *time.Time
	ManualStatusExpiry *time.Time
	LastActivityAt     *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func ReconstructAgent(s Snapshot) (*Agent, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("agent ID cannot be zero")
	}
	if !s.Kind.IsValid() {
		return nil, fmt.Errorf("invalid agent kind: %q", s.Kind)
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid agent status: %q", s.Status)
	}
	if s.ManualStatus != nil && !s.ManualStatus.IsValid() {
		return nil, fmt.Errorf("invalid manual status: %q", *s.ManualStatus)
	}
	auto := s.AutoDetectedStatus
	if !auto.IsValid() {
		auto = vo.StatusOffline
	}

	return &Agent{
		id:                 s.ID,
		userID:             s.UserID,
		kind:               s.Kind,
		displayName:        s.DisplayName,
		isActive:           s.IsActive,
		primaryRegion:      s.PrimaryRegion,
		secondaryRegions:   normalizeRegions(s.SecondaryRegions),
		currentActiveChats: max(s.CurrentActiveChats, 0),
		maxConcurrentChats: s.MaxConcurrentChats,
		status:             s.Status,
		autoDetectedStatus: auto,
		manualStatus:       s.ManualStatus,
		manualStatusSetAt:  s.ManualStatusSetAt,
		manualStatusExpiry: s.ManualStatusExpiry,
		lastActivityAt:     s.LastActivityAt,
		version:            s.Version,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}, nil
}

func (a *Agent) ID() ids.AgentID                  { return a.id }
func (a *Agent) UserID() ids.UserID               { return a.userID }
func (a *Agent) Kind() vo.Kind                    { return a.kind }
func (a *Agent) DisplayName() string              { return a.displayName }
func (a *Agent) IsActive() bool                   { return a.isActive }
func (a *Agent) PrimaryRegion() *ids.RegionID     { return a.primaryRegion }
func (a *Agent) SecondaryRegions() []ids.RegionID { return slices.Clone(a.secondaryRegions) }
func (a *Agent) CurrentActiveChats() int          { return a.currentActiveChats }
func (a *Agent) MaxConcurrentChats() int          { return a.maxConcurrentChats }
func (a *Agent) Status() vo.Status                { return a.status }
func (a *Agent) AutoDetectedStatus() vo.Status    { return a.autoDetectedStatus }
func (a *Agent) ManualStatus() *vo.Status         { return a.manualStatus }
func (a *Agent) ManualStatusSetAt() *time.Time    { return a.manualStatusSetAt }
func (a *Agent) ManualStatusExpiry() *time.Time   { return a.manualStatusExpiry }
func (a *Agent) LastActivityAt() *time.Time       { return a.lastActivityAt }
func (a *Agent) Version() int                     { return a.version }
func (a *Agent) CreatedAt() time.Time             { return a.createdAt }
func (a *Agent) UpdatedAt() time.Time             { return a.updatedAt }

func (a *Agent) IsBot() bool {
	return a.kind == vo.KindBot
}

func (a *Agent) SetID(id ids.AgentID) error {
	if a.id != 0 {
		return fmt.Errorf("agent ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("agent ID cannot be zero")
	}
	a.id = id
	return nil
}

// IncrementVersion is called by repositories after a successful optimistic update.
func (a *Agent) IncrementVersion() {
	a.version++
}

// HasCapacity reports whether one more conversation fits. Bots always fit.
func (a *Agent) HasCapacity() bool {
	if a.IsBot() {
		return true
	}
	return a.currentActiveChats < a.maxConcurrentChats
}

func (a *Agent) AtCapacity() bool {
	return !a.HasCapacity()
}

// ServesRegion is true when region is nil, equals the primary region or is
// one of the secondary regions.
func (a *Agent) ServesRegion(region *ids.RegionID) bool {
	if region == nil {
		return true
	}
	if a.primaryRegion != nil && *a.primaryRegion == *region {
		return true
	}
	return slices.Contains(a.secondaryRegions, *region)
}

// ManualOverrideActive is true while a manual status exists and now has not
// passed its expiry.
func (a *Agent) ManualOverrideActive(now time.Time) bool {
	if a.IsBot() || a.manualStatus == nil || a.manualStatusExpiry == nil {
		return false
	}
	return !now.After(*a.manualStatusExpiry)
}

// DetectStatus classifies the agent purely from activity and capacity.
func (a *Agent) DetectStatus(now time.Time, w ActivityWindows) vo.Status {
	if !a.isActive {
		return vo.StatusOffline
	}
	if a.IsBot() {
		return vo.StatusAvailable
	}
	if a.lastActivityAt == nil {
		return vo.StatusOffline
	}

	idle := now.Sub(*a.lastActivityAt)
	switch {
	case idle <= w.Available:
		if a.AtCapacity() {
			return vo.StatusBusy
		}
		return vo.StatusAvailable
	case idle <= w.Away:
		return vo.StatusAway
	default:
		return vo.StatusOffline
	}
}

// EffectiveStatus is the status used for routing: an unexpired manual
// override wins, except that a full agent never reads as available.
func (a *Agent) EffectiveStatus(now time.Time, w ActivityWindows) vo.Status {
	if !a.isActive {
		return vo.StatusOffline
	}
	if a.IsBot() {
		return vo.StatusAvailable
	}
	if a.ManualOverrideActive(now) {
		s := *a.manualStatus
		if s == vo.StatusAvailable && a.AtCapacity() {
			return vo.StatusBusy
		}
		return s
	}
	return a.DetectStatus(now, w)
}

// AvailableApartFromLoad reports whether the agent is available for routing
// when its own load is ignored: Busy caused only by a full slot count still
// qualifies, a manual Busy, Away or Offline does not.
func (a *Agent) AvailableApartFromLoad(now time.Time, w ActivityWindows) bool {
	switch a.EffectiveStatus(now, w) {
	case vo.StatusAvailable:
		return true
	case vo.StatusBusy:
		if a.ManualOverrideActive(now) {
			return *a.manualStatus == vo.StatusAvailable
		}
		return a.lastActivityAt != nil && now.Sub(*a.lastActivityAt) <= w.Available
	}
	return false
}

// SetManualStatus records a staff override valid for ttl.
func (a *Agent) SetManualStatus(s vo.Status, now time.Time, ttl time.Duration, w ActivityWindows) error {
	if a.IsBot() {
		return fmt.Errorf("bot agents do not accept manual status")
	}
	if !s.IsValid() {
		return fmt.Errorf("invalid agent status: %q", s)
	}
	if ttl <= 0 {
		return fmt.Errorf("manual status TTL must be positive")
	}

	expiry := now.Add(ttl)
	setAt := now
	a.manualStatus = &s
	a.manualStatusSetAt = &setAt
	a.manualStatusExpiry = &expiry
	a.status = a.EffectiveStatus(now, w)
	a.updatedAt = now
	return nil
}

// Refresh re-derives the persisted status at now. Stale override bookkeeping
// is cleared and the automatic classification stored. It reports whether any
// persisted field changed.
func (a *Agent) Refresh(now time.Time, w ActivityWindows) bool {
	changed := false

	if !a.ManualOverrideActive(now) && a.manualStatus != nil {
		a.manualStatus = nil
		a.manualStatusSetAt = nil
		a.manualStatusExpiry = nil
		changed = true
	}

	if a.manualStatus == nil {
		auto := a.DetectStatus(now, w)
		if auto != a.autoDetectedStatus {
			a.autoDetectedStatus = auto
			changed = true
		}
	}

	effective := a.EffectiveStatus(now, w)
	if effective != a.status {
		a.status = effective
		changed = true
	}

	if changed {
		a.updatedAt = now
	}
	return changed
}

// RecordActivity stamps the last activity time.
func (a *Agent) RecordActivity(now time.Time) {
	t := now
	a.lastActivityAt = &t
	a.updatedAt = now
}

// ReserveChat takes one capacity slot. An available agent flips to busy when
// the last slot is used; other statuses are kept. Bots never consume slots.
func (a *Agent) ReserveChat() bool {
	if a.IsBot() {
		return true
	}
	if !a.isActive || a.currentActiveChats >= a.maxConcurrentChats {
		return false
	}
	a.currentActiveChats++
	if a.currentActiveChats >= a.maxConcurrentChats && a.status == vo.StatusAvailable {
		a.status = vo.StatusBusy
	}
	return true
}

// ReleaseChat returns one slot, never going below zero.
func (a *Agent) ReleaseChat() {
	if a.IsBot() {
		return
	}
	if a.currentActiveChats > 0 {
		a.currentActiveChats--
	}
}

func (a *Agent) ResetActiveChats() {
	a.currentActiveChats = 0
}

func (a *Agent) Deactivate(now time.Time) {
	a.isActive = false
	a.status = vo.StatusOffline
	a.updatedAt = now
}

func (a *Agent) Activate(now time.Time) {
	a.isActive = true
	a.updatedAt = now
}

func (a *Agent) SetMaxConcurrentChats(n int) error {
	if a.IsBot() {
		return nil
	}
	if n <= 0 {
		return fmt.Errorf("max concurrent chats must be positive")
	}
	a.maxConcurrentChats = n
	return nil
}

func normalizeRegions(regions []ids.RegionID) []ids.RegionID {
	out := make([]ids.RegionID, 0, len(regions))
	for _, r := range regions {
		if r != 0 && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot exports the persisted form of the agent.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		ID:                 a.id,
		UserID:             a.userID,
		Kind:               a.kind,
		DisplayName:        a.displayName,
		IsActive:           a.isActive,
		PrimaryRegion:      a.primaryRegion,
		SecondaryRegions:   slices.Clone(a.secondaryRegions),
		CurrentActiveChats: a.currentActiveChats,
		MaxConcurrentChats: a.maxConcurrentChats,
		Status:             a.status,
		AutoDetectedStatus: a.autoDetectedStatus,
		ManualStatus:       a.manualStatus,
		ManualStatusSetAt:  a.manualStatusSetAt,
		ManualStatusExpiry: a.manualStatusExpiry,
		LastActivityAt:     a.lastActivityAt,
		Version:            a.version,
		CreatedAt:          a.createdAt,
		UpdatedAt:          a.updatedAt,
	}
}
