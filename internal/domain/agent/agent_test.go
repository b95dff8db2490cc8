package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

var (
	t0      = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	windows = ActivityWindows{Available: 5 * time.Minute, Away: 30 * time.Minute}
)

func newHuman(t *testing.T, maxChats int) *Agent {
	t.Helper()
	a, err := NewHuman(10, "Alice", maxChats, ids.RegionPtr(5), []ids.RegionID{7, 7, 0}, t0)
	require.NoError(t, err)
	require.NoError(t, a.SetID(1))
	return a
}

func TestNewHuman_Validation(t *testing.T) {
	_, err := NewHuman(0, "x", 1, nil, nil, t0)
	assert.Error(t, err)
	_, err = NewHuman(1, "", 1, nil, nil, t0)
	assert.Error(t, err)
	_, err = NewHuman(1, "x", 0, nil, nil, t0)
	assert.Error(t, err)

	a := newHuman(t, 2)
	assert.Equal(t, []ids.RegionID{7}, a.SecondaryRegions())
	assert.Equal(t, vo.StatusOffline, a.Status())
}

func TestDetectStatus_Windows(t *testing.T) {
	a := newHuman(t, 2)
	assert.Equal(t, vo.StatusOffline, a.DetectStatus(t0, windows), "never active")

	a.RecordActivity(t0)
	assert.Equal(t, vo.StatusAvailable, a.DetectStatus(t0.Add(5*time.Minute), windows))
	assert.Equal(t, vo.StatusAway, a.DetectStatus(t0.Add(6*time.Minute), windows))
	assert.Equal(t, vo.StatusAway, a.DetectStatus(t0.Add(30*time.Minute), windows))
	assert.Equal(t, vo.StatusOffline, a.DetectStatus(t0.Add(31*time.Minute), windows))

	a.Deactivate(t0)
	assert.Equal(t, vo.StatusOffline, a.DetectStatus(t0, windows))
}

func TestDetectStatus_BusyAtCapacity(t *testing.T) {
	a := newHuman(t, 1)
	a.RecordActivity(t0)
	require.True(t, a.ReserveChat())
	assert.Equal(t, vo.StatusBusy, a.DetectStatus(t0, windows))
}

func TestManualOverride_ExpiresInline(t *testing.T) {
	a := newHuman(t, 2)
	a.RecordActivity(t0)
	require.NoError(t, a.SetManualStatus(vo.StatusBusy, t0, time.Minute, windows))

	assert.Equal(t, vo.StatusBusy, a.EffectiveStatus(t0.Add(time.Minute), windows), "expiry instant is still active")
	assert.Equal(t, vo.StatusAvailable, a.EffectiveStatus(t0.Add(time.Minute+time.Second), windows))
}

func TestManualAvailable_DowngradedAtCapacity(t *testing.T) {
	a := newHuman(t, 1)
	require.NoError(t, a.SetManualStatus(vo.StatusAvailable, t0, time.Hour, windows))
	assert.Equal(t, vo.StatusAvailable, a.EffectiveStatus(t0, windows))

	require.True(t, a.ReserveChat())
	assert.Equal(t, vo.StatusBusy, a.Status())
	assert.Equal(t, vo.StatusBusy, a.EffectiveStatus(t0, windows))
}

func TestRefresh_ClearsStaleOverride(t *testing.T) {
	a := newHuman(t, 2)
	a.RecordActivity(t0)
	require.NoError(t, a.SetManualStatus(vo.StatusOffline, t0, time.Minute, windows))

	assert.False(t, a.Refresh(t0.Add(30*time.Second), windows))
	assert.Equal(t, vo.StatusOffline, a.Status())

	assert.True(t, a.Refresh(t0.Add(2*time.Minute), windows))
	assert.Nil(t, a.ManualStatus())
	assert.Nil(t, a.ManualStatusExpiry())
	assert.Equal(t, vo.StatusAvailable, a.Status())
	assert.Equal(t, vo.StatusAvailable, a.AutoDetectedStatus())

	assert.False(t, a.Refresh(t0.Add(2*time.Minute), windows), "second refresh is a no-op")
}

func TestReserveAndRelease(t *testing.T) {
	a := newHuman(t, 2)
	assert.True(t, a.ReserveChat())
	assert.True(t, a.ReserveChat())
	assert.False(t, a.ReserveChat())
	assert.Equal(t, 2, a.CurrentActiveChats())

	a.ReleaseChat()
	a.ReleaseChat()
	a.ReleaseChat()
	assert.Equal(t, 0, a.CurrentActiveChats())
}

func TestBot(t *testing.T) {
	bot, err := NewBot(99, "", nil, t0)
	require.NoError(t, err)

	assert.True(t, bot.IsBot())
	assert.Equal(t, "Support Bot", bot.DisplayName())
	assert.True(t, bot.ReserveChat())
	assert.Equal(t, 0, bot.CurrentActiveChats())
	assert.Error(t, bot.SetManualStatus(vo.StatusOffline, t0, time.Minute, windows))
	assert.Equal(t, vo.StatusAvailable, bot.EffectiveStatus(t0.Add(24*time.Hour), windows))
}

func TestServesRegion(t *testing.T) {
	a := newHuman(t, 1)
	assert.True(t, a.ServesRegion(nil))
	assert.True(t, a.ServesRegion(ids.RegionPtr(5)))
	assert.True(t, a.ServesRegion(ids.RegionPtr(7)))
	assert.False(t, a.ServesRegion(ids.RegionPtr(9)))
}

func TestAvailableApartFromLoad(t *testing.T) {
	t.Run("busy only because of load", func(t *testing.T) {
		a := newHuman(t, 1)
		a.RecordActivity(t0)
		a.Refresh(t0, windows)
		require.True(t, a.ReserveChat())
		assert.Equal(t, vo.StatusBusy, a.EffectiveStatus(t0, windows))
		assert.True(t, a.AvailableApartFromLoad(t0, windows))
	})

	t.Run("manual available at capacity", func(t *testing.T) {
		a := newHuman(t, 1)
		require.NoError(t, a.SetManualStatus(vo.StatusAvailable, t0, time.Hour, windows))
		require.True(t, a.ReserveChat())
		assert.True(t, a.AvailableApartFromLoad(t0, windows))
	})

	t.Run("manual busy", func(t *testing.T) {
		a := newHuman(t, 3)
		require.NoError(t, a.SetManualStatus(vo.StatusBusy, t0, time.Hour, windows))
		assert.False(t, a.AvailableApartFromLoad(t0, windows))
	})

	t.Run("manual offline with recent activity", func(t *testing.T) {
		a := newHuman(t, 3)
		a.RecordActivity(t0)
		require.NoError(t, a.SetManualStatus(vo.StatusOffline, t0, time.Hour, windows))
		assert.False(t, a.AvailableApartFromLoad(t0, windows))
	})

	t.Run("idle", func(t *testing.T) {
		a := newHuman(t, 1)
		a.RecordActivity(t0)
		require.True(t, a.ReserveChat())
		assert.False(t, a.AvailableApartFromLoad(t0.Add(10*time.Minute), windows))
	})
}

func TestReserveChat_KeepsUnavailableStatus(t *testing.T) {
	a := newHuman(t, 1)
	require.NoError(t, a.SetManualStatus(vo.StatusOffline, t0, time.Hour, windows))

	require.True(t, a.ReserveChat())
	assert.Equal(t, vo.StatusOffline, a.Status())
}
