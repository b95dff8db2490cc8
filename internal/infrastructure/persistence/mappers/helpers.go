package mappers

import (
	"time"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

func regionToUint(r *ids.RegionID) *uint {
	if r == nil {
		return nil
	}
	v := uint(*r)
	return &v
}

func uintToRegion(v *uint) *ids.RegionID {
	if v == nil {
		return nil
	}
	return ids.RegionPtr(ids.RegionID(*v))
}

// utcPtr normalizes driver-returned times, which may carry time.Local.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
