package xdr

import (
	"time"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
)

// TimeValToTime converts nfstime3 to time.Time.
func TimeValToTime(tv types.TimeVal) time.Time {
	return time.Unix(int64(tv.Seconds), int64(tv.Nseconds))
}

// TimeToTimeVal converts time.Time to nfstime3. The zero time encodes as the
// epoch.
func TimeToTimeVal(t time.Time) types.TimeVal {
	if t.IsZero() {
		return types.TimeVal{}
	}
	return types.TimeVal{
		Seconds:  uint32(t.Unix()),
		Nseconds: uint32(t.Nanosecond()),
	}
}
