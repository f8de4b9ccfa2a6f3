package timegrid

import (
	"sort"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
)

// Nearest maps each timestamp to the index of the closest reference point.
//
// refs must be strictly increasing. When a timestamp is equidistant from two
// neighbouring references the earlier one wins, matching a stable argmin over
// an ascending sequence. Each lookup is a binary search, so the cost is
// O(N log M) rather than an N×M difference matrix.
func Nearest(timestamps, refs []time.Time) ([]int, error) {
	if len(refs) == 0 {
		return nil, errs.ErrConfiguration.New("no reference timestamps to assign to")
	}
	for i := 1; i < len(refs); i++ {
		if !refs[i-1].Before(refs[i]) {
			return nil, errs.ErrConfiguration.New("reference timestamps are not strictly increasing")
		}
	}
	return nearest(timestamps, refs), nil
}

func nearest(timestamps, refs []time.Time) []int {
	out := make([]int, len(timestamps))
	last := len(refs) - 1

	for i, t := range timestamps {
		// first reference at or after t
		k := sort.Search(len(refs), func(j int) bool { return !refs[j].Before(t) })
		switch {
		case k == 0:
			out[i] = 0
		case k > last:
			out[i] = last
		default:
			below := t.Sub(refs[k-1])
			above := refs[k].Sub(t)
			if below <= above {
				out[i] = k - 1
			} else {
				out[i] = k
			}
		}
	}

	return out
}
