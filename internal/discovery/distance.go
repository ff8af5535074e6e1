package discovery

import "github.com/nao1215/discvscan/internal/model"

// MaxDistance is the largest log distance between two 256-bit node IDs.
const MaxDistance = 256

// queryDistances is the number of distances requested per FINDNODE.
const queryDistances = 3

// Distances returns the three log distances nearest to the distance between
// self and target, nearest first, kept within 1..256. A target at distance
// 256 yields 256, 255, 254.
func Distances(self, target model.NodeID) []uint {
	d := max(model.LogDistance(self, target), 1)

	out := make([]uint, 0, queryDistances)
	for step := 0; len(out) < queryDistances; step++ {
		for _, v := range []int{d - step, d + step} {
			if v < 1 || v > MaxDistance || len(out) == queryDistances {
				continue
			}
			if step == 0 && len(out) == 1 {
				continue
			}
			out = append(out, uint(v)) //nolint:gosec // v is within 1..256
		}
	}
	return out
}
