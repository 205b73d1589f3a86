package room

import "math/rand"

// genSeeds fills a Match's LFSR seed table. Per spec.md §4.3.4, a seed of
// zero produces a degenerate (all-zero) LFSR stream, so seeds are generated
// by rejection sampling: draw until the low byte is non-zero.
func genSeeds(rng *rand.Rand, seeds *[MaxLFSRSeeds]uint32) {
	for i := range seeds {
		var s uint32
		for {
			s = rng.Uint32()
			if s&0xFF != 0 {
				break
			}
		}
		seeds[i] = s
	}
}
