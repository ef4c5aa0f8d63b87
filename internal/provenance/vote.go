package provenance

import "math"

type tally struct {
	sum   float64
	count int
}

func (t *tally) add(v float64) {
	t.sum += v
	t.count++
}

func (t tally) mean() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// split classifies averaged votes into high (true) and low clusters with a
// one-dimensional two-means. Centres start at the extremes.
func split(votes []float64) []bool {
	out := make([]bool, len(votes))
	if len(votes) == 0 {
		return out
	}
	lo, hi := votes[0], votes[0]
	for _, v := range votes {
		lo, hi = min(lo, v), max(hi, v)
	}
	if hi-lo < 1e-9 {
		// no contrast between votes
		for i, v := range votes {
			out[i] = v >= 0.5
		}
		return out
	}

	const etol = 1e-6
	for range 300 {
		threshold := (lo + hi) / 2
		var highs, lows tally
		for i, v := range votes {
			out[i] = v >= threshold
			if out[i] {
				highs.add(v)
			} else {
				lows.add(v)
			}
		}
		if highs.count > 0 {
			hi = highs.mean()
		}
		if lows.count > 0 {
			lo = lows.mean()
		}
		if math.Abs((lo+hi)/2-threshold) < etol {
			break
		}
	}
	return out
}
