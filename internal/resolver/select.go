package resolver

import "time"

// Select picks the best candidate for a track of the given duration. A zero
// duration skips the duration filter entirely.
func Select(candidates []Candidate, duration time.Duration, threshold time.Duration) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, &NotFoundError{Reason: "no candidates"}
	}

	pool := candidates
	if duration > 0 {
		var err error
		pool, err = closestDuration(candidates, duration, threshold)
		if err != nil {
			return Candidate{}, err
		}
	}

	pool = prefer(pool, func(c Candidate) bool { return !c.Instrumental })
	pool = prefer(pool, func(c Candidate) bool { return c.HasSynced })

	return pool[0], nil
}

func closestDuration(candidates []Candidate, duration time.Duration, threshold time.Duration) ([]Candidate, error) {
	diffs := make([]time.Duration, len(candidates))
	closest := time.Duration(-1)
	for i, c := range candidates {
		diffs[i] = absDuration(c.Duration - duration)
		if closest < 0 || diffs[i] < closest {
			closest = diffs[i]
		}
	}

	if closest > threshold {
		return nil, &NoMatchWithinThresholdError{
			Candidates: len(candidates),
			Closest:    closest,
			Threshold:  threshold,
		}
	}

	var out []Candidate
	for i, c := range candidates {
		if diffs[i] == closest {
			out = append(out, c)
		}
	}
	return out, nil
}

// prefer keeps the candidates matching keep, or all of them if none do.
func prefer(candidates []Candidate, keep func(Candidate) bool) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
