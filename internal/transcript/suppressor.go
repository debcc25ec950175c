package transcript

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const suppressorWindow = 6

// DuplicateSuppressor is a coarse second line of defense on top of the
// timeline merger: it suppresses emissions whose text is near-identical
// to a recent one, principally for very short chunks.
type DuplicateSuppressor struct {
	threshold float64
	cooldown  time.Duration
	recent    *gocache.Cache
	order     []string
	now       func() time.Time
}

// NewDuplicateSuppressor creates a suppressor remembering the last
// suppressorWindow emissions for the given cooldown.
func NewDuplicateSuppressor(threshold, cooldownSecs float64) *DuplicateSuppressor {
	cooldown := time.Duration(cooldownSecs * float64(time.Second))
	return &DuplicateSuppressor{
		threshold: threshold,
		cooldown:  cooldown,
		recent:    gocache.New(cooldown, 2*cooldown),
		now:       time.Now,
	}
}

// ShouldSuppress reports whether candidate is too similar to a recent
// emission. A kept candidate is recorded.
func (d *DuplicateSuppressor) ShouldSuppress(candidate string) bool {
	if candidate == "" {
		return false
	}

	for _, prior := range d.order {
		if _, live := d.recent.Get(prior); !live {
			continue // expired past the cooldown
		}
		if TextSimilarity(candidate, prior) >= d.threshold {
			return true
		}
	}

	if len(d.order) == suppressorWindow {
		d.recent.Delete(d.order[0])
		d.order = d.order[1:]
	}
	d.order = append(d.order, candidate)
	d.recent.Set(candidate, d.now(), d.cooldown)
	return false
}
