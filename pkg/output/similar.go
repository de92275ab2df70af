package output

import (
	"fmt"
	"sync"

	"github.com/glaslos/ssdeep"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/screener"
)

// DefaultSimilarityThreshold is the ssdeep score at or above which two
// screenshots are considered the same.
const DefaultSimilarityThreshold = 94

// Deduper remembers the fuzzy hashes of images it has seen so near
// identical screenshots (e.g. two phones rendering the same layout) are
// only kept once.
type Deduper struct {
	threshold int
	mutex     sync.Mutex
	seen      []seenHash
}

type seenHash struct {
	name string
	hash string
}

// NewDeduper returns a Deduper; threshold must be within 1..100.
func NewDeduper(threshold int) (*Deduper, error) {
	if threshold < 1 || threshold > 100 {
		return nil, fmt.Errorf("invalid similarity threshold: %d. Must be between 1 and 100", threshold)
	}
	return &Deduper{threshold: threshold}, nil
}

// IsSimilarToAny reports whether image is similar to one seen before and
// returns the name it matched. Images that are not similar are remembered
// under name. Images too small to hash are never duplicates.
func (d *Deduper) IsSimilarToAny(name string, image []byte) (bool, string) {
	hash, err := ssdeep.FuzzyBytes(image)
	if err != nil {
		log.Debugf("Could not hash %s: %v", name, err)
		return false, ""
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, s := range d.seen {
		score, err := ssdeep.Distance(hash, s.hash)
		if err != nil {
			continue
		}

		if score >= d.threshold {
			log.Debugf("%s is similar to %s with a score of %d. Skipping.. ", name, s.name, score)
			return true, s.name
		}
	}

	d.seen = append(d.seen, seenHash{name: name, hash: hash})
	return false, ""
}

// Filter drops successful outcomes whose image is similar to an earlier
// one. Failed outcomes are passed through.
func (d *Deduper) Filter(outcomes []screener.ExecutionOutcome) []screener.ExecutionOutcome {
	kept := make([]screener.ExecutionOutcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			if dup, match := d.IsSimilarToAny(outcome.DeviceName, outcome.Image); dup {
				log.Warnf("Skipping %s, similar to %s", outcome.DeviceName, match)
				continue
			}
		}
		kept = append(kept, outcome)
	}
	return kept
}
