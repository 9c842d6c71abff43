package agent

import (
	"encoding/json"
	"fmt"
)

const (
	// loopWindow is the number of recent action signatures retained.
	loopWindow = 10
	// loopThreshold is how many identical signatures within the window
	// raise the advisory signal.
	loopThreshold = 5
)

// loopDetector keeps a bounded ring of recent action signatures and flags
// exact repetition. It deliberately ignores alternating patterns: idioms
// like snapshot, click, snapshot, click are normal navigation, and an
// earlier pattern-based check flagged them constantly.
type loopDetector struct {
	recent []string
}

func newLoopDetector() *loopDetector {
	return &loopDetector{recent: make([]string, 0, loopWindow)}
}

// Record pushes an action signature onto the ring, evicting the oldest
// past capacity, and reports whether this occurrence crosses the
// repetition threshold.
func (d *loopDetector) Record(signature string) bool {
	d.recent = append(d.recent, signature)
	if len(d.recent) > loopWindow {
		d.recent = d.recent[1:]
	}

	count := 0
	for _, sig := range d.recent {
		if sig == signature {
			count++
		}
	}
	return count >= loopThreshold
}

// Reset clears the ring.
func (d *loopDetector) Reset() {
	d.recent = d.recent[:0]
}

// actionSignature canonicalizes a tool call as name plus key-sorted JSON
// arguments so that argument ordering does not defeat repetition checks.
func actionSignature(name string, args map[string]any) string {
	// encoding/json sorts map keys on marshal.
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf("%s:%s", name, encoded)
}
