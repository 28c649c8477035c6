package workflow

import (
	"sync"

	"jenkinsflow/jenkins"
)

// Tracker is the single shared slot naming the build currently in flight.
// Job name and build ref are set and cleared together; the interrupt handler
// treats "present" as the only signal that a stoppable build exists.
type Tracker struct {
	mu      sync.Mutex
	job     string
	ref     jenkins.BuildRef
	tracked bool
}

// Set records the in-flight build.
func (t *Tracker) Set(job string, ref jenkins.BuildRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job = job
	t.ref = ref
	t.tracked = true
}

// Clear empties the slot. Safe to call when nothing is tracked.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job = ""
	t.ref = jenkins.BuildRef{}
	t.tracked = false
}

// Current returns a consistent snapshot of the slot.
func (t *Tracker) Current() (job string, ref jenkins.BuildRef, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job, t.ref, t.tracked
}
