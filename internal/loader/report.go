package loader

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// State is a location's progress through the job.
type State string

const (
	// StatePending means the location was never fully mined: either no
	// miner claimed it before cancellation, or mining was interrupted.
	// A later run picks it up again.
	StatePending State = "pending"
	// StateMining means a miner currently owns the location.
	StateMining State = "mining"
	// StateDraining means the archive is fully mined and the last entries
	// are still queued for the writer.
	StateDraining State = "draining"
	// StateDone means every entry reached the writer and was applied.
	StateDone State = "done"
	// StateFailed means the location's archive could not be read.
	StateFailed State = "failed"
)

// LocationResult is the per-location outcome.
type LocationResult struct {
	Location domain.Location
	State    State
	Written  int
	Skipped  int
	Elapsed  time.Duration
	Err      error
}

// Report is the outcome of one bulk-load job. Locations appear in registry
// order. The loader goroutines share it during the run, so all mutation
// goes through the locked methods below.
type Report struct {
	JobID     string
	Locations []LocationResult
	Elapsed   time.Duration

	Written int
	Skipped int
	Done    int
	Failed  int
	Pending int

	mu sync.Mutex
}

func newReport(locations []domain.Location) *Report {
	r := &Report{
		JobID:     uuid.NewString(),
		Locations: make([]LocationResult, len(locations)),
	}
	for i, loc := range locations {
		r.Locations[i] = LocationResult{Location: loc, State: StatePending}
	}
	return r
}

func (r *Report) setState(loc int, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[loc].State = s
}

func (r *Report) wrote(loc int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[loc].Written++
}

func (r *Report) skipped(loc int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[loc].Skipped++
}

func (r *Report) finish(loc int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[loc].State = StateDone
	r.Locations[loc].Elapsed = elapsed
}

func (r *Report) fail(loc int, err error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[loc].State = StateFailed
	r.Locations[loc].Err = err
	r.Locations[loc].Elapsed = elapsed
}

// tally rolls the per-location results into the job totals. Locations still
// marked mining or draining were interrupted; they report pending.
func (r *Report) tally() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written, r.Skipped, r.Done, r.Failed, r.Pending = 0, 0, 0, 0, 0
	for i := range r.Locations {
		lr := &r.Locations[i]
		if lr.State == StateMining || lr.State == StateDraining {
			lr.State = StatePending
		}
		r.Written += lr.Written
		r.Skipped += lr.Skipped
		switch lr.State {
		case StateDone:
			r.Done++
		case StateFailed:
			r.Failed++
		case StatePending:
			r.Pending++
		}
	}
}
