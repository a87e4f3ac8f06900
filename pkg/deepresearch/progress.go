package deepresearch

import "sync"

// progressTracker serializes updates to the shared progress object across
// concurrent branches. Snapshots are published while holding the lock so
// the sink always observes completedQueries in non-decreasing order.
type progressTracker struct {
	mu         sync.Mutex
	onProgress ProgressFunc
	progress   Progress
}

func newProgressTracker(totalDepth, totalBreadth int, onProgress ProgressFunc) *progressTracker {
	return &progressTracker{
		onProgress: onProgress,
		progress: Progress{
			CurrentDepth:   totalDepth,
			TotalDepth:     totalDepth,
			CurrentBreadth: totalBreadth,
			TotalBreadth:   totalBreadth,
		},
	}
}

// AddPlanned records n newly planned sub-queries.
func (t *progressTracker) AddPlanned(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.TotalQueries += n
	t.publishLocked()
}

// StartQuery marks a branch as in flight. Depth and breadth are the branch's
// remaining values.
func (t *progressTracker) StartQuery(goal string, depth, breadth int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.CurrentQuery = goal
	t.progress.CurrentDepth = depth
	t.progress.CurrentBreadth = breadth
	t.publishLocked()
}

// CompleteQuery counts one finished branch. Handled failures count the same
// as successes.
func (t *progressTracker) CompleteQuery() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress.CompletedQueries < t.progress.TotalQueries {
		t.progress.CompletedQueries++
	}
	t.publishLocked()
}

// Snapshot returns a copy of the current progress.
func (t *progressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *progressTracker) publishLocked() {
	if t.onProgress != nil {
		t.onProgress(t.progress)
	}
}
