package deepresearch

import "testing"

func TestProgressTracker(t *testing.T) {
	var published []Progress
	tr := newProgressTracker(2, 4, func(p Progress) {
		published = append(published, p)
	})

	if got := tr.Snapshot(); got.CurrentDepth != 2 || got.CurrentBreadth != 4 {
		t.Fatalf("initial snapshot = %+v, want current=total", got)
	}

	tr.AddPlanned(4)
	tr.StartQuery("first goal", 2, 4)
	tr.CompleteQuery()

	got := tr.Snapshot()
	if got.TotalQueries != 4 || got.CompletedQueries != 1 {
		t.Errorf("snapshot = %d/%d, want 1/4", got.CompletedQueries, got.TotalQueries)
	}
	if got.CurrentQuery != "first goal" {
		t.Errorf("currentQuery = %q", got.CurrentQuery)
	}
	if len(published) != 3 {
		t.Errorf("published %d snapshots, want 3", len(published))
	}
}

func TestProgressTrackerCompleteNeverExceedsTotal(t *testing.T) {
	tr := newProgressTracker(1, 2, nil)
	tr.AddPlanned(2)
	for i := 0; i < 5; i++ {
		tr.CompleteQuery()
	}
	if got := tr.Snapshot(); got.CompletedQueries != got.TotalQueries {
		t.Errorf("completedQueries = %d, want capped at total %d", got.CompletedQueries, got.TotalQueries)
	}
}

func TestProgressTrackerNilSink(t *testing.T) {
	tr := newProgressTracker(1, 1, nil)
	tr.AddPlanned(1)
	tr.StartQuery("goal", 1, 1)
	tr.CompleteQuery()
}
