package simulation

import (
	"math"
	"testing"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// AssertTransitionCycle asserts that the records of one source follow
// the state machine: the first record carries multiplicity 2 (leaving
// S), the next two carry multiplicity 1, then the cycle repeats, at
// strictly increasing steps.
func AssertTransitionCycle(t *testing.T, res Result, source event.NodeID) {
	t.Helper()
	recs := res.RecordsFrom(source)
	for i, rec := range recs {
		want := 1
		if i%3 == 0 {
			want = 2
		}
		if rec.Multiplicity != want {
			t.Errorf("AssertTransitionCycle: node %d record %d at step %d: multiplicity %d, want %d",
				source, i, rec.Step, rec.Multiplicity, want)
		}
		if i > 0 && rec.Step <= recs[i-1].Step {
			t.Errorf("AssertTransitionCycle: node %d records %d and %d share or reorder steps %d, %d",
				source, i-1, i, recs[i-1].Step, rec.Step)
		}
	}
}

// AssertNoSplitEmissions asserts that no emission was recorded twice.
// A duplicated (source, step) record means the copies of a multiplicity
// pair were interleaved with another event instead of arriving back to
// back.
func AssertNoSplitEmissions(t *testing.T, res Result) {
	t.Helper()
	type emission struct {
		step simtime.Step
		src  event.NodeID
	}
	seen := make(map[emission]bool)
	for _, rec := range res.Records {
		if rec.Multiplicity < 1 || rec.Multiplicity > 2 {
			t.Errorf("AssertNoSplitEmissions: node %d at step %d: impossible multiplicity %d",
				rec.Source, rec.Step, rec.Multiplicity)
		}
		key := emission{rec.Step, rec.Source}
		if seen[key] {
			t.Errorf("AssertNoSplitEmissions: emission %d@%d recorded twice", rec.Source, rec.Step)
		}
		seen[key] = true
	}
}

// AssertTransitionCount asserts the number of records from one source
// falls within [min, max].
func AssertTransitionCount(t *testing.T, res Result, source event.NodeID, min, max int) {
	t.Helper()
	n := len(res.RecordsFrom(source))
	if n < min || n > max {
		t.Errorf("AssertTransitionCount: node %d made %d transitions, want %d..%d", source, n, min, max)
	}
}

// AssertQuiescent asserts a node never fired.
func AssertQuiescent(t *testing.T, res Result, source event.NodeID) {
	t.Helper()
	if recs := res.RecordsFrom(source); len(recs) > 0 {
		t.Errorf("AssertQuiescent: node %d fired %d times, first at step %d", source, len(recs), recs[0].Step)
	}
}

// AssertNoRecordsAfter asserts that no record from the source carries a
// step beyond the given one.
func AssertNoRecordsAfter(t *testing.T, res Result, source event.NodeID, step simtime.Step) {
	t.Helper()
	for _, rec := range res.RecordsFrom(source) {
		if rec.Step > step {
			t.Errorf("AssertNoRecordsAfter: node %d fired at step %d, after %d", source, rec.Step, step)
		}
	}
}

// AssertOccupancy asserts that the fraction of sampled steps the node
// spends in the given state lies within [min, max]. The node's y must
// be among the recorded variables.
func AssertOccupancy(t *testing.T, res Result, node event.NodeID, state int64, min, max float64) {
	t.Helper()
	series := res.SampleSeries(node, "y")
	if len(series) == 0 {
		t.Fatalf("AssertOccupancy: no y samples for node %d", node)
	}
	count := 0
	for _, v := range series {
		if int64(math.Round(v)) == state {
			count++
		}
	}
	frac := float64(count) / float64(len(series))
	if frac < min || frac > max {
		t.Errorf("AssertOccupancy: node %d state %d occupancy %.3f not in [%.3f, %.3f]",
			node, state, frac, min, max)
	}
}

// AssertSeriesMatches asserts that a sampled variable equals the
// expected step-indexed values within tolerance. Steps missing from
// want are not checked.
func AssertSeriesMatches(t *testing.T, res Result, node event.NodeID, name string, want map[int64]float64, tol float64) {
	t.Helper()
	series := res.SampleSeries(node, name)
	for step, w := range want {
		got, ok := series[step]
		if !ok {
			t.Errorf("AssertSeriesMatches: node %d %s: no sample at step %d", node, name, step)
			continue
		}
		if math.Abs(got-w) > tol {
			t.Errorf("AssertSeriesMatches: node %d %s at step %d: got %v, want %v", node, name, step, got, w)
		}
	}
}
