package diag

import "testing"

func TestRecordAndCount(t *testing.T) {
	c := &Collector{}
	c.Record(Event{Kind: KindSeedNudged, Robot: "r1"})
	c.Record(Event{Kind: KindSeedNudged, Robot: "r2"})
	c.Record(Event{Kind: KindCorridorBridged})

	if got := c.Count(KindSeedNudged); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	if got := len(c.Events()); got != 3 {
		t.Fatalf("Events len = %d, want 3", got)
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	c := &Collector{}
	c.Record(Event{Kind: KindSolverIterations, Value: 3})
	evs := c.Events()
	evs[0].Value = 99
	if c.Events()[0].Value != 3 {
		t.Fatalf("Events exposed internal slice")
	}
}

func TestReset(t *testing.T) {
	c := &Collector{}
	c.Record(Event{Kind: KindCorridorMerged})
	c.Reset()
	if len(c.Events()) != 0 {
		t.Fatalf("Reset left events behind")
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Record(Event{Kind: KindSeedNudged})
	if c.Count(KindSeedNudged) != 0 || c.Events() != nil {
		t.Fatalf("nil collector should discard everything")
	}
	c.Reset()
}
