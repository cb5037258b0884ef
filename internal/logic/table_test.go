package logic

import "testing"

func TestTableGetAndNames(t *testing.T) {
	tbl := NewTable(3, "a", "b")
	if tbl.Len() != 3 {
		t.Fatalf("expected 3 channels, got %d", tbl.Len())
	}
	if tbl.Get(0).Name != "a" || tbl.Get(1).Name != "b" || tbl.Get(2).Name != "" {
		t.Errorf("unexpected names: %q %q %q", tbl.Get(0).Name, tbl.Get(1).Name, tbl.Get(2).Name)
	}
	if tbl.Get(-1) != nil || tbl.Get(3) != nil {
		t.Error("expected nil for out-of-range ids")
	}
	if tbl.Get(1) != tbl.Get(1) {
		t.Error("Get must return stable pointers")
	}
}

func TestTableClearAndDisable(t *testing.T) {
	tbl := NewTable(2)
	tbl.Each(func(_ ID, c *Channel) {
		c.Configure(Config{Gain: 1, AlarmLimit: 1, TripLimit: 1})
		c.Evaluate(10)
	})

	tbl.ClearAll()
	tbl.Each(func(id ID, c *Channel) {
		if c.AlarmLatched || c.TripLatched {
			t.Errorf("channel %d still latched", id)
		}
	})

	tbl.DisableAll()
	tbl.Each(func(id ID, c *Channel) {
		if c.Enabled {
			t.Errorf("channel %d still enabled", id)
		}
	})
}
