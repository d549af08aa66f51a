package grantauth

import "testing"

func TestRightAddIsUnion(t *testing.T) {
	a := NewRight(PrivSelect)
	b := NewRight(PrivInsert)
	got := a.Add(b)

	if !got.Has(PrivSelect) || !got.Has(PrivInsert) {
		t.Fatalf("Add(%v, %v) = %v, want both bits set", a, b, got)
	}
	if got.Has(PrivDelete) {
		t.Fatalf("Add introduced an unrequested bit: %v", got)
	}
}

func TestRightAddMergesColumnSubsets(t *testing.T) {
	a := NewRight(PrivSelect).WithColumns(PrivSelect, "a", "b")
	b := NewRight(PrivSelect).WithColumns(PrivSelect, "c")

	got := a.Add(b)
	want := columnsOf("a", "b", "c")
	if !got.columnsFor(PrivSelect).equal(want) {
		t.Fatalf("Add column merge = %v, want %v", got.columnsFor(PrivSelect).names(), want.names())
	}
}

func TestRightAddWholeObjectAbsorbsColumnSubset(t *testing.T) {
	whole := NewRight(PrivSelect)
	subset := NewRight(PrivSelect).WithColumns(PrivSelect, "a")

	got := whole.Add(subset)
	if !got.columnsFor(PrivSelect).isWhole() {
		t.Fatalf("whole-object Add should stay whole-object, got columns %v", got.columnsFor(PrivSelect).names())
	}
}

func TestRightRemoveFullBit(t *testing.T) {
	r := NewRight(PrivSelect, PrivInsert)
	got, err := r.Remove(NewRight(PrivInsert), false)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got.Has(PrivInsert) {
		t.Fatalf("Remove did not clear PrivInsert: %v", got)
	}
	if !got.Has(PrivSelect) {
		t.Fatalf("Remove cleared an unrelated bit: %v", got)
	}
}

func TestRightRemoveColumnSubsetWithoutCascadeFailsOnPartialCoverage(t *testing.T) {
	r := NewRight(PrivSelect).WithColumns(PrivSelect, "a")
	toRemove := NewRight(PrivSelect).WithColumns(PrivSelect, "a", "b")

	if _, err := r.Remove(toRemove, false); err == nil {
		t.Fatalf("Remove without cascade should fail when r doesn't cover all of toRemove's columns")
	}
	if _, err := r.Remove(toRemove, true); err != nil {
		t.Fatalf("Remove with cascade should succeed: %v", err)
	}
}

func TestRightContains(t *testing.T) {
	full := NewRight(PrivSelect, PrivInsert)
	part := NewRight(PrivSelect)
	if !full.Contains(part) {
		t.Fatalf("%v should contain %v", full, part)
	}
	if part.Contains(full) {
		t.Fatalf("%v should not contain %v", part, full)
	}
}

func TestRightContainsColumnSubset(t *testing.T) {
	full := NewRight(PrivSelect).WithColumns(PrivSelect, "a", "b", "c")
	part := NewRight(PrivSelect).WithColumns(PrivSelect, "a", "b")
	if !full.Contains(part) {
		t.Fatalf("column superset should contain column subset")
	}
	if part.Contains(full) {
		t.Fatalf("column subset should not contain column superset")
	}
}

func TestRightIntersectNarrowsColumns(t *testing.T) {
	a := NewRight(PrivSelect, PrivInsert).WithColumns(PrivSelect, "a", "b")
	b := NewRight(PrivSelect).WithColumns(PrivSelect, "b", "c")

	got := a.Intersect(b)
	if got.Has(PrivInsert) {
		t.Fatalf("Intersect should drop a bit the other side lacks entirely: %v", got)
	}
	if !got.Has(PrivSelect) {
		t.Fatalf("Intersect dropped a bit both sides share: %v", got)
	}
	if !got.columnsFor(PrivSelect).equal(columnsOf("b")) {
		t.Fatalf("Intersect columns = %v, want [b]", got.columnsFor(PrivSelect).names())
	}
}

func TestRightIntersectEmptyWhenDisjoint(t *testing.T) {
	a := NewRight(PrivSelect)
	b := NewRight(PrivInsert)
	if !a.Intersect(b).IsEmpty() {
		t.Fatalf("Intersect of disjoint rights should be empty")
	}
}

func TestRightEqual(t *testing.T) {
	a := NewRight(PrivSelect).WithColumns(PrivSelect, "a", "b")
	b := NewRight(PrivSelect).WithColumns(PrivSelect, "b", "a")
	if !a.Equal(b) {
		t.Fatalf("column sets with the same members in different order should be equal")
	}
	c := NewRight(PrivSelect).WithColumns(PrivSelect, "a")
	if a.Equal(c) {
		t.Fatalf("different column sets should not be equal")
	}
}

func TestRightStoredRoundTrip(t *testing.T) {
	r := NewRight(PrivSelect, PrivUpdate).WithColumns(PrivSelect, "a", "b").WithFilter()

	cols, err := r.MarshalColumns()
	if err != nil {
		t.Fatalf("MarshalColumns: %v", err)
	}
	got, err := RightFromStored(r.Bits(), r.HasFilter(), cols)
	if err != nil {
		t.Fatalf("RightFromStored: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("round trip changed the right: got %+v, want %+v", got, r)
	}
}

func TestGetRightAndAllToken(t *testing.T) {
	if GetRight("select") != PrivSelect {
		t.Fatalf("GetRight should be case-insensitive")
	}
	if GetRight("ALL") != privAll {
		t.Fatalf("GetRight(ALL) should be the full privilege set")
	}
	if GetRight("BOGUS") != 0 {
		t.Fatalf("GetRight on an unknown token should return 0")
	}
	if _, err := GetCheckSingleRight("BOGUS"); err == nil {
		t.Fatalf("GetCheckSingleRight should fail on an unknown token")
	}
}

func TestRightNamesOrderedAndDeterministic(t *testing.T) {
	r := NewRight(PrivUsage, PrivSelect, PrivDelete).WithColumns(PrivSelect, "z", "a", "m")
	for i := 0; i < 5; i++ {
		got := rightNames(r)
		want := []string{"SELECT (a, m, z)", "DELETE", "USAGE"}
		if len(got) != len(want) {
			t.Fatalf("rightNames = %v, want %v", got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("rightNames = %v, want %v", got, want)
			}
		}
	}
}
