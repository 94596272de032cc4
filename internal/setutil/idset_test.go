package setutil

import "testing"

func TestOrderedSetAddPreservesInsertionOrder(t *testing.T) {
	s := NewOrderedSet(3, 1, 2, 1)
	want := []ID{3, 1, 2}
	got := s.Values()
	if len(got) != len(want) {
		t.Fatalf("Values: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len: got %d, want 3", s.Len())
	}
}

func TestOrderedSetRemove(t *testing.T) {
	s := NewOrderedSet(1, 2, 3)
	if !s.Remove(2) {
		t.Fatalf("Remove(2) should report true for a present member")
	}
	if s.Remove(2) {
		t.Fatalf("a second Remove(2) should report false")
	}
	if s.Contains(2) {
		t.Errorf("2 should no longer be a member")
	}
	want := []ID{1, 3}
	got := s.Values()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Values after Remove: got %v, want %v", got, want)
	}
}

func TestOrderedSetContainsOnNil(t *testing.T) {
	var s *OrderedSet
	if s.Contains(1) {
		t.Errorf("a nil set should never contain anything")
	}
	if s.Len() != 0 {
		t.Errorf("a nil set's Len should be 0")
	}
	if !s.Empty() {
		t.Errorf("a nil set should be Empty")
	}
	if s.Values() != nil {
		t.Errorf("a nil set's Values should be nil")
	}
}

func TestOrderedSetSorted(t *testing.T) {
	s := NewOrderedSet(5, 1, 3)
	sorted := s.Sorted()
	want := []ID{1, 3, 5}
	for i := range want {
		if sorted[i] != want[i] {
			t.Errorf("Sorted[%d] = %d, want %d", i, sorted[i], want[i])
		}
	}
}

func TestOrderedSetSubtractIntersectionUnion(t *testing.T) {
	a := NewOrderedSet(1, 2, 3)
	b := NewOrderedSet(2, 3, 4)

	diff := a.Subtract(b)
	if diff.Len() != 1 || !diff.Contains(1) {
		t.Errorf("Subtract: got %v, want just {1}", diff.Values())
	}

	inter := a.Intersection(b)
	if inter.Len() != 2 || !inter.Contains(2) || !inter.Contains(3) {
		t.Errorf("Intersection: got %v, want {2,3}", inter.Values())
	}

	union := a.Union(b)
	if union.Len() != 4 {
		t.Errorf("Union: got %v, want 4 members", union.Values())
	}
	for _, v := range []ID{1, 2, 3, 4} {
		if !union.Contains(v) {
			t.Errorf("Union should contain %d", v)
		}
	}
}

func TestOrderedSetClone(t *testing.T) {
	a := NewOrderedSet(1, 2)
	b := a.Clone()
	b.Add(3)
	if a.Contains(3) {
		t.Errorf("mutating a clone should not affect the original")
	}
	if !b.Contains(3) {
		t.Errorf("the clone should contain the newly added member")
	}
}

func TestOrderedSetString(t *testing.T) {
	s := NewOrderedSet(3, 1, 2)
	if got, want := s.String(), "[1, 2, 3]"; got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}
