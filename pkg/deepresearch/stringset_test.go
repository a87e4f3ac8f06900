package deepresearch

import (
	"reflect"
	"testing"
)

func TestStringSetDedup(t *testing.T) {
	s := newStringSet("a", "b", "a", "", "c", "b")
	if got := s.Values(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Values() = %v, want first-seen order without duplicates and empties", got)
	}
}

func TestStringSetUnionAndClone(t *testing.T) {
	a := newStringSet("x", "y")
	b := a.Clone()
	b.Add("z")

	if a.Len() != 2 {
		t.Errorf("clone mutated original: %v", a.Values())
	}

	a.Union(b)
	if got := a.Values(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("union = %v", got)
	}

	a.Union(nil)
	if a.Len() != 3 {
		t.Errorf("union with nil changed the set: %v", a.Values())
	}
}
