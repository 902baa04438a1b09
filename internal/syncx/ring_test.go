package syncx

import (
	"reflect"
	"testing"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	if _, ok := r.Last(); ok {
		t.Fatal("Last on empty ring")
	}
	if got := r.Latest(0); len(got) != 0 {
		t.Fatalf("Latest on empty ring = %v", got)
	}

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	tests := []struct {
		n    int
		want []int
	}{
		{0, []int{3, 4, 5}},
		{2, []int{4, 5}},
		{10, []int{3, 4, 5}},
	}
	for _, tt := range tests {
		if got := r.Latest(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Latest(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	if v, ok := r.Last(); !ok || v != 5 {
		t.Errorf("Last = %d, %v", v, ok)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after Reset = %d", r.Len())
	}
	r.Push(9)
	if got := r.Latest(5); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("Latest after Reset = %v", got)
	}
}

func TestRingMinimumSize(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	if got := r.Latest(0); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Latest = %v", got)
	}
}
