package canvas

import (
	"testing"

	"sketchroom/internal/shape"
)

func rectShape(id string, x, y, w, h float64) shape.Shape {
	return shape.Shape{ID: id, Kind: shape.KindRectangle, X: x, Y: y, Width: w, Height: h, StrokeColor: "black", StrokeWidth: 2}
}

func TestStoreAddAndOrder(t *testing.T) {
	st := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		if !st.Add(rectShape(id, 0, 0, 10, 10)) {
			t.Fatalf("Add(%q) = false", id)
		}
	}
	if st.Add(rectShape("b", 5, 5, 1, 1)) {
		t.Error("Add() of duplicate id should be ignored")
	}
	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}
	shapes := st.Shapes()
	for i, want := range []string{"a", "b", "c"} {
		if shapes[i].ID != want {
			t.Errorf("Shapes()[%d].ID = %q, want %q", i, shapes[i].ID, want)
		}
	}
}

func TestStoreDeleteReindexes(t *testing.T) {
	st := NewStore()
	st.Add(rectShape("a", 0, 0, 1, 1))
	st.Add(rectShape("b", 0, 0, 1, 1))
	st.Add(rectShape("c", 0, 0, 1, 1))

	if !st.Delete("b") {
		t.Fatal("Delete(b) = false")
	}
	if st.Delete("b") {
		t.Error("second Delete(b) should report false")
	}
	if i := st.IndexOf("c"); i != 1 {
		t.Errorf("IndexOf(c) after delete = %d, want 1", i)
	}
	if _, ok := st.Get("b"); ok {
		t.Error("Get(b) after delete should miss")
	}
	if s, ok := st.Get("c"); !ok || s.ID != "c" {
		t.Errorf("Get(c) = %+v, %v", s, ok)
	}
}

func TestStoreHitTestTopmost(t *testing.T) {
	st := NewStore()
	st.Add(rectShape("below", 0, 0, 100, 100))
	st.Add(rectShape("above", 50, 50, 100, 100))

	if got := st.HitTest(75, 75); got != "above" {
		t.Errorf("HitTest(overlap) = %q, want later-drawn shape", got)
	}
	if got := st.HitTest(10, 10); got != "below" {
		t.Errorf("HitTest(10,10) = %q, want %q", got, "below")
	}
	if got := st.HitTest(500, 500); got != "" {
		t.Errorf("HitTest(miss) = %q, want empty", got)
	}
}

func TestStoreIntersecting(t *testing.T) {
	st := NewStore()
	st.Add(rectShape("in", 10, 10, 20, 20))
	st.Add(rectShape("out", 200, 200, 20, 20))

	got := st.Intersecting(shape.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	if len(got) != 1 || got[0] != "in" {
		t.Errorf("Intersecting() = %v, want [in]", got)
	}
}
