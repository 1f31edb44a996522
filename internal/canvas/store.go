package canvas

import "sketchroom/internal/shape"

// Store holds the board's shapes in insertion order. Insertion order is
// z-order: a later shape draws on top of an earlier one, and hit-testing
// walks the slice back to front so later shapes win ties.
//
// The Store is not safe for concurrent use; the Engine serializes access.
type Store struct {
	shapes []shape.Shape
	index  map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Add appends a shape. A shape whose id is already present is ignored: ids
// are assigned once by the authoring client and never reused, so a duplicate
// is a redelivery, not an edit.
func (st *Store) Add(s shape.Shape) bool {
	if _, ok := st.index[s.ID]; ok {
		return false
	}
	st.index[s.ID] = len(st.shapes)
	st.shapes = append(st.shapes, s)
	return true
}

// Delete removes the shape with the given id, preserving the order of the
// rest. Reports whether anything was removed.
func (st *Store) Delete(id string) bool {
	i, ok := st.index[id]
	if !ok {
		return false
	}
	st.shapes = append(st.shapes[:i], st.shapes[i+1:]...)
	delete(st.index, id)
	for j := i; j < len(st.shapes); j++ {
		st.index[st.shapes[j].ID] = j
	}
	return true
}

// Get returns the shape with the given id.
func (st *Store) Get(id string) (shape.Shape, bool) {
	i, ok := st.index[id]
	if !ok {
		return shape.Shape{}, false
	}
	return st.shapes[i], true
}

// IndexOf returns the z-order position of the given id, or -1.
func (st *Store) IndexOf(id string) int {
	i, ok := st.index[id]
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of shapes.
func (st *Store) Len() int {
	return len(st.shapes)
}

// Shapes returns a copy of the store in z-order.
func (st *Store) Shapes() []shape.Shape {
	out := make([]shape.Shape, len(st.shapes))
	copy(out, st.shapes)
	return out
}

// HitTest returns the id of the topmost shape whose bounding box contains
// the world point, or "" if nothing is hit.
func (st *Store) HitTest(x, y float64) string {
	for i := len(st.shapes) - 1; i >= 0; i-- {
		b := st.shapes[i].Bounds()
		if b != nil && b.Contains(x, y) {
			return st.shapes[i].ID
		}
	}
	return ""
}

// Intersecting returns, in z-order, the ids of every shape whose bounding box
// intersects the given rectangle.
func (st *Store) Intersecting(r shape.Rect) []string {
	var ids []string
	for _, s := range st.shapes {
		if b := s.Bounds(); b != nil && r.Intersects(*b) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
