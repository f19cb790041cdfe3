package runtime

// Slot is a named, fixed-shape tensor buffer owned by a Program.
type Slot struct {
	Name  string
	Shape []int
	data  []float32
}

// NewSlot allocates a zeroed slot for shape.
func NewSlot(name string, shape []int) *Slot {
	return &Slot{Name: name, Shape: append([]int(nil), shape...), data: make([]float32, shapeSize(shape))}
}

// Len is the number of elements declared by the shape.
func (s *Slot) Len() int { return len(s.data) }

// Set copies values into the slot.
func (s *Slot) Set(values []float32) error {
	if len(values) != len(s.data) {
		return &ShapeError{Slot: s.Name, Want: len(s.data), Got: len(values)}
	}
	copy(s.data, values)
	return nil
}

// Actual returns a copy of the slot contents.
func (s *Slot) Actual() []float32 {
	out := make([]float32, len(s.data))
	copy(out, s.data)
	return out
}

// Buffer exposes the backing buffer to backend implementations.
func (s *Slot) Buffer() []float32 { return s.data }

func shapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
