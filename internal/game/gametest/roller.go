// Package gametest holds deterministic doubles shared by package tests.
package gametest

// Script is a Roller that replays queued values. Once a queue runs dry it
// keeps returning the fallback (FloatDefault / IntDefault clamped to n-1).
type Script struct {
	Floats       []float64
	Ints         []int
	FloatDefault float64
	IntDefault   int
}

func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return s.FloatDefault
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

func (s *Script) Intn(n int) int {
	v := s.IntDefault
	if len(s.Ints) > 0 {
		v = s.Ints[0]
		s.Ints = s.Ints[1:]
	}
	if v >= n {
		return n - 1
	}
	if v < 0 {
		return 0
	}
	return v
}
