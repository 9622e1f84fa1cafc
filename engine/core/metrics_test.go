package core

import (
	stdmath "math"
	"testing"
)

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	if m.FrameTime() != 0 {
		t.Fatalf("expected no frame time before the first frame")
	}

	published := false
	for i := 0; i < 60; i++ {
		if m.Update(0.010) {
			published = true
		}
	}
	if stdmath.Abs(m.FrameTime()-10) > 1e-9 {
		t.Fatalf("expected a 10ms average; got %v", m.FrameTime())
	}
	if published {
		t.Fatalf("expected no fps before a full second")
	}

	// The window only holds the last AVG_COUNT frames.
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.020)
	}
	if stdmath.Abs(m.FrameTime()-20) > 1e-6 {
		t.Fatalf("expected a 20ms average; got %v", m.FrameTime())
	}

	for !m.Update(0.020) {
	}
	if m.FPS() <= 0 {
		t.Fatalf("expected a published fps value; got %v", m.FPS())
	}
}
