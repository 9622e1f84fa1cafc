package containers

import (
	"errors"
	"testing"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[int](3)
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty; got %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull; got %v", err)
	}
	if v, _ := rq.Peek(); v != 1 {
		t.Fatalf("expected 1 at the front; got %d", v)
	}

	dropped, evicted := rq.Push(4)
	if !evicted || dropped != 1 {
		t.Fatalf("expected Push to evict 1; got %d %t", dropped, evicted)
	}

	var got []int
	for !rq.IsEmpty() {
		v, _ := rq.Dequeue()
		got = append(got, v)
	}
	exp := []int{2, 3, 4}
	for i := range exp {
		if got[i] != exp[i] {
			t.Fatalf("expected %v; got %v", exp, got)
		}
	}

	if _, evicted := rq.Push(5); evicted || rq.Len() != 1 {
		t.Fatalf("expected Push into an empty queue not to evict")
	}
}
