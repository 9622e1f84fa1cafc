package core

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestNewJobSystem(t *testing.T) {
	type spec struct {
		workers, size int
		exp           error
	}
	specs := []spec{
		{0, 1, ErrNoWorkers},
		{2, -1, ErrNegativeChannelSize},
		{2, 0, nil},
	}
	for index, s := range specs {
		js, err := NewJobSystem(s.workers, s.size)
		if !errors.Is(err, s.exp) {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, err)
		}
		if js != nil {
			_ = js.Shutdown()
		}
	}
}

func TestJobSystemRunsJobs(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer js.Shutdown()

	var completed, failed atomic.Int32
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		i := i
		js.Submit(Job{
			Name: "test",
			Run: func() error {
				if i%5 == 0 {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				if errors.Is(err, boom) {
					failed.Add(1)
				}
			},
		})
	}
	js.Wait()

	if completed.Load() != 16 || failed.Load() != 4 {
		t.Fatalf("expected 16 completed and 4 failed; got %d and %d", completed.Load(), failed.Load())
	}
}
