package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsInSubmissionOrder(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Submit(func() { got = append(got, i) })
	}
	if err := q.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("len(got) = %d, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueueSubmitFromInsideQueue(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	if err := q.Call(context.Background(), func() {
		record("outer")
		q.Submit(func() { record("inner") })
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if err := q.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call() barrier error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("order = %v, want [outer inner]", order)
	}
}

func TestQueueSurvivesPanic(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()

	q.Submit(func() { panic("boom") })
	ran := false
	if err := q.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !ran {
		t.Fatalf("queue stopped after panic")
	}
}

func TestQueueClosedRejectsWork(t *testing.T) {
	q := NewQueue("test")
	q.Close()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("queue did not drain after Close")
	}
	if q.Submit(func() {}) {
		t.Fatalf("Submit() = true after Close, want false")
	}
	if err := q.Call(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Call() error = %v, want ErrClosed", err)
	}
}
