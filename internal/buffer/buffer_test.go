package buffer

import (
	"sync"
	"testing"
	"time"
)

func TestGrowableBuffer_FIFOAcrossGrowth(t *testing.T) {
	buf := NewGrowableBuffer[int](4)

	for i := 0; i < 64; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 64 {
		t.Errorf("Count = %d, want 64", stats.Count)
	}
	if stats.ResizeCount < 3 {
		t.Errorf("ResizeCount = %d, want at least 3", stats.ResizeCount)
	}

	for i := 0; i < 64; i++ {
		got, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() empty at %d", i)
		}
		if got != i {
			t.Errorf("got %d, want %d", got, i)
		}
	}
}

func TestGrowableBuffer_GrowWhileWrapped(t *testing.T) {
	buf := NewGrowableBuffer[string](5)

	buf.Send("a")
	buf.Send("b")
	buf.TryReceive()
	buf.TryReceive()

	// tail wraps before the ring grows
	for _, s := range []string{"c", "d", "e", "f", "g"} {
		buf.Send(s)
	}

	want := []string{"c", "d", "e", "f", "g"}
	got := buf.DrainTo(0)
	if len(got) != len(want) {
		t.Fatalf("DrainTo(0) returned %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGrowableBuffer_ReceiveBlocksUntilSend(t *testing.T) {
	buf := NewGrowableBuffer[[]byte](2)
	got := make(chan []byte, 1)

	go func() {
		frame, ok := buf.Receive()
		if ok {
			got <- frame
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send([]byte("frame"))

	select {
	case frame := <-got:
		if string(frame) != "frame" {
			t.Errorf("received %q, want %q", frame, "frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Receive")
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	t.Run("drains pending items", func(t *testing.T) {
		buf := NewGrowableBuffer[int](8)
		buf.Send(1)
		buf.Send(2)
		buf.Close()

		if buf.Send(3) {
			t.Error("Send should return false after Close")
		}
		if !buf.Closed() {
			t.Error("Closed() = false after Close")
		}

		for _, want := range []int{1, 2} {
			got, ok := buf.Receive()
			if !ok || got != want {
				t.Errorf("Receive() = %d, %v; want %d, true", got, ok, want)
			}
		}
		if _, ok := buf.Receive(); ok {
			t.Error("Receive should return false when closed and empty")
		}
	})

	t.Run("unblocks waiting receiver", func(t *testing.T) {
		buf := NewGrowableBuffer[int](8)
		done := make(chan bool, 1)

		go func() {
			_, ok := buf.Receive()
			done <- ok
		}()

		time.Sleep(10 * time.Millisecond)
		buf.Close()

		select {
		case ok := <-done:
			if ok {
				t.Error("Receive should return false after Close")
			}
		case <-time.After(time.Second):
			t.Fatal("Close did not unblock Receive")
		}
	})
}

func TestGrowableBuffer_DrainTo(t *testing.T) {
	tests := []struct {
		name    string
		pending int
		max     int
		want    int
		left    int
	}{
		{"partial", 10, 4, 4, 6},
		{"all with zero", 10, 0, 10, 0},
		{"max above count", 3, 10, 3, 0},
		{"empty", 0, 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewGrowableBuffer[int](4)
			for i := 0; i < tt.pending; i++ {
				buf.Send(i)
			}

			items := buf.DrainTo(tt.max)
			if len(items) != tt.want {
				t.Errorf("DrainTo(%d) returned %d items, want %d", tt.max, len(items), tt.want)
			}
			for i, v := range items {
				if v != i {
					t.Errorf("items[%d] = %d, want %d", i, v, i)
				}
			}
			if buf.Len() != tt.left {
				t.Errorf("Len() = %d, want %d", buf.Len(), tt.left)
			}
		})
	}
}

func TestGrowableBuffer_Discard(t *testing.T) {
	buf := NewGrowableBuffer[int](4)
	for i := 0; i < 5; i++ {
		buf.Send(i)
	}
	buf.TryReceive()

	if n := buf.Discard(); n != 4 {
		t.Errorf("Discard() = %d, want 4", n)
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d after Discard, want 0", buf.Len())
	}

	stats := buf.Stats()
	if stats.TotalReceived != 5 || stats.TotalSent != 1 || stats.TotalDropped != 4 {
		t.Errorf("unexpected stats after Discard: %+v", stats)
	}

	// still usable
	buf.Send(9)
	if got, ok := buf.TryReceive(); !ok || got != 9 {
		t.Errorf("TryReceive() = %d, %v; want 9, true", got, ok)
	}
}

func TestGrowableBuffer_ConcurrentProducers(t *testing.T) {
	buf := NewGrowableBuffer[int](2)
	const producers = 4
	const perProducer = 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Send(base + i)
			}
		}(p * perProducer)
	}

	seen := make(map[int]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(seen) < producers*perProducer {
			v, ok := buf.Receive()
			if !ok {
				return
			}
			seen[v] = true
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout draining buffer")
	}

	if len(seen) != producers*perProducer {
		t.Errorf("received %d distinct items, want %d", len(seen), producers*perProducer)
	}
}

func TestNewGrowableBuffer_MinCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		if got := NewGrowableBuffer[int](c).Cap(); got != 1 {
			t.Errorf("NewGrowableBuffer(%d).Cap() = %d, want 1", c, got)
		}
	}
}
