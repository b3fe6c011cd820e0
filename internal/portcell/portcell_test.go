package portcell

import (
	"sync"
	"testing"
	"time"
)

func TestEmptyCell(t *testing.T) {
	c := New()
	if port, ok := c.Get(); ok {
		t.Fatalf("Get() on empty cell = %d, true; want absent", port)
	}

	select {
	case <-c.Ready():
		t.Fatal("Ready() closed before any Set")
	default:
	}
}

func TestSetOnce(t *testing.T) {
	c := New()

	if !c.Set(54231) {
		t.Fatal("first Set() returned false")
	}
	if port, ok := c.Get(); !ok || port != 54231 {
		t.Fatalf("Get() = %d, %v; want 54231, true", port, ok)
	}

	// Second write is ignored.
	if c.Set(8080) {
		t.Error("second Set() returned true")
	}
	if port, _ := c.Get(); port != 54231 {
		t.Errorf("Get() after second Set = %d, want 54231", port)
	}

	select {
	case <-c.Ready():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Ready() not closed after Set")
	}
}

func TestBoundaryPorts(t *testing.T) {
	for _, port := range []uint16{0, 1, 1024, 65535} {
		c := New()
		c.Set(port)
		if got, ok := c.Get(); !ok || got != port {
			t.Errorf("Get() = %d, %v; want %d, true", got, ok, port)
		}
	}
}

func TestConcurrentReadersDuringWrite(t *testing.T) {
	c := New()
	const readers = 16
	const port = 43210

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan uint16, readers)

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			seen := false
			for range 10000 {
				got, ok := c.Get()
				switch {
				case ok && got != port:
					errs <- got
					return
				case !ok && seen:
					// Present must never go back to absent.
					errs <- 0
					return
				case ok:
					seen = true
				}
			}
		}()
	}

	close(start)
	c.Set(port)
	wg.Wait()
	close(errs)

	for got := range errs {
		t.Errorf("reader observed inconsistent value %d", got)
	}
}

func TestConcurrentWritersFirstWins(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := range 32 {
		wg.Add(1)
		go func(p uint16) {
			defer wg.Done()
			if c.Set(p) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(uint16(2000 + i))
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
	first, _ := c.Get()
	for range 100 {
		if got, _ := c.Get(); got != first {
			t.Fatalf("Get() = %d, want stable %d", got, first)
		}
	}
}
