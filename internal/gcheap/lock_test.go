package gcheap

import (
	"sync"
	"testing"
)

func TestHeapLockGuard(t *testing.T) {
	var l HeapLock
	if l.Held() {
		t.Fatal("fresh lock reports held")
	}
	g := l.Lock()
	if !l.Held() {
		t.Fatal("lock not held after Lock")
	}
	g.Unlock()
	if l.Held() {
		t.Fatal("lock still held after Unlock")
	}
}

func TestHeapLockSerializes(t *testing.T) {
	var l HeapLock
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g := l.Lock()
				counter++
				g.Unlock()
			}
		}()
	}
	wg.Wait()
	if counter != 8000 {
		t.Fatalf("counter = %d, want 8000", counter)
	}
}
