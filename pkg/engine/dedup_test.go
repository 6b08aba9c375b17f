package engine

import (
	"fmt"
	"sync"
	"testing"
)

func TestDeduper_MostRecentOnly(t *testing.T) {
	d := NewDeduper()

	if d.CheckAndRecord("s1", "code A") {
		t.Error("first submission flagged as duplicate")
	}
	if !d.CheckAndRecord("s1", "code A") {
		t.Error("immediate resubmission not flagged")
	}
	if d.CheckAndRecord("s1", "code B") {
		t.Error("different code flagged as duplicate")
	}
	// Only the most recent submission counts: A runs again after B.
	if d.CheckAndRecord("s1", "code A") {
		t.Error("A after B flagged as duplicate")
	}
}

func TestDeduper_SessionIsolation(t *testing.T) {
	d := NewDeduper()

	d.CheckAndRecord("s1", "code A")
	if d.CheckAndRecord("s2", "code A") {
		t.Error("duplicate detection leaked across sessions")
	}
}

func TestDeduper_Forget(t *testing.T) {
	d := NewDeduper()

	d.CheckAndRecord("s1", "code A")
	d.Forget("s1")
	if d.CheckAndRecord("s1", "code A") {
		t.Error("forgotten session still flagged duplicate")
	}
}

func TestDeduper_Concurrent(t *testing.T) {
	d := NewDeduper()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", n%5)
			d.CheckAndRecord(session, fmt.Sprintf("code %d", n))
		}(i)
	}
	wg.Wait()
}
