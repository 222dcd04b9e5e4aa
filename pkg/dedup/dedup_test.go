package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestShouldProcess(t *testing.T) {
	d := New(time.Minute, 100)

	if !d.ShouldProcess("a") {
		t.Error("first delivery should be processed")
	}
	if d.ShouldProcess("a") {
		t.Error("repeat delivery within the TTL should be dropped")
	}
	if !d.ShouldProcess("b") {
		t.Error("a different id should be processed")
	}
	if !d.ShouldProcess("") {
		t.Error("empty ids are always processed")
	}
	if !d.ShouldProcess("") {
		t.Error("empty ids are always processed")
	}
}

func TestTTLExpiry(t *testing.T) {
	d := New(5*time.Millisecond, 100)

	if !d.ShouldProcess("a") {
		t.Fatal("first delivery should be processed")
	}
	time.Sleep(10 * time.Millisecond)
	if !d.ShouldProcess("a") {
		t.Error("delivery after the TTL should be processed again")
	}
}

func TestBoundedSize(t *testing.T) {
	d := New(20*time.Millisecond, 10)

	for i := 0; i < 10; i++ {
		d.ShouldProcess(fmt.Sprintf("id-%d", i))
	}
	time.Sleep(30 * time.Millisecond)
	// Everything above has expired; the next insert evicts instead of
	// growing past the cap.
	d.ShouldProcess("fresh")
	if len(d.seen) > 10 {
		t.Errorf("seen map has %d entries, cap is 10", len(d.seen))
	}
	if d.ShouldProcess("fresh") {
		t.Error("fresh id should have been recorded")
	}
}
