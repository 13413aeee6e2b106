package storage

import (
	"bytes"
	"testing"
)

func TestSpoolPutGetRemove(t *testing.T) {
	spool, err := NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}

	key, err := spool.Put("jobs/abc.jpg", []byte("payload"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	data, err := spool.Get(key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("unexpected payload %q", data)
	}
	if err := spool.Remove(key); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := spool.Get(key); err == nil {
		t.Fatal("expected error reading removed key")
	}
	// Removing twice stays quiet.
	if err := spool.Remove(key); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}
}

func TestSpoolRejectsTraversal(t *testing.T) {
	spool, err := NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	if _, err := spool.Put("../escape.jpg", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := spool.Put("", []byte("x")); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}
