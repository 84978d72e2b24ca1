package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/akarpovs/cryptodrive/internal/common"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Put(ctx, "a/b", []byte("payload")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, err := s.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Get = %q", got)
	}

	if err := s.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "a/b"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound after delete, got %v", err)
	}
	// deleting again is a no-op
	if err := s.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("re-delete error: %v", err)
	}
}

func TestMemoryStore_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.PutIfAbsent(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("first PutIfAbsent error: %v", err)
	}
	err := s.PutIfAbsent(ctx, "k", []byte("two"))
	if !errors.Is(err, common.ErrKeyExists) {
		t.Fatalf("want ErrKeyExists, got %v", err)
	}
	got, _ := s.Get(ctx, "k")
	if string(got) != "one" {
		t.Fatalf("payload overwritten: %q", got)
	}
}
