package artifact

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFSStore_RoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	ref, err := s.Put(ctx, "co1", []byte("audio-bytes"), "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(ref, "co1/") || !strings.HasSuffix(ref, ".wav") {
		t.Fatalf("unexpected ref shape: %q", ref)
	}
	got, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("audio-bytes")) {
		t.Fatalf("bytes differ")
	}
}

func TestFSStore_UnknownRef(t *testing.T) {
	s, _ := NewFSStore(t.TempDir())
	if _, err := s.Get(context.Background(), "co1/missing.wav"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	s, _ := NewFSStore(t.TempDir())
	if _, err := s.Get(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFSStore_RejectsEmptyPayload(t *testing.T) {
	s, _ := NewFSStore(t.TempDir())
	if _, err := s.Put(context.Background(), "co1", nil, "audio/wav"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
