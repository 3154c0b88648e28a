package store

import (
	"errors"
	"testing"

	"festival-bot/internal/models"
)

func TestOpenHomeOverwrites(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.Sessions.HomeRef(42); err != nil || ok {
		t.Fatalf("HomeRef on fresh chat = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Sessions.OpenHome(42, 10); err != nil {
		t.Fatalf("OpenHome() error: %v", err)
	}
	if err := s.Sessions.OpenHome(42, 11); err != nil {
		t.Fatalf("OpenHome() second call error: %v", err)
	}

	id, ok, err := s.Sessions.HomeRef(42)
	if err != nil || !ok {
		t.Fatalf("HomeRef() = ok=%v err=%v", ok, err)
	}
	if id != 11 {
		t.Errorf("home ref = %d, want the latest (11)", id)
	}
}

func TestAttachEphemeralSlotOccupied(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions.OpenHome(42, 10); err != nil {
		t.Fatalf("OpenHome() error: %v", err)
	}

	if err := s.Sessions.AttachEphemeral(42, SlotMap, 20); err != nil {
		t.Fatalf("AttachEphemeral() error: %v", err)
	}
	if err := s.Sessions.AttachEphemeral(42, SlotMap, 21); !errors.Is(err, models.ErrSlotOccupied) {
		t.Errorf("second attach = %v, want ErrSlotOccupied", err)
	}

	// The event slot is independent.
	if err := s.Sessions.AttachEphemeral(42, SlotEvent, 30); err != nil {
		t.Errorf("AttachEphemeral(event) error: %v", err)
	}

	prev, had, err := s.Sessions.DetachEphemeral(42, SlotMap)
	if err != nil {
		t.Fatalf("DetachEphemeral() error: %v", err)
	}
	if !had || prev != 20 {
		t.Errorf("detach returned %d/%v, want 20/true", prev, had)
	}

	// Freed slot accepts a new message.
	if err := s.Sessions.AttachEphemeral(42, SlotMap, 22); err != nil {
		t.Errorf("attach after detach error: %v", err)
	}
}

func TestDetachEmptySlot(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions.OpenHome(42, 10); err != nil {
		t.Fatalf("OpenHome() error: %v", err)
	}
	prev, had, err := s.Sessions.DetachEphemeral(42, SlotEvent)
	if err != nil {
		t.Fatalf("DetachEphemeral() error: %v", err)
	}
	if had || prev != 0 {
		t.Errorf("detach of empty slot returned %d/%v", prev, had)
	}
}

func TestAttachWithoutHome(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions.AttachEphemeral(99, SlotMap, 20); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("attach without home = %v, want ErrNotFound", err)
	}
}
