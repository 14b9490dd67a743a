package prefs

import (
	"testing"
)

func TestStore_LoadEmpty(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	p, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p != (Profile{}) {
		t.Errorf("Load = %+v, want zero profile", p)
	}
	if got := p.IconOrDefault(); got != DefaultIcon {
		t.Errorf("IconOrDefault = %q, want %q", got, DefaultIcon)
	}
}

func TestStore_SaveAndReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SaveProfile("Ann", "🎉"); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := s.SaveProfile("Ann B", ""); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	p, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.DisplayName != "Ann B" {
		t.Errorf("DisplayName = %q, want Ann B", p.DisplayName)
	}
	if p.Icon != "" || p.IconOrDefault() != DefaultIcon {
		t.Errorf("Icon = %q, want empty slot with default %q", p.Icon, DefaultIcon)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}
