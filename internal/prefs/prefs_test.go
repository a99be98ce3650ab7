package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))

	if got := p.CardSet(); got != DefaultCardSet {
		t.Errorf("CardSet() = %q, want %q", got, DefaultCardSet)
	}
	if home, err := os.UserHomeDir(); err == nil {
		if want := filepath.Join(home, "Downloads"); p.TrackDir() != want {
			t.Errorf("TrackDir() = %q, want %q", p.TrackDir(), want)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.json")

	p := LoadFrom(path)
	p.SetTrackDir("/data/screens")
	p.SetCardSet("mkm")
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}

	q := LoadFrom(path)
	if q.TrackDir() != "/data/screens" {
		t.Errorf("TrackDir() = %q", q.TrackDir())
	}
	if q.CardSet() != "mkm" {
		t.Errorf("CardSet() = %q", q.CardSet())
	}
}

func TestCorruptFileGivesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LoadFrom(path).CardSet(); got != DefaultCardSet {
		t.Errorf("CardSet() = %q, want %q", got, DefaultCardSet)
	}
}
