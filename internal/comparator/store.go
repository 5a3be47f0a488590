package comparator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"pronounce-go/internal/audio"
	"pronounce-go/internal/extractor"
	"pronounce-go/internal/textsim"
	"pronounce-go/internal/types"
)

var ErrReferenceNotFound = errors.New("comparator: reference recording not found")

// Entry is one preloaded reference recording.
type Entry struct {
	PhraseID   string
	Text       string
	Key        string
	SampleRate int
	// duration of the prepared (trimmed) recording in seconds
	Duration float64
	Sequence [][]float64
	Clip     audio.Clip
}

// Store is an immutable set of reference recordings keyed by textsim.Key.
// Safe for concurrent readers.
type Store struct {
	dir     string
	entries map[string]*Entry
}

// NewStore builds a store from already prepared entries. Used by tests and
// tools that synthesize references.
func NewStore(entries ...*Entry) *Store {
	s := &Store{entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		s.entries[e.Key] = e
	}
	return s
}

// LoadStore reads every *.wav file in dir. The file stem is the phrase key;
// catalog phrases whose key matches supply the id and display text. A
// missing directory yields an empty store. Files that fail to decode are
// skipped with a warning.
func LoadStore(dir string, ex *extractor.Extractor, catalog []types.Phrase, trimThreshold float64, log *logrus.Entry) (*Store, error) {
	s := &Store{dir: dir, entries: map[string]*Entry{}}
	log = log.WithField("component", "reference_store").WithField("dir", dir)

	byKey := make(map[string]types.Phrase, len(catalog))
	for _, p := range catalog {
		byKey[textsim.Key(p.Text)] = p
	}

	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("reference directory missing, comparator will score 0")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("comparator: read reference dir: %w", err)
	}

	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".wav") {
			continue
		}
		path := filepath.Join(dir, f.Name())
		key := textsim.Key(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())))
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("file", f.Name()).Warn("reference unreadable, skipped")
			continue
		}
		clip, err := audio.DecodeWAV(data)
		if err != nil {
			log.WithError(err).WithField("file", f.Name()).Warn("reference undecodable, skipped")
			continue
		}
		clip = clip.Prepared(trimThreshold)

		e := &Entry{
			PhraseID:   key,
			Text:       key,
			Key:        key,
			SampleRate: clip.SampleRate,
			Duration:   clip.Duration(),
			Sequence:   ex.Sequence(clip),
			Clip:       clip,
		}
		if p, ok := byKey[key]; ok {
			e.Text = p.Text
			if p.ID != "" {
				e.PhraseID = p.ID
			}
		}
		s.entries[key] = e
	}
	log.WithField("references", len(s.entries)).Info("reference recordings loaded")
	return s, nil
}

// Lookup finds the reference for a phrase by its normalized key.
func (s *Store) Lookup(text string) (*Entry, error) {
	if s == nil {
		return nil, ErrReferenceNotFound
	}
	key := textsim.Key(text)
	if e, ok := s.entries[key]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, filepath.Join(s.dir, key+".wav"))
}

// Entries returns the references in no particular order.
func (s *Store) Entries() []*Entry {
	if s == nil {
		return nil
	}
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
