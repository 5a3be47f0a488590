package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xuri/excelize/v2"

	"pronounce-go/internal/config"
	"pronounce-go/internal/logger"
)

func quiet() *logger.Logger { return &logger.Logger{Entry: logger.Discard()} }

func writeReference(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	const rate = 16000
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: rate}, SourceBitDepth: 16}
	for i := 0; i < rate/2; i++ {
		v := 0
		if (i/1600)%2 == 0 {
			v = int(12000 * float64((i%80)-40) / 40)
		}
		buf.Data = append(buf.Data, v)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func writeCatalog(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetRow("Sheet1", "A1", &[]interface{}{"ID", "Phrase", "Katakana"})
	f.SetSheetRow("Sheet1", "A2", &[]interface{}{"g-01", "Hello!", "ハロー"})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

func TestBuildWiresCatalogAndReferences(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeReference(t, dir, "hello.wav")
	catalog := filepath.Join(dir, "catalog.xlsx")
	writeCatalog(t, catalog)

	p, err := Build(config.Service{MockSpeech: true, ReferenceDir: dir, PhraseCatalog: catalog}, quiet(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Store.Len() != 1 || len(p.Catalog) != 1 {
		t.Fatalf("store = %d, catalog = %d, want 1 and 1", p.Store.Len(), len(p.Catalog))
	}
	e, err := p.Store.Lookup("hello")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.PhraseID != "g-01" || e.Text != "Hello!" {
		t.Fatalf("entry = %s %q, want catalog id and text", e.PhraseID, e.Text)
	}
	if err := p.Remote.Ready(); err != nil {
		t.Fatalf("Ready in mock mode: %v", err)
	}

	rows, err := p.Engine.Calibrate(context.Background())
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if len(rows) != 1 || rows[0].PhraseID != "g-01" {
		t.Fatalf("calibration rows = %+v", rows)
	}
}

func TestBuildWithoutCredentialsStillBuilds(t *testing.T) {
	t.Parallel()
	p, err := Build(config.Service{ReferenceDir: filepath.Join(t.TempDir(), "missing")}, quiet(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !errors.Is(p.Remote.Ready(), config.ErrMissingCredentials) {
		t.Fatalf("Ready = %v, want ErrMissingCredentials", p.Remote.Ready())
	}
}

func TestBuildRejectsBadTuning(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("fusion:\n  no_such_knob: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Build(config.Service{MockSpeech: true, TuningPath: path}, quiet(), nil); err == nil {
		t.Fatal("Build accepted an unknown tuning field")
	}
}
