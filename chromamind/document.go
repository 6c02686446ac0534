package chromamind

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

// DocumentVersion is written into every saved timeline.
const DocumentVersion = "1.0"

// Metadata describes a saved timeline.
type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TotalFrames int       `json:"total_frames"`
	DurationMs  int64     `json:"duration_ms"`
	TempoBPM    float64   `json:"tempo_bpm"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
}

// Document is the persisted timeline artifact.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Frames   []Frame  `json:"frames"`
}

// NewDocument wraps a timeline for saving.
func NewDocument(t *Timeline, name, description string, generatedAt time.Time) Document {
	return Document{
		Metadata: Metadata{
			Name:        name,
			Description: description,
			TotalFrames: len(t.Frames),
			DurationMs:  t.DurationMs,
			TempoBPM:    t.TempoBPM,
			GeneratedAt: generatedAt.UTC(),
			Version:     DocumentVersion,
		},
		Frames: t.Frames,
	}
}

// Timeline rebuilds the timeline held by the document.
func (d Document) Timeline() (*Timeline, error) {
	kind := PayloadMatrix
	if len(d.Frames) > 0 && d.Frames[0].Mode != nil {
		kind = PayloadMode
	}
	t := &Timeline{
		Kind:       kind,
		Frames:     d.Frames,
		DurationMs: d.Metadata.DurationMs,
		TempoBPM:   d.Metadata.TempoBPM,
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid timeline document")
	}
	return t, nil
}

// Save writes the document as indented JSON.
func Save(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(d), "encode timeline document")
}

// Load parses a document written by Save.
func Load(r io.Reader) (Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Document{}, errors.Wrap(err, "decode timeline document")
	}
	if d.Metadata.TotalFrames != len(d.Frames) {
		return Document{}, errors.Errorf("document declares %d frames, holds %d", d.Metadata.TotalFrames, len(d.Frames))
	}
	return d, nil
}
