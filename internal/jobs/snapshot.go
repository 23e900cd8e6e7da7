package jobs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// SnapshotSource serializes the current index generation.
type SnapshotSource interface {
	WriteSnapshot(w io.Writer) error
}

// SnapshotSink stores a serialized snapshot.
type SnapshotSink interface {
	PutSnapshot(ctx context.Context, r io.Reader, takenAt time.Time) (string, error)
}

// SnapshotPublisher periodically exports the in-memory index to object
// storage so a restart can warm up without a full store reload.
type SnapshotPublisher struct {
	source SnapshotSource
	sink   SnapshotSink
	now    func() time.Time
}

func NewSnapshotPublisher(source SnapshotSource, sink SnapshotSink) *SnapshotPublisher {
	return &SnapshotPublisher{
		source: source,
		sink:   sink,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessJobs exports one snapshot.
func (p *SnapshotPublisher) ProcessJobs(ctx context.Context) error {
	var buf bytes.Buffer
	if err := p.source.WriteSnapshot(&buf); err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key, err := p.sink.PutSnapshot(ctx, &buf, p.now())
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	log.Printf("snapshot published: key=%s size=%d", key, buf.Len())
	return nil
}
