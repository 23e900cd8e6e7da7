package index

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/substrate-kb/substrate/internal/domain"
)

// snapshotEntry is the serialized form of one indexed instance plus its
// decay view. The graph is not serialized; it is rebuilt on load.
type snapshotEntry struct {
	ID            string
	Vector        []float32
	DepartmentID  string
	CategoryID    string
	DIKWLevel     string
	SourceFileIDs []string
	CreatedAt     time.Time
	DecayScore    float64
}

type snapshotFile struct {
	Dimension int
	TakenAt   time.Time
	Entries   []snapshotEntry
}

// WriteSnapshot serializes the current generation. The snapshot is a derived
// artifact: losing it only costs a rebuild from the embedding store.
func (idx *Index) WriteSnapshot(w io.Writer) error {
	g := idx.gen.Load()
	g.mu.RLock()
	file := snapshotFile{
		Dimension: idx.cfg.Dimension,
		TakenAt:   time.Now().UTC(),
		Entries:   make([]snapshotEntry, 0, len(g.entries)),
	}
	for _, e := range g.entries {
		file.Entries = append(file.Entries, snapshotEntry{
			ID:            e.ID,
			Vector:        e.Vector,
			DepartmentID:  e.DepartmentID,
			CategoryID:    e.CategoryID,
			DIKWLevel:     string(e.DIKWLevel),
			SourceFileIDs: e.SourceFileIDs,
			CreatedAt:     e.CreatedAt,
			DecayScore:    idx.DecayScore(e.ID),
		})
	}
	g.mu.RUnlock()

	if err := gob.NewEncoder(w).Encode(file); err != nil {
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the index contents with a previously serialized
// snapshot. Entries with a mismatched dimension fail the whole load: a
// snapshot from another deployment is not partially usable.
func (idx *Index) ReadSnapshot(ctx context.Context, r io.Reader) (int, error) {
	var file snapshotFile
	if err := gob.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to decode index snapshot: %w", err)
	}
	if file.Dimension != idx.cfg.Dimension {
		return 0, domain.ErrDimensionMismatch
	}

	instances := make([]*domain.KnowledgeInstance, 0, len(file.Entries))
	for _, se := range file.Entries {
		instances = append(instances, &domain.KnowledgeInstance{
			ID:               se.ID,
			Embedding:        se.Vector,
			DepartmentID:     se.DepartmentID,
			CategoryID:       se.CategoryID,
			DIKWLevel:        domain.DIKWLevel(se.DIKWLevel),
			SourceFileIDs:    se.SourceFileIDs,
			CreatedAt:        se.CreatedAt,
			LastReinforcedAt: se.CreatedAt,
			DecayScore:       se.DecayScore,
		})
	}

	skipped, err := idx.Rebuild(ctx, instances)
	if err != nil {
		return 0, err
	}
	return len(instances) - skipped, nil
}
