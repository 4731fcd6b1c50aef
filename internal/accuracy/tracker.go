package accuracy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/kjstillabower/wind-alert/internal/observability"
	"github.com/kjstillabower/wind-alert/internal/snapshot"
)

// saveAttempts is the first write plus one retry after a conflict.
const saveAttempts = 2

// ConcurrentUpdateError reports that the snapshot kept changing underneath Save.
type ConcurrentUpdateError struct {
	Attempts int
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("accuracy snapshot changed concurrently; gave up after %d attempts", e.Attempts)
}

func (e *ConcurrentUpdateError) Unwrap() error {
	return snapshot.ErrConflict
}

// Tracker loads and saves the accuracy snapshot through a snapshot.Store.
type Tracker struct {
	store  snapshot.Store
	logger *zap.Logger
}

// NewTracker returns a Tracker backed by store.
func NewTracker(store snapshot.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger}
}

// Load returns the stored snapshot, or an empty one when nothing is stored yet.
func (t *Tracker) Load(ctx context.Context) (Snapshot, error) {
	doc, err := t.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accuracy snapshot: %w", err)
	}
	return Decode(doc.Data)
}

// Save overlays updates on the current stored snapshot and writes it back conditioned
// on the revision it read. A conflict triggers one fresh read-modify-write; a second
// conflict returns *ConcurrentUpdateError. When the merged content equals what is
// stored, nothing is written.
func (t *Tracker) Save(ctx context.Context, updates Snapshot) error {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		doc, err := t.store.Read(ctx)
		if err != nil {
			observability.SnapshotWritesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("read accuracy snapshot: %w", err)
		}
		current, err := Decode(doc.Data)
		if err != nil {
			observability.SnapshotWritesTotal.WithLabelValues("error").Inc()
			return err
		}
		maps.Copy(current, updates)

		data, err := Encode(current)
		if err != nil {
			return err
		}
		if doc.Exists() && bytes.Equal(data, doc.Data) {
			observability.SnapshotWritesTotal.WithLabelValues("unchanged").Inc()
			t.logger.Debug("accuracy snapshot unchanged, skipping write")
			return nil
		}

		revision, err := t.store.Write(ctx, data, doc.Revision)
		if errors.Is(err, snapshot.ErrConflict) {
			observability.SnapshotWritesTotal.WithLabelValues("conflict").Inc()
			t.logger.Warn("accuracy snapshot revision conflict",
				zap.Int("attempt", attempt),
				zap.String("revision", doc.Revision))
			continue
		}
		if err != nil {
			observability.SnapshotWritesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("write accuracy snapshot: %w", err)
		}

		observability.SnapshotWritesTotal.WithLabelValues("success").Inc()
		t.logger.Info("accuracy snapshot saved",
			zap.Int("sources", len(current)),
			zap.String("revision", revision))
		return nil
	}
	return &ConcurrentUpdateError{Attempts: saveAttempts}
}
