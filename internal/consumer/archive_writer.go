package consumer

import (
	"context"
	"vitalmesh/internal/models"
)

// SnapshotArchiver 快照归档（由 repository.ReadingRepository 实现）
type SnapshotArchiver interface {
	InsertSnapshot(ctx context.Context, snap models.Snapshot) (int, error)
}

// ArchiveWriter 把快照写入 PostgreSQL
type ArchiveWriter struct {
	archiver SnapshotArchiver
}

func NewArchiveWriter(archiver SnapshotArchiver) *ArchiveWriter {
	return &ArchiveWriter{archiver: archiver}
}

func (w *ArchiveWriter) Name() string { return "postgres-archive" }

func (w *ArchiveWriter) Handle(ctx context.Context, snap models.Snapshot) error {
	_, err := w.archiver.InsertSnapshot(ctx, snap)
	return err
}
