package store

import (
	"context"
	"time"

	"github.com/habiliai/memoryd/errors"
	"gorm.io/gorm"
)

type OutboxOp string

const (
	// OpSync brings the graph of one record in line with the vector store:
	// mirror it when it exists, remove its provenance when it does not.
	OpSync OutboxOp = "sync"
	// OpDeleteAll repeats a failed graph wipe for a user, or for everyone.
	OpDeleteAll OutboxOp = "delete_all"
)

type (
	OutboxEntry struct {
		ID        uint     `gorm:"primaryKey"`
		Op        OutboxOp `gorm:"not null"`
		RecordID  string   `gorm:"index:idx_graph_outbox_record"`
		UserID    string
		Attempts  int
		LastError string `gorm:"type:text"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Outbox queues graph mirroring work that failed so it can be replayed.
	Outbox interface {
		Enqueue(ctx context.Context, op OutboxOp, recordID, userID string, cause error) error
		Pending(ctx context.Context, limit int) ([]*OutboxEntry, error)
		Complete(ctx context.Context, id uint) error
		Fail(ctx context.Context, id uint, cause error) error
		Count(ctx context.Context) (int64, error)
	}

	GormOutbox struct {
		db *gorm.DB
	}
)

func (OutboxEntry) TableName() string { return "graph_outbox" }

var _ Outbox = (*GormOutbox)(nil)

func NewGormOutbox(ctx context.Context, db *gorm.DB) (*GormOutbox, error) {
	if err := db.WithContext(ctx).AutoMigrate(&OutboxEntry{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate graph outbox")
	}
	return &GormOutbox{db: db}, nil
}

// Enqueue keeps at most one pending sync per record; the newest cause wins.
func (o *GormOutbox) Enqueue(ctx context.Context, op OutboxOp, recordID, userID string, cause error) error {
	entry := &OutboxEntry{Op: op, RecordID: recordID, UserID: userID, LastError: errorText(cause)}
	return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if op == OpSync {
			if err := tx.Delete(&OutboxEntry{}, "op = ? AND record_id = ?", OpSync, recordID).Error; err != nil {
				return errors.Wrapf(err, "failed to supersede outbox entries of %s", recordID)
			}
		}
		return errors.Wrapf(tx.Create(entry).Error, "failed to enqueue %s for %s", op, recordID)
	})
}

func (o *GormOutbox) Pending(ctx context.Context, limit int) ([]*OutboxEntry, error) {
	var entries []*OutboxEntry
	if err := o.db.WithContext(ctx).Order("id").Limit(limit).Find(&entries).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to load outbox")
	}
	return entries, nil
}

func (o *GormOutbox) Complete(ctx context.Context, id uint) error {
	return errors.Wrapf(o.db.WithContext(ctx).Delete(&OutboxEntry{}, id).Error, "failed to complete outbox entry %d", id)
}

func (o *GormOutbox) Fail(ctx context.Context, id uint, cause error) error {
	return errors.Wrapf(o.db.WithContext(ctx).Model(&OutboxEntry{}).Where("id = ?", id).Updates(map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": errorText(cause),
	}).Error, "failed to record outbox failure %d", id)
}

func (o *GormOutbox) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := o.db.WithContext(ctx).Model(&OutboxEntry{}).Count(&n).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count outbox")
	}
	return n, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
