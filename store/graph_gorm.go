package store

import (
	"context"
	"time"

	"github.com/habiliai/memoryd/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGraphStore keeps the graph in three relational tables so the embedded
// sqlite deployment gets graph memory without a graph server.
type GormGraphStore struct {
	db *gorm.DB
}

type (
	GraphEntityRecord struct {
		ID        uint   `gorm:"primaryKey"`
		UserID    string `gorm:"uniqueIndex:idx_graph_entity_user_name;not null"`
		Name      string `gorm:"uniqueIndex:idx_graph_entity_user_name;not null"`
		Type      string
		CreatedAt time.Time
	}

	GraphEntitySourceRecord struct {
		EntityID uint   `gorm:"primaryKey"`
		RecordID string `gorm:"primaryKey;index:idx_graph_source_record"`
	}

	GraphRelationRecord struct {
		ID        uint   `gorm:"primaryKey"`
		UserID    string `gorm:"index:idx_graph_relation_user;not null"`
		Source    string `gorm:"not null"`
		Relation  string `gorm:"not null"`
		Target    string `gorm:"not null"`
		RecordID  string `gorm:"index:idx_graph_relation_record;not null"`
		CreatedAt time.Time
	}
)

func (GraphEntityRecord) TableName() string       { return "graph_entities" }
func (GraphEntitySourceRecord) TableName() string { return "graph_entity_sources" }
func (GraphRelationRecord) TableName() string     { return "graph_relations" }

var _ GraphStore = (*GormGraphStore)(nil)

func NewGormGraphStore(ctx context.Context, db *gorm.DB) (*GormGraphStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&GraphEntityRecord{}, &GraphEntitySourceRecord{}, &GraphRelationRecord{}); err != nil {
		return nil, errors.WrapKindf(err, errors.ErrGraphStore, "failed to migrate graph tables")
	}
	return &GormGraphStore{db: db}, nil
}

func (s *GormGraphStore) Upsert(ctx context.Context, userID, recordID string, g *Graph) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteByRecord(tx, []string{recordID}); err != nil {
			return err
		}

		for _, e := range g.Entities {
			entity := GraphEntityRecord{UserID: userID, Name: e.Name}
			if err := tx.Where(GraphEntityRecord{UserID: userID, Name: e.Name}).
				Attrs(GraphEntityRecord{Type: e.Type}).
				FirstOrCreate(&entity).Error; err != nil {
				return errors.Wrapf(err, "failed to upsert entity %s", e.Name)
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&GraphEntitySourceRecord{EntityID: entity.ID, RecordID: recordID}).Error; err != nil {
				return errors.Wrapf(err, "failed to tag entity %s", e.Name)
			}
		}

		for _, r := range g.Relations {
			if err := tx.Create(&GraphRelationRecord{
				UserID:   userID,
				Source:   r.Source,
				Relation: r.Relation,
				Target:   r.Target,
				RecordID: recordID,
			}).Error; err != nil {
				return errors.Wrapf(err, "failed to insert relation %s", r.Relation)
			}
		}
		return nil
	})
	return errors.Mark(err, errors.ErrGraphStore)
}

func (s *GormGraphStore) DeleteByRecord(ctx context.Context, recordIDs ...string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteByRecord(tx, recordIDs)
	})
	return errors.Mark(err, errors.ErrGraphStore)
}

func deleteByRecord(tx *gorm.DB, recordIDs []string) error {
	if err := tx.Delete(&GraphRelationRecord{}, "record_id IN ?", recordIDs).Error; err != nil {
		return errors.Wrapf(err, "failed to delete relations")
	}
	if err := tx.Delete(&GraphEntitySourceRecord{}, "record_id IN ?", recordIDs).Error; err != nil {
		return errors.Wrapf(err, "failed to delete entity provenance")
	}
	if err := tx.Where("id NOT IN (?)", tx.Model(&GraphEntitySourceRecord{}).Select("entity_id")).
		Delete(&GraphEntityRecord{}).Error; err != nil {
		return errors.Wrapf(err, "failed to delete orphaned entities")
	}
	return nil
}

func (s *GormGraphStore) DeleteAll(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if userID == "" {
			for _, model := range []any{&GraphRelationRecord{}, &GraphEntitySourceRecord{}, &GraphEntityRecord{}} {
				if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
					return errors.Wrapf(err, "failed to wipe graph")
				}
			}
			return nil
		}

		if err := tx.Delete(&GraphRelationRecord{}, "user_id = ?", userID).Error; err != nil {
			return errors.Wrapf(err, "failed to delete relations of %s", userID)
		}
		entityIDs := tx.Model(&GraphEntityRecord{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("entity_id IN (?)", entityIDs).Delete(&GraphEntitySourceRecord{}).Error; err != nil {
			return errors.Wrapf(err, "failed to delete entity provenance of %s", userID)
		}
		if err := tx.Delete(&GraphEntityRecord{}, "user_id = ?", userID).Error; err != nil {
			return errors.Wrapf(err, "failed to delete entities of %s", userID)
		}
		return nil
	})
	return errors.Mark(err, errors.ErrGraphStore)
}

func (s *GormGraphStore) Relations(ctx context.Context, userID string) ([]Relation, error) {
	var rows []GraphRelationRecord
	q := s.db.WithContext(ctx).Order("id")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.WrapKindf(err, errors.ErrGraphStore, "failed to list relations")
	}

	relations := make([]Relation, 0, len(rows))
	for _, row := range rows {
		relations = append(relations, Relation{
			Source:   row.Source,
			Relation: row.Relation,
			Target:   row.Target,
			RecordID: row.RecordID,
			UserID:   row.UserID,
		})
	}
	return relations, nil
}

// EntityCount is used by verification after a wipe.
func (s *GormGraphStore) EntityCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&GraphEntityRecord{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, errors.WrapKindf(err, errors.ErrGraphStore, "failed to count entities")
	}
	return n, nil
}

// Close is a no-op; the shared database is closed by its owner.
func (s *GormGraphStore) Close(context.Context) error { return nil }
