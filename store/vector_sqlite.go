package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SqliteVectorStore keeps records in a gorm table and their embeddings in a
// sqlite-vec vec0 virtual table using cosine distance.
type SqliteVectorStore struct {
	db     *gorm.DB
	vecDim int
}

type SqliteMemoryRecord struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index:idx_memories_user;not null"`
	Namespace string    `gorm:"index:idx_memories_namespace;not null"`
	Hash      string    `gorm:"index:idx_memories_hash;not null"`
	Text      string    `gorm:"type:text;not null"`
	Metadata  datatypes.JSONType[record.Metadata]
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (SqliteMemoryRecord) TableName() string {
	return "memories"
}

var _ VectorStore = (*SqliteVectorStore)(nil)

func NewSqliteVectorStore(ctx context.Context, db *gorm.DB, dimension int) (*SqliteVectorStore, error) {
	store := &SqliteVectorStore{db: db, vecDim: dimension}

	if err := db.WithContext(ctx).AutoMigrate(&SqliteMemoryRecord{}); err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to migrate memories table")
	}
	if err := store.createVectorTable(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SqliteVectorStore) createVectorTable(ctx context.Context) error {
	var sqliteVersion, vecVersion string
	err := s.db.WithContext(ctx).Raw("SELECT sqlite_version(), vec_version()").Row().Scan(&sqliteVersion, &vecVersion)
	if err != nil {
		return errors.WrapKindf(err, errors.ErrStore, "sqlite-vec extension not properly loaded")
	}

	createTableSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_vectors USING vec0(
			record_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.vecDim)
	if err := s.db.WithContext(ctx).Exec(createTableSQL).Error; err != nil {
		return errors.WrapKindf(err, errors.ErrStore, "failed to create memory_vectors table")
	}

	return nil
}

func (s *SqliteVectorStore) Upsert(ctx context.Context, rec *record.Record, embedding []float32) error {
	if len(embedding) != s.vecDim {
		return errors.Validationf("embedding has %d dimensions, store expects %d", len(embedding), s.vecDim)
	}
	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize embedding")
	}

	row := SqliteMemoryRecord{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Namespace: rec.Namespace.String(),
		Hash:      rec.Hash,
		Text:      rec.Text,
		Metadata:  datatypes.NewJSONType(rec.Metadata),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&row).Error; err != nil {
			return errors.Wrapf(err, "failed to save memory record")
		}
		if err := tx.Exec("DELETE FROM memory_vectors WHERE record_id = ?", rec.ID).Error; err != nil {
			return errors.Wrapf(err, "failed to delete existing vector")
		}
		if err := tx.Exec("INSERT INTO memory_vectors (record_id, embedding) VALUES (?, ?)", rec.ID, serialized).Error; err != nil {
			return errors.Wrapf(err, "failed to insert memory vector")
		}
		return nil
	})
	return errors.Mark(err, errors.ErrStore)
}

func (s *SqliteVectorStore) Get(ctx context.Context, id string) (*record.Record, error) {
	var row SqliteMemoryRecord
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("memory %s", id)
		}
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to fetch memory %s", id)
	}
	return row.toRecord(), nil
}

func (s *SqliteVectorStore) List(ctx context.Context, filter Filter) ([]*record.Record, error) {
	var rows []SqliteMemoryRecord
	if err := s.scope(ctx, filter).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to list memories")
	}

	records := make([]*record.Record, 0, len(rows))
	for _, row := range rows {
		if r := row.toRecord(); filter.Match(r) {
			records = append(records, r)
		}
	}
	SortNewestFirst(records)
	return records, nil
}

func (s *SqliteVectorStore) Search(ctx context.Context, embedding []float32, k int, filter Filter) ([]record.Scored, error) {
	if len(embedding) != s.vecDim {
		return nil, errors.Validationf("query embedding has %d dimensions, store expects %d", len(embedding), s.vecDim)
	}
	if k <= 0 {
		return []record.Scored{}, nil
	}

	serializedQuery, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query embedding")
	}

	rows, err := s.nearest(ctx, serializedQuery, k, filter)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to execute search query")
	}
	defer rows.Close()

	distances := make(map[string]float64)
	var ids []string
	for rows.Next() {
		var (
			id       string
			distance float64
		)
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, errors.WrapKindf(err, errors.ErrStore, "failed to scan result row")
		}
		ids = append(ids, id)
		distances[id] = distance
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to read search results")
	}
	if len(ids) == 0 {
		return []record.Scored{}, nil
	}

	var records []SqliteMemoryRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to fetch memory records")
	}

	results := make([]record.Scored, 0, len(records))
	for _, row := range records {
		r := row.toRecord()
		if !filter.Match(r) {
			continue
		}
		results = append(results, record.Scored{
			Record: r,
			Score:  1.0 - distances[row.ID],
		})
	}

	SortScored(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SqliteVectorStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM memory_vectors WHERE record_id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete vectors")
		}
		if err := tx.Delete(&SqliteMemoryRecord{}, "id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete memory records")
		}
		return nil
	})
	return errors.Mark(err, errors.ErrStore)
}

func (s *SqliteVectorStore) DeleteAll(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&SqliteMemoryRecord{})
		if userID != "" {
			q = q.Where("user_id = ?", userID)
		}
		if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
			return errors.Wrapf(err, "failed to collect memory ids")
		}

		if userID == "" {
			if err := tx.Exec("DELETE FROM memory_vectors").Error; err != nil {
				return errors.Wrapf(err, "failed to wipe vectors")
			}
			return errors.Wrapf(tx.Where("1 = 1").Delete(&SqliteMemoryRecord{}).Error, "failed to wipe memories")
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Exec("DELETE FROM memory_vectors WHERE record_id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete vectors")
		}
		return errors.Wrapf(tx.Delete(&SqliteMemoryRecord{}, "id IN ?", ids).Error, "failed to delete memories")
	})
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore)
	}
	return ids, nil
}

// nearest yields (record_id, distance) rows. Unfiltered queries use the vec0
// KNN index. Filtered ones scan the vectors of the matching rows exactly, so a
// narrow filter never loses candidates to a KNN window over the whole table.
func (s *SqliteVectorStore) nearest(ctx context.Context, query []byte, k int, filter Filter) (*sql.Rows, error) {
	if filter.IsZero() {
		return s.db.WithContext(ctx).Raw(`
			SELECT record_id, distance
			FROM memory_vectors
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		`, query, k).Rows()
	}

	return s.scope(ctx, filter).
		Joins("JOIN memory_vectors ON memory_vectors.record_id = memories.id").
		Select("memories.id AS record_id, vec_distance_cosine(memory_vectors.embedding, ?) AS distance", query).
		Order("distance, memories.created_at DESC, memories.id").
		Limit(k).
		Rows()
}

// Close is a no-op; the gorm handle is owned by whoever opened it.
func (s *SqliteVectorStore) Close() error { return nil }

func (s *SqliteVectorStore) scope(ctx context.Context, filter Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&SqliteMemoryRecord{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Namespace != "" {
		q = q.Where("namespace = ?", filter.Namespace.String())
	}
	if filter.Base != "" {
		q = q.Where("namespace = ? OR namespace LIKE ?", filter.Base, filter.Base+":%")
	}
	if filter.Hash != "" {
		q = q.Where("hash = ?", filter.Hash)
	}
	if filter.Bootstrap != nil {
		q = q.Where("COALESCE(json_extract(metadata, '$.bootstrap'), 0) = ?", lo.Ternary(*filter.Bootstrap, 1, 0))
	}
	if filter.ExcludeRestricted {
		q = q.Where("namespace NOT LIKE ?", record.Restricted+":%")
	}
	return q
}

func (r SqliteMemoryRecord) toRecord() *record.Record {
	return &record.Record{
		ID:        r.ID,
		Text:      r.Text,
		Namespace: record.Namespace(r.Namespace),
		UserID:    r.UserID,
		Hash:      r.Hash,
		Metadata:  r.Metadata.Data(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
