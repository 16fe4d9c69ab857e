package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PgVectorStore keeps records and embeddings in one postgres table with a
// pgvector column, ranked by cosine distance.
type PgVectorStore struct {
	pool   *pgxpool.Pool
	vecDim int
}

var _ VectorStore = (*PgVectorStore)(nil)

const pgColumns = "id, user_id, namespace, hash, text, metadata, created_at, updated_at"

func NewPgVectorStore(ctx context.Context, databaseURL string, dimension int) (*PgVectorStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrInvalidConfig, "failed to parse database url")
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	// the vector type must exist before any pooled connection registers it
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to connect to postgres")
	}
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to create vector extension")
	}
	_ = conn.Close(ctx)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to create postgres pool")
	}

	s := &PgVectorStore{pool: pool, vecDim: dimension}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	namespace TEXT NOT NULL,
	hash TEXT NOT NULL,
	text TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	embedding vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories (user_id);
CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories (namespace);
CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories (hash);`, s.vecDim)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return errors.WrapKindf(err, errors.ErrStore, "failed to create memories table")
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, rec *record.Record, embedding []float32) error {
	if len(embedding) != s.vecDim {
		return errors.Validationf("embedding has %d dimensions, store expects %d", len(embedding), s.vecDim)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal metadata")
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO memories (id, user_id, namespace, hash, text, metadata, created_at, updated_at, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	namespace = EXCLUDED.namespace,
	hash = EXCLUDED.hash,
	text = EXCLUDED.text,
	metadata = EXCLUDED.metadata,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	embedding = EXCLUDED.embedding`,
		rec.ID, rec.UserID, rec.Namespace.String(), rec.Hash, rec.Text, metadata,
		rec.CreatedAt, rec.UpdatedAt, pgvector.NewVector(embedding),
	)
	if err != nil {
		return errors.WrapKindf(err, errors.ErrStore, "failed to upsert memory %s", rec.ID)
	}
	return nil
}

func (s *PgVectorStore) Get(ctx context.Context, id string) (*record.Record, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+pgColumns+" FROM memories WHERE id = $1", id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFoundf("memory %s", id)
		}
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to fetch memory %s", id)
	}
	return r, nil
}

func (s *PgVectorStore) List(ctx context.Context, filter Filter) ([]*record.Record, error) {
	where, args := pgWhere(filter, 1)
	rows, err := s.pool.Query(ctx, "SELECT "+pgColumns+" FROM memories"+where+" ORDER BY created_at DESC, id", args...)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to list memories")
	}
	defer rows.Close()

	var records []*record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.WrapKindf(err, errors.ErrStore, "failed to scan memory")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to list memories")
	}
	return records, nil
}

func (s *PgVectorStore) Search(ctx context.Context, embedding []float32, k int, filter Filter) ([]record.Scored, error) {
	if len(embedding) != s.vecDim {
		return nil, errors.Validationf("query embedding has %d dimensions, store expects %d", len(embedding), s.vecDim)
	}
	if k <= 0 {
		return []record.Scored{}, nil
	}

	where, args := pgWhere(filter, 3)
	query := "SELECT " + pgColumns + ", 1 - (embedding <=> $1) AS score FROM memories" + where +
		" ORDER BY embedding <=> $1, created_at DESC LIMIT $2"
	rows, err := s.pool.Query(ctx, query, append([]any{pgvector.NewVector(embedding), k}, args...)...)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to execute search query")
	}
	defer rows.Close()

	results := make([]record.Scored, 0, k)
	for rows.Next() {
		var (
			r        record.Record
			ns       string
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &ns, &r.Hash, &r.Text, &metadata, &r.CreatedAt, &r.UpdatedAt, &score); err != nil {
			return nil, errors.WrapKindf(err, errors.ErrStore, "failed to scan search result")
		}
		if err := fillRecord(&r, ns, metadata); err != nil {
			return nil, err
		}
		results = append(results, record.Scored{Record: &r, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to read search results")
	}

	SortScored(results)
	return results, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM memories WHERE id = ANY($1)", ids); err != nil {
		return errors.WrapKindf(err, errors.ErrStore, "failed to delete memories")
	}
	return nil
}

func (s *PgVectorStore) DeleteAll(ctx context.Context, userID string) ([]string, error) {
	query := "DELETE FROM memories RETURNING id"
	var args []any
	if userID != "" {
		query = "DELETE FROM memories WHERE user_id = $1 RETURNING id"
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to delete memories")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrStore, "failed to collect deleted ids")
	}
	return ids, nil
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

// pgWhere renders the filter as a WHERE clause with placeholders numbered
// from first.
func pgWhere(filter Filter, first int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, fmt.Sprintf(cond, first+len(args)))
		args = append(args, arg)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Namespace != "" {
		add("namespace = $%d", filter.Namespace.String())
	}
	if filter.Base != "" {
		add("split_part(namespace, ':', 1) = $%d", filter.Base)
	}
	if filter.Hash != "" {
		add("hash = $%d", filter.Hash)
	}
	if filter.Bootstrap != nil {
		add("COALESCE((metadata->>'bootstrap')::boolean, false) = $%d", *filter.Bootstrap)
	}
	if filter.ExcludeRestricted {
		add("split_part(namespace, ':', 1) <> $%d", record.Restricted)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		r        record.Record
		ns       string
		metadata []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &ns, &r.Hash, &r.Text, &metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := fillRecord(&r, ns, metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

func fillRecord(r *record.Record, ns string, metadata []byte) error {
	r.Namespace = record.Namespace(ns)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return errors.WrapKindf(err, errors.ErrStore, "failed to decode metadata of %s", r.ID)
		}
	}
	return nil
}

