package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/habiliai/memoryd/embedding"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/record"
	"github.com/habiliai/memoryd/store"
	"github.com/samber/lo"
)

const (
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

type (
	// Service is the memory contract consumed by the HTTP API, the bootstrap
	// tool and runtime writers. The vector store behind the adapter decides
	// existence; the graph mirror is best-effort.
	Service struct {
		adapter  *store.Adapter
		embedder embedding.Embedder
		logger   *slog.Logger

		userID            string
		searchLimit       int
		includeRestricted bool
		now               func() time.Time
	}

	Option func(*Service)

	ListOptions struct {
		// UserID scopes the listing; empty lists every user.
		UserID string
		// Namespace is either a full namespace or a bare base name.
		Namespace string
		// Order is desc (default) or asc by created_at.
		Order string
	}

	SearchOptions struct {
		Limit  int
		UserID string
		// IncludeRestricted overrides the configured default when set.
		IncludeRestricted *bool
	}

	AddRequest struct {
		UserID    string
		Namespace string
		Text      string
		Metadata  record.Metadata
	}
)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithDefaultUserID(userID string) Option {
	return func(s *Service) { s.userID = userID }
}

func WithSearchLimit(limit int) Option {
	return func(s *Service) { s.searchLimit = limit }
}

func WithIncludeRestricted(include bool) Option {
	return func(s *Service) { s.includeRestricted = include }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the memory service on top of adapter and embedder.
func NewService(adapter *store.Adapter, embedder embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		adapter:     adapter,
		embedder:    embedder,
		logger:      mylog.Discard(),
		userID:      "demo-user",
		searchLimit: 10,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultUserID is the user assumed when a request names none.
func (s *Service) DefaultUserID() string { return s.userID }

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (*record.Record, error) {
	return s.adapter.Get(ctx, id)
}

// List returns records filtered by user and namespace in created_at order.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*record.Record, error) {
	filter, err := namespaceFilter(opts.Namespace)
	if err != nil {
		return nil, err
	}
	filter.UserID = opts.UserID

	records, err := s.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch opts.Order {
	case "", OrderDesc:
	case OrderAsc:
		records = lo.Reverse(records)
	default:
		return nil, errors.Validationf("unknown order %q, expected %s or %s", opts.Order, OrderDesc, OrderAsc)
	}
	return records, nil
}

// Search embeds message and returns the closest records of the user, the
// default user when none is given. There is no similarity cutoff.
func (s *Service) Search(ctx context.Context, message string, opts SearchOptions) ([]record.Scored, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.Validationf("search message is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.searchLimit
	}
	includeRestricted := s.includeRestricted
	if opts.IncludeRestricted != nil {
		includeRestricted = *opts.IncludeRestricted
	}

	query, err := embedding.EmbedOne(ctx, s.embedder, message)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to embed search message")
	}

	return s.adapter.Search(ctx, query, limit, store.Filter{
		UserID:            lo.CoalesceOrEmpty(opts.UserID, s.userID),
		ExcludeRestricted: !includeRestricted,
	})
}

// Add is the runtime memory writer. Adding a statement the user already has
// returns the stored record and false.
func (s *Service) Add(ctx context.Context, req AddRequest) (*record.Record, bool, error) {
	ns, err := record.ParseNamespace(req.Namespace)
	if err != nil {
		return nil, false, err
	}
	userID := lo.CoalesceOrEmpty(req.UserID, s.userID)

	meta := req.Metadata.Clone()
	meta.Source = lo.CoalesceOrEmpty(meta.Source, record.SourceRuntime)
	rec, err := record.New(userID, ns, req.Text, meta, s.now())
	if err != nil {
		return nil, false, err
	}

	existing, err := s.findByHash(ctx, userID, rec.Hash)
	if err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}
	// an edit keeps the id derived from the original text
	if taken, err := s.idTaken(ctx, rec.ID); err != nil {
		return nil, false, err
	} else if taken {
		rec.ID = record.NewID()
	}

	if err := s.write(ctx, rec); err != nil {
		return nil, false, err
	}
	s.logger.Info("memory added", "id", rec.ID, "namespace", rec.Namespace, "source", rec.Metadata.Source)
	return rec, true, nil
}

// Update replaces the text and embedding of id and keeps everything else.
func (s *Service) Update(ctx context.Context, id, text string) (*record.Record, error) {
	rec, err := s.adapter.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rec.SetText(text, s.now()); err != nil {
		return nil, err
	}
	if err := s.write(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("memory updated", "id", rec.ID, "namespace", rec.Namespace)
	return rec, nil
}

// Delete removes one record and its graph provenance. Unknown ids are ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.adapter.Get(ctx, id); err != nil {
		return err
	}
	if err := s.adapter.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("memory deleted", "id", id)
	return nil
}

// DeleteAll removes every record of userID, or all records when userID is
// empty, and reports how many were removed.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int, error) {
	n, err := s.adapter.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Warn("memories deleted", "user", userID, "count", n)
	return n, nil
}

// Hashes returns the content hashes already stored for userID.
func (s *Service) Hashes(ctx context.Context, userID string) (map[string]struct{}, error) {
	records, err := s.adapter.List(ctx, store.Filter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return lo.SliceToMap(records, func(r *record.Record) (string, struct{}) {
		return r.Hash, struct{}{}
	}), nil
}

// Import writes already-built records, embedding them in one batch, and
// reports how many were written. Records whose content the user already has
// are skipped, as are records whose id belongs to a memory the user has since
// edited.
func (s *Service) Import(ctx context.Context, records []*record.Record) (int, error) {
	var pending []*record.Record
	for _, rec := range records {
		rec.EnforceSensitivity()
		if err := rec.Validate(); err != nil {
			return 0, err
		}

		existing, err := s.findByHash(ctx, rec.UserID, rec.Hash)
		if err != nil {
			return 0, err
		} else if existing != nil {
			continue
		}
		taken, err := s.idTaken(ctx, rec.ID)
		if err != nil {
			return 0, err
		} else if taken {
			s.logger.Info("keeping edited memory", "id", rec.ID, "namespace", rec.Namespace)
			continue
		}
		pending = append(pending, rec)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := lo.Map(pending, func(r *record.Record, _ int) string { return r.Text })
	embeddings, err := s.embedder.Embed(ctx, texts...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to embed %d memories", len(pending))
	}
	if len(embeddings) != len(pending) {
		return 0, errors.Mark(errors.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(pending)), errors.ErrProvider)
	}

	for i, rec := range pending {
		if err := s.adapter.Write(ctx, rec, embeddings[i]); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Purge deletes the bootstrap records of one namespace for userID so a forced
// extraction can replace them.
func (s *Service) Purge(ctx context.Context, userID string, ns record.Namespace) (int, error) {
	records, err := s.adapter.List(ctx, store.Filter{
		UserID:    userID,
		Namespace: ns,
		Bootstrap: lo.ToPtr(true),
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	ids := lo.Map(records, func(r *record.Record, _ int) string { return r.ID })
	if err := s.adapter.Delete(ctx, ids...); err != nil {
		return 0, err
	}
	s.logger.Info("bootstrap memories purged", "namespace", ns, "count", len(ids))
	return len(ids), nil
}

func (s *Service) write(ctx context.Context, rec *record.Record) error {
	vector, err := embedding.EmbedOne(ctx, s.embedder, rec.Text)
	if err != nil {
		return errors.Wrapf(err, "failed to embed memory %s", rec.ID)
	}
	return s.adapter.Write(ctx, rec, vector)
}

// findByHash returns the record of userID with the given content hash, or nil.
func (s *Service) findByHash(ctx context.Context, userID, hash string) (*record.Record, error) {
	records, err := s.adapter.List(ctx, store.Filter{UserID: userID, Hash: hash})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *Service) idTaken(ctx context.Context, id string) (bool, error) {
	_, err := s.adapter.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func namespaceFilter(namespace string) (store.Filter, error) {
	if namespace == "" {
		return store.Filter{}, nil
	}
	if base, ok := record.LookupBase(namespace); ok && base.Scoped {
		return store.Filter{Base: base.Name}, nil
	}
	ns, err := record.ParseNamespace(namespace)
	if err != nil {
		return store.Filter{}, err
	}
	return store.Filter{Namespace: ns}, nil
}
