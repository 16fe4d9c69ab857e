package extraction

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/record"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type (
	Pipeline struct {
		classifier  Classifier
		logger      *slog.Logger
		now         func() time.Time
		concurrency int
	}

	Option func(*Pipeline)

	// Result maps each namespace to the records produced for it. Namespaces
	// whose annotation failed are in Failed and absent from Records.
	Result struct {
		Records map[record.Namespace][]*record.Record
		Skipped int
		Failed  map[record.Namespace]error
	}
)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = max(n, 1) }
}

func NewPipeline(classifier Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier:  classifier,
		logger:      mylog.Discard(),
		now:         time.Now,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Namespaces returns the namespaces of r in a stable order.
func (r *Result) Namespaces() []record.Namespace {
	namespaces := lo.Keys(r.Records)
	slices.Sort(namespaces)
	return namespaces
}

func (r *Result) Count() int {
	return lo.SumBy(lo.Values(r.Records), func(records []*record.Record) int { return len(records) })
}

// Extract turns a profile document into namespaced records. Statements whose
// hash is in existing are skipped unless force is set. An empty or malformed
// document and a failed routing call are fatal; annotation failures only drop
// the affected namespace.
func (p *Pipeline) Extract(ctx context.Context, userID, profileText string, existing map[string]struct{}, force bool) (*Result, error) {
	if userID == "" {
		return nil, errors.Validationf("user id is empty")
	}
	statements, err := Segment(profileText)
	if err != nil {
		return nil, err
	}

	routes, err := p.classifier.Route(ctx, statements)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrProvider, "failed to classify profile")
	}
	if len(routes) != len(statements) {
		return nil, errors.Mark(errors.Errorf("classifier routed %d of %d statements", len(routes), len(statements)), errors.ErrProvider)
	}

	result := &Result{
		Records: map[record.Namespace][]*record.Record{},
		Failed:  map[record.Namespace]error{},
	}

	grouped := map[record.Namespace][]string{}
	seen := map[string]struct{}{}
	for i, s := range statements {
		hash := record.Hash(s)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		if _, ok := existing[hash]; ok && !force {
			result.Skipped++
			continue
		}
		grouped[routes[i]] = append(grouped[routes[i]], s)
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(p.concurrency)
	for ns, texts := range grouped {
		eg.Go(func() error {
			records, err := p.annotate(ctx, userID, ns, texts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("namespace skipped", "namespace", ns, "statements", len(texts), "err", err)
				result.Failed[ns] = err
				return nil
			}
			result.Records[ns] = records
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.Info("profile extracted",
		"statements", len(statements),
		"records", result.Count(),
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result, nil
}

func (p *Pipeline) annotate(ctx context.Context, userID string, ns record.Namespace, texts []string) ([]*record.Record, error) {
	annotations, err := p.classifier.Annotate(ctx, ns, texts)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrProvider)
	}
	if len(annotations) != len(texts) {
		return nil, errors.Mark(errors.Errorf("classifier annotated %d of %d statements", len(annotations), len(texts)), errors.ErrProvider)
	}

	now := p.now()
	records := make([]*record.Record, 0, len(texts))
	for i, text := range texts {
		a := annotations[i]
		rec, err := record.New(userID, ns, text, record.Metadata{
			Category:   a.Category,
			Sensitive:  a.Sensitive,
			Confidence: a.Confidence,
			Source:     record.SourceBootstrap,
			Bootstrap:  true,
		}, now)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
