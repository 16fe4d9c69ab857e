package extraction

import (
	"context"
	_ "embed"
	"slices"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/llm"
	"github.com/habiliai/memoryd/record"
)

const classifierSystem = "You organize personal facts about a user into a memory taxonomy. Answer with JSON only."

var (
	//go:embed prompt/route.md
	routePromptRaw string
	//go:embed prompt/annotate.md
	annotatePromptRaw string

	routePrompt    = llm.MustTemplate("route", routePromptRaw)
	annotatePrompt = llm.MustTemplate("annotate", annotatePromptRaw)

	routeSchema    = llm.Schema(&routeResponse{})
	annotateSchema = llm.Schema(&annotateResponse{})
)

type (
	// LLMClassifier delegates routing and annotation to a chat model. The
	// sensitivity heuristics still apply on top of what the model says.
	LLMClassifier struct {
		completer llm.Completer
	}

	routeResponse struct {
		Routes []struct {
			Index     int    `json:"index"`
			Namespace string `json:"namespace" jsonschema:"enum=profile_bio,enum=interaction_style,enum=project_seed,enum=project_context,enum=restricted"`
			Topic     string `json:"topic,omitempty" jsonschema:"description=required for project_context and restricted"`
		} `json:"routes"`
	}

	annotateResponse struct {
		Annotations []struct {
			Index int `json:"index"`
			Annotation
		} `json:"annotations"`
	}
)

var _ Classifier = (*LLMClassifier)(nil)

func NewLLMClassifier(completer llm.Completer) *LLMClassifier {
	return &LLMClassifier{completer: completer}
}

func (c *LLMClassifier) Route(ctx context.Context, statements []string) ([]record.Namespace, error) {
	prompt, err := llm.Render(routePrompt, map[string]any{
		"Taxonomy":   record.Taxonomy,
		"Statements": statements,
		"Schema":     routeSchema,
	})
	if err != nil {
		return nil, err
	}

	var resp routeResponse
	if err := llm.CompleteJSON(ctx, c.completer, llm.Request{System: classifierSystem, Prompt: prompt}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to route %d statements", len(statements))
	}

	out := make([]record.Namespace, len(statements))
	for _, r := range resp.Routes {
		if r.Index < 0 || r.Index >= len(statements) || out[r.Index] != "" {
			continue
		}
		ns, err := record.Scoped(r.Namespace, r.Topic)
		if err != nil {
			return nil, errors.WrapKindf(err, errors.ErrProvider, "statement %d", r.Index)
		}
		out[r.Index] = ns
	}
	if i := slices.Index(out, ""); i >= 0 {
		return nil, errors.Mark(errors.Errorf("model did not route statement %d", i), errors.ErrProvider)
	}

	for i, s := range statements {
		// heuristics win over a model that files a diagnosis under profile_bio
		if topic, ok := SensitiveTopic(s); ok && !out[i].IsRestricted() {
			if out[i], err = record.Scoped(record.Restricted, topic); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (c *LLMClassifier) Annotate(ctx context.Context, ns record.Namespace, statements []string) ([]Annotation, error) {
	prompt, err := llm.Render(annotatePrompt, map[string]any{
		"Namespace":  ns,
		"Statements": statements,
		"Schema":     annotateSchema,
	})
	if err != nil {
		return nil, err
	}

	var resp annotateResponse
	if err := llm.CompleteJSON(ctx, c.completer, llm.Request{System: classifierSystem, Prompt: prompt}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to annotate %s", ns)
	}

	out := make([]Annotation, len(statements))
	seen := make([]bool, len(statements))
	for _, a := range resp.Annotations {
		if a.Index < 0 || a.Index >= len(statements) {
			continue
		}
		a.Confidence = min(max(a.Confidence, 0), 1)
		out[a.Index] = a.Annotation
		seen[a.Index] = true
	}
	if i := slices.Index(seen, false); i >= 0 {
		return nil, errors.Mark(errors.Errorf("model did not annotate statement %d of %s", i, ns), errors.ErrProvider)
	}

	for i, s := range statements {
		if _, ok := SensitiveTopic(s); ok {
			out[i].Sensitive = true
		}
		if out[i].Category == "" {
			out[i].Category = defaultCategory(ns)
		}
	}
	return out, nil
}
