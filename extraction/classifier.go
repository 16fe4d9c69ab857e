package extraction

import (
	"context"

	"github.com/habiliai/memoryd/record"
)

type (
	// Classifier is the text-understanding collaborator of the pipeline.
	Classifier interface {
		// Route assigns every statement exactly one namespace, in input order.
		Route(ctx context.Context, statements []string) ([]record.Namespace, error)
		// Annotate returns metadata for statements already routed to ns, in
		// input order.
		Annotate(ctx context.Context, ns record.Namespace, statements []string) ([]Annotation, error)
	}

	Annotation struct {
		Category   string  `json:"category" jsonschema:"description=short snake_case label such as location occupation preference tone"`
		Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
		Sensitive  bool    `json:"sensitive" jsonschema:"description=true for health finance legal identity-document or intimate details"`
	}
)
