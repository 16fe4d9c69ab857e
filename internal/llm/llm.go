package llm

import (
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/errors"
	"github.com/invopop/jsonschema"
)

type Request struct {
	System string
	Prompt string
}

// Completer returns the raw text of a single chat completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New returns nil for the rules provider; callers fall back to heuristics.
func New(conf *config.LLMConfig) (Completer, error) {
	switch conf.Provider {
	case config.LLMProviderRules:
		return nil, nil
	case config.LLMProviderOpenAI:
		return NewOpenAICompleter(conf.Key(), conf.BaseURL, conf.ModelName(), conf.Temperature, conf.MaxTokens), nil
	case config.LLMProviderAnthropic:
		return NewAnthropicCompleter(conf.Key(), conf.ModelName(), conf.Temperature, conf.MaxTokens), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown llm provider %q", conf.Provider)
	}
}

// CompleteJSON asks for a completion and decodes the first JSON object found
// in it into out. Transport failures and unparseable output are provider errors.
func CompleteJSON(ctx context.Context, c Completer, req Request, out any) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	body := ExtractJSON(text)
	if body == "" {
		return errors.Mark(errors.Errorf("completion contains no JSON object: %q", truncate(text, 200)), errors.ErrProvider)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return errors.WrapKindf(err, errors.ErrProvider, "failed to decode completion")
	}
	return nil
}

// ExtractJSON strips markdown fences and surrounding prose from a completion.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// Schema renders the JSON schema of v, inlined, for embedding in prompts.
func Schema(v any) string {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	data, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustTemplate parses a prompt template with the sprig function map.
func MustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text))
}

func Render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s prompt", tmpl.Name())
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
