package store

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/habiliai/memoryd/internal/llm"
)

const UserEntity = "user"

type (
	// RuleGraphExtractor recognizes first-person facts with a fixed set of
	// patterns. The subject of every relation is the user.
	RuleGraphExtractor struct{}

	// LLMGraphExtractor asks a completer for entities and relations.
	LLMGraphExtractor struct {
		completer llm.Completer
	}

	relationPattern struct {
		re         *regexp.Regexp
		relation   string
		targetType string
	}
)

var (
	_ GraphExtractor = RuleGraphExtractor{}
	_ GraphExtractor = (*LLMGraphExtractor)(nil)

	targetExpr = `([\p{L}\p{N}][\p{L}\p{N} .'&-]*)`

	relationPatterns = []relationPattern{
		{regexp.MustCompile(`(?i)\bname is ` + targetExpr), "named", "name"},
		{regexp.MustCompile(`(?i)\b(?:live|lives|living|reside|resides|based) in ` + targetExpr), "lives_in", "location"},
		{regexp.MustCompile(`(?i)\b(?:grew up|born) in ` + targetExpr), "from", "location"},
		{regexp.MustCompile(`(?i)\b(?:am|is|comes?) from ` + targetExpr), "from", "location"},
		{regexp.MustCompile(`(?i)\bwork(?:s|ing)? (?:at|for) ` + targetExpr), "works_at", "organization"},
		{regexp.MustCompile(`(?i)\bwork(?:s|ing)? (?:as|on) (?:an? |the )?` + targetExpr), "works_on", "project"},
		{regexp.MustCompile(`(?i)\bprefers? ` + targetExpr), "prefers", "preference"},
		{regexp.MustCompile(`(?i)\b(?:like|likes|love|loves|enjoy|enjoys) ` + targetExpr), "likes", "interest"},
		{regexp.MustCompile(`(?i)\b(?:dislike|dislikes|hate|hates) ` + targetExpr), "dislikes", "interest"},
		{regexp.MustCompile(`(?i)\b(?:am|is) an? ` + targetExpr), "is_a", "role"},
		{regexp.MustCompile(`(?i)\b(?:have|has) an? ` + targetExpr), "has", "thing"},
		{regexp.MustCompile(`(?i)\b(?:use|uses|using) ` + targetExpr), "uses", "tool"},
	}

	clauseBreak = regexp.MustCompile(`(?i)[,;:!?()]|\.\s|\.$| and | but | because | when | who | which | so `)
)

const maxTargetWords = 5

func (RuleGraphExtractor) Extract(_ context.Context, text string) (*Graph, error) {
	g := &Graph{}
	for _, p := range relationPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			target := trimTarget(m[1])
			if target == "" {
				continue
			}
			g.Entities = append(g.Entities, Entity{Name: target, Type: p.targetType})
			g.Relations = append(g.Relations, Relation{Source: UserEntity, Relation: p.relation, Target: target})
		}
	}

	if len(g.Relations) == 0 {
		for _, name := range properNouns(text) {
			g.Entities = append(g.Entities, Entity{Name: name, Type: "concept"})
			g.Relations = append(g.Relations, Relation{Source: UserEntity, Relation: "mentions", Target: name})
		}
	}
	if len(g.Relations) > 0 {
		g.Entities = append(g.Entities, Entity{Name: UserEntity, Type: "person"})
	}

	return g.Normalize(), nil
}

func trimTarget(s string) string {
	if loc := clauseBreak.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	words := strings.Fields(s)
	if len(words) > maxTargetWords {
		words = words[:maxTargetWords]
	}
	return strings.Trim(strings.Join(words, " "), " .'-&")
}

// properNouns returns capitalized words that do not start the sentence.
func properNouns(text string) []string {
	var out []string
	words := strings.Fields(text)
	for i, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if i == 0 || w == "" || w == "I" {
			continue
		}
		if r := []rune(w)[0]; unicode.IsUpper(r) {
			out = append(out, w)
		}
	}
	return out
}

func NewLLMGraphExtractor(completer llm.Completer) *LLMGraphExtractor {
	return &LLMGraphExtractor{completer: completer}
}

var graphPrompt = llm.MustTemplate("graph", `Extract a knowledge graph from this memory about the user.
Refer to the user as the entity "{{ .User }}". Use lower-case names and snake_case relations.
Return only JSON matching this schema:
{{ .Schema }}

Memory: {{ .Text | quote }}`)

var graphSchema = llm.Schema(&Graph{})

func (e *LLMGraphExtractor) Extract(ctx context.Context, text string) (*Graph, error) {
	prompt, err := llm.Render(graphPrompt, map[string]any{
		"User":   UserEntity,
		"Schema": graphSchema,
		"Text":   text,
	})
	if err != nil {
		return nil, err
	}

	var g Graph
	if err := llm.CompleteJSON(ctx, e.completer, llm.Request{
		System: "You build small knowledge graphs from personal facts.",
		Prompt: prompt,
	}, &g); err != nil {
		return nil, err
	}
	return g.Normalize(), nil
}
