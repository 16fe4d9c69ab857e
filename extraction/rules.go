package extraction

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/habiliai/memoryd/record"
)

// RuleClassifier routes with keyword heuristics. It never fails and is the
// fallback when no LLM provider is configured.
type RuleClassifier struct{}

var _ Classifier = RuleClassifier{}

type keywordRule struct {
	category string
	re       *regexp.Regexp
}

var (
	projectSeedRegexp = regexp.MustCompile(`(?i)\b(?:you should|you must|you are|your role|as (?:my|an?) assistant|the assistant)\b|^(?:always|never|don't|do not)\b`)
	styleRegexp       = regexp.MustCompile(`(?i)\b(?:prefers?|preferred|concise|verbose|brief|short|detailed|tone|format\w*|bullet\w*|emoji\w*|markdown|call me|address me|answers?|responses?|replies|explanations?|formal|casual|jargon)\b`)
	projectRegexp     = regexp.MustCompile(`(?i)\b(?:working on|work on|building|project|repo\w*|codebase|deadline|sprint|launch\w*|roadmap|side project)\b`)
	projectTopic      = regexp.MustCompile(`(?i)\b(?:on|building|project|called|named)\s+(?:an?\s+|the\s+|my\s+)?([\p{L}\p{N}][\p{L}\p{N}_-]*)`)

	categoryRules = []keywordRule{
		{"name", regexp.MustCompile(`(?i)\b(?:my name|named|call me)\b`)},
		{"location", regexp.MustCompile(`(?i)\b(?:live[sd]?|living|based|reside\w*|moved|from|grew up|born)\b`)},
		{"occupation", regexp.MustCompile(`(?i)\b(?:work(?:s|ed|ing)?|job|engineer|developer|designer|manager|career|employ\w*)\b`)},
		{"family", regexp.MustCompile(`(?i)\b(?:wife|husband|partner|kids?|children|son|daughter|mother|father|sister|brother|married|dog|cat)\b`)},
		{"tone", regexp.MustCompile(`(?i)\b(?:tone|formal|casual|jargon|humor|polite)\b`)},
		{"format", regexp.MustCompile(`(?i)\b(?:format\w*|bullet\w*|markdown|emoji\w*|concise|verbose|brief|detailed|short)\b`)},
		{"preference", regexp.MustCompile(`(?i)\b(?:prefers?|likes?|loves?|enjoys?|hates?|dislikes?|favou?rite)\b`)},
		{"principle", regexp.MustCompile(`(?i)\b(?:should|must|always|never)\b`)},
		{"project", regexp.MustCompile(`(?i)\b(?:project|building|repo\w*|codebase|deadline)\b`)},
		{"skill", regexp.MustCompile(`(?i)\b(?:know|knows|fluent|experienced|expert|learning|speak\w*)\b`)},
	}
)

func (RuleClassifier) Route(_ context.Context, statements []string) ([]record.Namespace, error) {
	out := make([]record.Namespace, len(statements))
	for i, s := range statements {
		ns, err := routeStatement(s)
		if err != nil {
			return nil, err
		}
		out[i] = ns
	}
	return out, nil
}

func routeStatement(s string) (record.Namespace, error) {
	if topic, ok := SensitiveTopic(s); ok {
		return record.Scoped(record.Restricted, topic)
	}
	switch {
	case projectSeedRegexp.MatchString(s):
		return record.Namespace(record.ProjectSeed), nil
	case styleRegexp.MatchString(s):
		return record.Namespace(record.InteractionStyle), nil
	case projectRegexp.MatchString(s):
		return record.Scoped(record.ProjectContext, guessProjectTopic(s))
	default:
		return record.Namespace(record.ProfileBio), nil
	}
}

// guessProjectTopic prefers a capitalized name after "on", "building" or
// "project"; lower-case words are too generic to scope by.
func guessProjectTopic(s string) string {
	for _, m := range projectTopic.FindAllStringSubmatch(s, -1) {
		if word := m[1]; unicode.IsUpper([]rune(word)[0]) {
			return word
		}
	}
	return record.DefaultTopic
}

func (RuleClassifier) Annotate(_ context.Context, ns record.Namespace, statements []string) ([]Annotation, error) {
	out := make([]Annotation, len(statements))
	for i, s := range statements {
		a := Annotation{Category: defaultCategory(ns), Confidence: 0.5}
		for _, rule := range categoryRules {
			if rule.re.MatchString(s) {
				a.Category = rule.category
				a.Confidence = 0.7
				break
			}
		}
		if topic, ok := SensitiveTopic(s); ok {
			a.Sensitive = true
			if ns.IsRestricted() {
				a.Category = topic
			}
		}
		out[i] = a
	}
	return out, nil
}

func defaultCategory(ns record.Namespace) string {
	switch ns.Base() {
	case record.ProfileBio:
		return "fact"
	case record.InteractionStyle:
		return "preference"
	case record.ProjectSeed:
		return "principle"
	case record.ProjectContext:
		return "project"
	default:
		return strings.ReplaceAll(ns.Topic(), "-", "_")
	}
}
