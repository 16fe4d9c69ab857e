package record

import (
	"regexp"
	"strings"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/stringutils"
)

// Namespace is a taxonomy tag of the form base or base:topic.
type Namespace string

const (
	ProfileBio       = "profile_bio"
	InteractionStyle = "interaction_style"
	ProjectSeed      = "project_seed"
	ProjectContext   = "project_context"
	Restricted       = "restricted"

	DefaultTopic = "general"

	maxSegmentLen = 48
)

type Base struct {
	Name        string
	Description string
	Scoped      bool
	Sensitive   bool
}

// Taxonomy is the fixed table of namespace bases, in display order.
var Taxonomy = []Base{
	{Name: ProfileBio, Description: "Identity and biographical facts"},
	{Name: InteractionStyle, Description: "Tone, boundaries and formatting preferences"},
	{Name: ProjectSeed, Description: "Assistant operating principles"},
	{Name: ProjectContext, Description: "Topic-scoped working context", Scoped: true},
	{Name: Restricted, Description: "Sensitive context", Scoped: true, Sensitive: true},
}

var segmentRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func LookupBase(name string) (Base, bool) {
	for _, b := range Taxonomy {
		if b.Name == name {
			return b, true
		}
	}
	return Base{}, false
}

// ParseNamespace validates s against the grammar segment(":" segment)? and
// the taxonomy table.
func ParseNamespace(s string) (Namespace, error) {
	if s == "" {
		return "", errors.Validationf("namespace is empty")
	}
	base, topic, scoped := strings.Cut(s, ":")
	if !validSegment(base) {
		return "", errors.Validationf("invalid namespace %q", s)
	}
	b, ok := LookupBase(base)
	if !ok {
		return "", errors.Validationf("unknown namespace %q", s)
	}
	if scoped {
		if !b.Scoped {
			return "", errors.Validationf("namespace %q does not take a topic", base)
		}
		if !validSegment(topic) {
			return "", errors.Validationf("invalid topic in namespace %q", s)
		}
	} else if b.Scoped {
		return "", errors.Validationf("namespace %q requires a topic", base)
	}

	return Namespace(s), nil
}

// Scoped builds base:topic, slugifying the topic and defaulting it when empty.
// Unscoped bases ignore the topic.
func Scoped(base, topic string) (Namespace, error) {
	b, ok := LookupBase(base)
	if !ok {
		return "", errors.Validationf("unknown namespace %q", base)
	}
	if !b.Scoped {
		return Namespace(base), nil
	}
	topic = stringutils.Slug(topic)
	if len(topic) > maxSegmentLen {
		topic = strings.TrimRight(topic[:maxSegmentLen], "-")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return ParseNamespace(base + ":" + topic)
}

func MustParseNamespace(s string) Namespace {
	ns, err := ParseNamespace(s)
	if err != nil {
		panic(err)
	}
	return ns
}

func (n Namespace) String() string { return string(n) }

func (n Namespace) Base() string {
	base, _, _ := strings.Cut(string(n), ":")
	return base
}

func (n Namespace) Topic() string {
	_, topic, _ := strings.Cut(string(n), ":")
	return topic
}

func (n Namespace) IsRestricted() bool {
	return n.Base() == Restricted
}

// FileName is a filesystem-safe rendering used for artifacts.
func (n Namespace) FileName() string {
	return strings.ReplaceAll(string(n), ":", "__")
}

func NamespaceFromFileName(name string) (Namespace, error) {
	return ParseNamespace(strings.ReplaceAll(name, "__", ":"))
}

func validSegment(s string) bool {
	return len(s) <= maxSegmentLen && segmentRegexp.MatchString(s)
}
