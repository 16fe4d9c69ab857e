package record

import (
	"encoding/json"
	"maps"
	"regexp"

	"github.com/habiliai/memoryd/errors"
)

const (
	SourceBootstrap = "bootstrap"
	SourceRuntime   = "runtime"
	SourceAPI       = "api"

	MaxExtraFields = 16
)

var (
	extraKeyRegexp = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	knownKeys      = map[string]struct{}{
		"category":   {},
		"sensitive":  {},
		"confidence": {},
		"source":     {},
		"bootstrap":  {},
	}
)

// Metadata holds the known fields plus a bounded extension map. On the wire
// the extension fields are flattened next to the known ones.
type Metadata struct {
	Category   string
	Sensitive  bool
	Confidence float64
	Source     string
	Bootstrap  bool
	Extra      map[string]any
}

func (m Metadata) Validate() error {
	if m.Confidence < 0 || m.Confidence > 1 {
		return errors.Validationf("confidence %v out of [0, 1]", m.Confidence)
	}
	if len(m.Extra) > MaxExtraFields {
		return errors.Validationf("metadata has %d extension fields, at most %d allowed", len(m.Extra), MaxExtraFields)
	}
	for k := range m.Extra {
		if _, ok := knownKeys[k]; ok {
			return errors.Validationf("metadata extension %q shadows a known field", k)
		}
		if !extraKeyRegexp.MatchString(k) {
			return errors.Validationf("invalid metadata key %q", k)
		}
	}
	return nil
}

func (m Metadata) Clone() Metadata {
	m.Extra = maps.Clone(m.Extra)
	return m
}

func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+len(knownKeys))
	maps.Copy(out, m.Extra)
	if m.Category != "" {
		out["category"] = m.Category
	}
	out["sensitive"] = m.Sensitive
	out["confidence"] = m.Confidence
	if m.Source != "" {
		out["source"] = m.Source
	}
	out["bootstrap"] = m.Bootstrap
	return out
}

// MetadataFromMap is lenient about value types so payloads written by other
// tools still load. Validation happens separately.
func MetadataFromMap(in map[string]any) Metadata {
	var m Metadata
	for k, v := range in {
		switch k {
		case "category":
			m.Category, _ = v.(string)
		case "sensitive":
			m.Sensitive = truthy(v)
		case "confidence":
			m.Confidence = toFloat(v)
		case "source":
			m.Source, _ = v.(string)
		case "bootstrap":
			m.Bootstrap = truthy(v)
		default:
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[k] = v
		}
	}
	return m
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetadataFromMap(raw)
	return nil
}

func (m Metadata) MarshalYAML() (any, error) {
	return m.ToMap(), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "yes"
	default:
		return toFloat(v) != 0
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}
