package extraction

import (
	"log/slog"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/internal/llm"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/jcooky/go-din"
)

// NewClassifier picks the LLM classifier when a provider is configured and
// the keyword rules otherwise.
func NewClassifier(conf *config.LLMConfig) (Classifier, error) {
	completer, err := llm.New(conf)
	if err != nil {
		return nil, err
	}
	if completer == nil {
		return RuleClassifier{}, nil
	}
	return NewLLMClassifier(completer), nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*Pipeline, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		conf := din.MustGetT[*config.LLMConfig](c)

		classifier, err := NewClassifier(conf)
		if err != nil {
			return nil, err
		}
		logger.Debug("classifier ready", "provider", conf.Provider)

		return NewPipeline(classifier, WithLogger(logger)), nil
	})
}
