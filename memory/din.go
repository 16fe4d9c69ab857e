package memory

import (
	"log/slog"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/embedding"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/store"
	"github.com/jcooky/go-din"
)

func init() {
	din.RegisterT(func(c *din.Container) (*Service, error) {
		conf := din.MustGetT[*config.MemoryConfig](c)

		return NewService(
			din.MustGetT[*store.Adapter](c),
			din.MustGetT[embedding.Embedder](c),
			WithLogger(din.MustGet[*slog.Logger](c, mylog.Key)),
			WithDefaultUserID(conf.UserID),
			WithSearchLimit(conf.SearchLimit),
			WithIncludeRestricted(conf.SearchIncludeRestricted),
		), nil
	})
}
