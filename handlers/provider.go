package handlers

import (
	"github.com/tech-arch1tect/bilim/apidoc"
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/middleware/ratelimit"
	"github.com/tech-arch1tect/bilim/server"
	"go.uber.org/fx"
)

const apiVersion = "1.0.0"

func ProvideDoc(cfg *config.Config) *apidoc.Doc {
	return NewDoc(cfg.App.Name, apiVersion, cfg.App.URL, cfg.Session.Name)
}

func registerRoutes(srv *server.Server, h *Handler, cfg *config.Config, store ratelimit.Store, doc *apidoc.Doc) {
	h.Mount(srv.Echo(), ratelimit.FromConfig(&cfg.RateLimit, store), doc)
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(ProvideDoc),
	fx.Invoke(registerRoutes),
)
