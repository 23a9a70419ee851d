package httpapi

import (
	"net/http"

	"github.com/monitaro/pjmanager/internal/app/metrics"
	"github.com/monitaro/pjmanager/internal/app/session"
	"github.com/monitaro/pjmanager/internal/middleware"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// EdgeConfig configures the middleware in front of the router.
type EdgeConfig struct {
	Origins []string
	Limiter *middleware.RateLimiter
	Log     *logger.Logger
}

// Wrap puts the middleware chain in front of next. Outermost first:
// recovery, tracing, metrics, CORS, rate limit, session guard.
func Wrap(next http.Handler, sessions *session.Manager, cfg EdgeConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("http")
	}
	h := sessions.Guard(next)
	if cfg.Limiter != nil {
		h = cfg.Limiter.Handler(h)
	}
	h = middleware.NewCORSMiddleware(cfg.Origins).Handler(h)
	h = metrics.InstrumentHandler(h)
	h = middleware.NewTracingMiddleware(cfg.Log).Handler(h)
	return middleware.Recovery(cfg.Log)(h)
}
