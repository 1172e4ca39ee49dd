package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const DefaultMaxUploadSize = 10 << 20

type Options struct {
	MaxUploadSize int64
	AllowOrigins  []string
	// Metrics enables the /metrics endpoint and request instrumentation when set.
	Metrics *Metrics
}

func NewRouter(h *Handler, opts Options) *gin.Engine {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	// log and metrics wrap recovery so panicking requests are still recorded
	r.Use(accessLog())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(gin.CustomRecoveryWithWriter(nil, recoverPanic))
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig(opts.AllowOrigins)))
	}

	r.POST("/recognize/", limitBody(opts.MaxUploadSize), h.Recognize)
	r.GET("/health", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	return r
}
