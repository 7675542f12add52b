package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	requestStartKey = "request_start"
)

// MiddlewareManager collects beego filters and installs them on a handler
// tree.
type MiddlewareManager struct {
	logger         *zap.Logger
	allowedOrigins map[string]bool
}

// NewMiddlewareManager creates a manager. An empty allowedOrigins list lets
// every origin through.
func NewMiddlewareManager(logger *zap.Logger, allowedOrigins []string) *MiddlewareManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return &MiddlewareManager{
		logger:         logger.Named("http"),
		allowedOrigins: origins,
	}
}

// Apply installs the default filters on handlers.
func (mm *MiddlewareManager) Apply(handlers *web.ControllerRegister) error {
	if err := handlers.InsertFilter("/*", web.BeforeRouter, mm.RequestIDFilter()); err != nil {
		return err
	}
	if err := handlers.InsertFilter("/*", web.BeforeRouter, mm.CORSFilter()); err != nil {
		return err
	}
	if err := handlers.InsertFilter("/*", web.BeforeRouter, SecurityHeadersFilter()); err != nil {
		return err
	}
	return handlers.InsertFilter("/*", web.FinishRouter, mm.AccessLogFilter(), web.WithReturnOnOutput(false))
}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx *beecontext.Context) string {
	id, _ := ctx.Input.GetData(requestIDKey).(string)
	return id
}

// RequestIDFilter keeps an incoming X-Request-ID or assigns a new one.
func (mm *MiddlewareManager) RequestIDFilter() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		id := strings.TrimSpace(ctx.Input.Header(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Input.SetData(requestIDKey, id)
		ctx.Input.SetData(requestStartKey, time.Now())
		ctx.Output.Header(RequestIDHeader, id)
	}
}

func (mm *MiddlewareManager) CORSFilter() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		origin := ctx.Input.Header("Origin")
		if origin != "" && (len(mm.allowedOrigins) == 0 || mm.allowedOrigins[origin]) {
			ctx.Output.Header("Access-Control-Allow-Origin", origin)
			ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, "+RequestIDHeader)
			ctx.Output.Header("Access-Control-Max-Age", "3600")
		}

		if ctx.Input.Method() == http.MethodOptions {
			ctx.Output.SetStatus(http.StatusNoContent)
			ctx.Output.Body([]byte(""))
		}
	}
}

func SecurityHeadersFilter() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Output.Header("X-Content-Type-Options", "nosniff")
		ctx.Output.Header("X-Frame-Options", "DENY")
		ctx.Output.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	}
}

// AccessLogFilter logs one line per finished request.
func (mm *MiddlewareManager) AccessLogFilter() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("request_id", RequestID(ctx)),
			zap.String("remote_addr", getClientIP(ctx)),
		}
		if started, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(started)))
		}

		switch {
		case status >= 500:
			mm.logger.Error("Request completed", fields...)
		case status >= 400:
			mm.logger.Warn("Request completed", fields...)
		default:
			mm.logger.Info("Request completed", fields...)
		}
	}
}

func getClientIP(ctx *beecontext.Context) string {
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := ctx.Input.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return ctx.Input.IP()
}
