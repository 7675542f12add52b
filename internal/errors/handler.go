package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorHandler turns errors into JSON responses and log lines.
type ErrorHandler struct {
	logger  *zap.Logger
	monitor *ErrorMonitor
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *zap.Logger, monitor *ErrorMonitor) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if monitor == nil {
		monitor = NewErrorMonitor()
	}
	return &ErrorHandler{
		logger:  logger,
		monitor: monitor,
	}
}

// Monitor returns the error monitor backing this handler.
func (h *ErrorHandler) Monitor() *ErrorMonitor {
	return h.monitor
}

// Resolve logs err, records it and returns the AppError to render.
func (h *ErrorHandler) Resolve(r *http.Request, err error, started time.Time) *AppError {
	appErr := GetAppError(err)
	path := ""
	if r != nil && r.URL != nil {
		path = r.URL.Path
	}
	h.monitor.RecordError(appErr, path, time.Since(started))
	h.logError(appErr, r)
	return appErr
}

// Handle writes the error envelope for err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	appErr := h.Resolve(r, err, time.Now())

	body, jsonErr := json.Marshal(Envelope(appErr))
	w.Header().Set("Content-Type", "application/json")
	if jsonErr != nil {
		h.logger.Error("Failed to marshal error response", zap.Error(jsonErr))
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success": false, "error": {"code": "INTERNAL_SERVER_ERROR", "message": "Failed to process error response"}}`)
		return
	}
	w.WriteHeader(appErr.HTTPCode)
	w.Write(body)
}

// Middleware recovers panics into a 500 envelope.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic recovered: %v", rec)
				h.logger.Error("Panic recovered", zap.Error(err), zap.Stack("stack"))
				h.Handle(w, r, NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Envelope builds the response body for appErr.
func Envelope(appErr *AppError) map[string]interface{} {
	body := map[string]interface{}{
		"code":    string(appErr.Code),
		"message": appErr.Message,
		"type":    getErrorTypeString(appErr.Type),
	}
	if appErr.Details != nil && shouldIncludeDetails(appErr) {
		body["details"] = appErr.Details
	}

	response := map[string]interface{}{
		"success": false,
		"error":   body,
	}
	if appErr.RequestID != "" {
		response["request_id"] = appErr.RequestID
	}
	return response
}

func (h *ErrorHandler) logError(appErr *AppError, r *http.Request) {
	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_type", getErrorTypeString(appErr.Type)),
		zap.Int("http_code", appErr.HTTPCode),
	}
	if r != nil {
		fields = append(fields,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", getClientIP(r)),
		)
	}
	if appErr.RequestID != "" {
		fields = append(fields, zap.String("request_id", appErr.RequestID))
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Cause))
	}

	switch appErr.Type {
	case ErrorTypeSystem:
		h.logger.Error(appErr.Message, fields...)
	case ErrorTypeExternal:
		h.logger.Warn(appErr.Message, fields...)
	default:
		// absent records and bad input are expected outcomes
		h.logger.Info(appErr.Message, fields...)
	}
}

func getErrorTypeString(errorType ErrorType) string {
	switch errorType {
	case ErrorTypeSystem:
		return "system"
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	default:
		return "unknown"
	}
}

func shouldIncludeDetails(appErr *AppError) bool {
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeBusiness:
		return true
	default:
		return false
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}
