package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
)

// TextExtractor resolves a document locator to plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, locator string) (string, error)
}

// ObjectFetcher opens objects referenced as minio://bucket/key.
type ObjectFetcher interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type ExtractorOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	TempDir  string
}

// Extractor downloads a document into a private temp file and parses it.
type Extractor struct {
	httpClient *http.Client
	objects    ObjectFetcher
	parsers    *FileParserManager
	opts       ExtractorOptions
	logger     *zap.Logger
}

// NewExtractor builds an extractor. objects may be nil when no object store is configured.
func NewExtractor(opts ExtractorOptions, objects ObjectFetcher, logger *zap.Logger) *Extractor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		httpClient: &http.Client{},
		objects:    objects,
		parsers:    NewFileParserManager(),
		opts:       opts,
		logger:     logger.Named("extractor"),
	}
}

func (e *Extractor) ExtractText(ctx context.Context, locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", errors.NewEmptyInputError("resource locator")
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	body, name, err := e.open(ctx, locator)
	if err != nil {
		extractionsTotal.WithLabelValues("unknown", "unreachable").Inc()
		return "", errors.NewUnreachableResourceError(locator).WithCause(err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(e.opts.TempDir, "resume-*")
	if err != nil {
		return "", errors.NewSystemError(errors.ErrCodeInternalServer, "Failed to allocate temporary file").WithCause(err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove temporary file", zap.String("path", tmp.Name()), zap.Error(err))
		}
	}()

	size, err := io.Copy(tmp, io.LimitReader(body, e.opts.MaxBytes+1))
	if err != nil {
		extractionsTotal.WithLabelValues("unknown", "unreachable").Inc()
		return "", errors.NewUnreachableResourceError(locator).WithCause(err)
	}
	if size > e.opts.MaxBytes {
		extractionsTotal.WithLabelValues("unknown", "too_large").Inc()
		return "", errors.NewUnreachableResourceError(locator).
			WithCause(fmt.Errorf("document exceeds %d bytes", e.opts.MaxBytes))
	}

	format, parser := e.detect(tmp, name)
	if parser == nil {
		extractionsTotal.WithLabelValues(format, "unsupported").Inc()
		return "", errors.NewUnsupportedFormatError(format)
	}

	text, err := parser.Parse(tmp, size)
	if err != nil {
		extractionsTotal.WithLabelValues(format, "corrupt").Inc()
		return "", errors.NewCorruptDocumentError(format).WithCause(err)
	}
	if strings.TrimSpace(text) == "" {
		extractionsTotal.WithLabelValues(format, "corrupt").Inc()
		return "", errors.NewCorruptDocumentError(format).WithDetails("document contains no extractable text")
	}

	extractionsTotal.WithLabelValues(format, "success").Inc()
	e.logger.Debug("Extracted document text",
		zap.String("format", format),
		zap.Int64("bytes", size),
		zap.Int("chars", len(text)))
	return text, nil
}

// detect prefers the sniffed content type and falls back to the file extension.
func (e *Extractor) detect(f *os.File, name string) (string, FileParser) {
	format := "application/octet-stream"
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if mime, err := mimetype.DetectReader(f); err == nil {
			format = baseMIME(mime.String())
			if parser := e.parsers.ParserFor(format); parser != nil {
				return format, parser
			}
		}
	}

	if byExt := MIMEFromExtension(name); byExt != "" {
		if parser := e.parsers.ParserFor(byExt); parser != nil {
			return byExt, parser
		}
	}
	return format, nil
}

// open returns the document body and a name used for extension fallback.
func (e *Extractor) open(ctx context.Context, locator string) (io.ReadCloser, string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, "", fmt.Errorf("parse locator: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp.Body, path.Base(u.Path), nil
	case "minio", "s3":
		if e.objects == nil {
			return nil, "", fmt.Errorf("object storage is not configured")
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", fmt.Errorf("object reference needs a bucket and a key")
		}
		body, err := e.objects.Open(ctx, u.Host, key)
		if err != nil {
			return nil, "", err
		}
		return body, path.Base(key), nil
	default:
		return nil, "", fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}
