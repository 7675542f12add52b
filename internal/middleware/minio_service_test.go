package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/jobboard-ai/internal/config"
)

const resumeBody = "Jane Doe\nGo engineer, 6 years of distributed systems."

// fakeS3 serves a single object at /resumes/jane.txt.
func fakeS3(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resumes/jane.txt" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", strconv.Itoa(len(resumeBody)))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.WriteString(w, resumeBody)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestMinIO(t *testing.T, endpoint string) *MinIOService {
	svc, err := NewMinIOService(config.ObjectStorageConfig{
		Provider:  "minio",
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "resumes",
	}, nil)
	require.NoError(t, err)
	return svc
}

func TestNewMinIOService_Validation(t *testing.T) {
	_, err := NewMinIOService(config.ObjectStorageConfig{Provider: "local"}, nil)
	assert.Error(t, err)

	_, err = NewMinIOService(config.ObjectStorageConfig{Provider: "minio"}, nil)
	assert.Error(t, err)

	svc, err := NewMinIOService(config.ObjectStorageConfig{Provider: "s3", Endpoint: "http://localhost:9000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultResumeBucket, svc.Bucket())
}

func TestMinIOService_Open(t *testing.T) {
	srv := fakeS3(t)
	svc := newTestMinIO(t, srv.URL)

	rc, err := svc.Open(context.Background(), "resumes", "jane.txt")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, resumeBody, string(body))
}

func TestMinIOService_OpenMissingObject(t *testing.T) {
	srv := fakeS3(t)
	svc := newTestMinIO(t, srv.URL)

	_, err := svc.Open(context.Background(), "resumes", "missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.pdf")
}

func TestMinIOService_FileExists(t *testing.T) {
	srv := fakeS3(t)
	svc := newTestMinIO(t, srv.URL)

	ok, err := svc.FileExists(context.Background(), "jane.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.FileExists(context.Background(), "missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMinIOService_PresignedURL(t *testing.T) {
	svc := newTestMinIO(t, "localhost:9000")

	link, err := svc.PresignedURL(context.Background(), "jane.txt", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:9000/resumes/jane.txt?"))
	assert.Contains(t, link, "X-Amz-Signature=")
	assert.Contains(t, link, "X-Amz-Expires=3600")
}
