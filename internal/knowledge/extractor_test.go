package knowledge

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func resumeHost(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resume.txt":
			_, _ = w.Write([]byte("Jane Doe\nSenior backend engineer, 8 years of Go."))
		case "/notes.md":
			_, _ = w.Write([]byte("# Jane\n\n- Kafka\n- Postgres\n"))
		case "/blank.txt":
			_, _ = w.Write([]byte("   \n\t\n"))
		case "/photo.png":
			_, _ = w.Write(pngHeader)
		case "/broken.pdf":
			_, _ = w.Write([]byte("%PDF-1.4\nthis is not really a pdf"))
		case "/huge.txt":
			_, _ = w.Write(bytes.Repeat([]byte("a"), 4096))
		case "/slow.txt":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestExtractor(t *testing.T, objects ObjectFetcher) (*Extractor, string) {
	dir := t.TempDir()
	return NewExtractor(ExtractorOptions{Timeout: 2 * time.Second, MaxBytes: 1024, TempDir: dir}, objects, zap.NewNop()), dir
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files leaked")
}

func TestExtractor_PlainTextAndMarkdown(t *testing.T) {
	host := resumeHost(t)
	extractor, dir := newTestExtractor(t, nil)

	text, err := extractor.ExtractText(context.Background(), host.URL+"/resume.txt")
	require.NoError(t, err)
	assert.Contains(t, text, "Senior backend engineer")

	text, err = extractor.ExtractText(context.Background(), host.URL+"/notes.md")
	require.NoError(t, err)
	assert.Contains(t, text, "Kafka")

	assertNoTempFiles(t, dir)
}

func TestExtractor_Failures(t *testing.T) {
	host := resumeHost(t)

	tests := []struct {
		name    string
		locator string
		want    error
	}{
		{"blank locator", "  ", errors.ErrEmptyInput},
		{"missing document", host.URL + "/gone.pdf", errors.ErrUnreachableResource},
		{"unknown scheme", "ftp://example.com/resume.pdf", errors.ErrUnreachableResource},
		{"object store not configured", "minio://resumes/jane.pdf", errors.ErrUnreachableResource},
		{"too large", host.URL + "/huge.txt", errors.ErrUnreachableResource},
		{"unsupported format", host.URL + "/photo.png", errors.ErrUnsupportedFormat},
		{"corrupt pdf", host.URL + "/broken.pdf", errors.ErrCorruptDocument},
		{"no text", host.URL + "/blank.txt", errors.ErrCorruptDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, dir := newTestExtractor(t, nil)
			_, err := extractor.ExtractText(context.Background(), tt.locator)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)
			assertNoTempFiles(t, dir)
		})
	}
}

func TestExtractor_Timeout(t *testing.T) {
	host := resumeHost(t)
	dir := t.TempDir()
	extractor := NewExtractor(ExtractorOptions{Timeout: 50 * time.Millisecond, MaxBytes: 1024, TempDir: dir}, nil, nil)

	_, err := extractor.ExtractText(context.Background(), host.URL+"/slow.txt")
	assert.True(t, stderrors.Is(err, errors.ErrUnreachableResource))
	assertNoTempFiles(t, dir)
}

type fakeObjects struct {
	objects map[string]string
}

func (f *fakeObjects) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, stderrors.New("The specified key does not exist.")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestExtractor_ObjectStoreReferences(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{"resumes/users/u1/cv.txt": "Go developer"}}
	extractor, dir := newTestExtractor(t, objects)

	text, err := extractor.ExtractText(context.Background(), "minio://resumes/users/u1/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "Go developer", text)

	text, err = extractor.ExtractText(context.Background(), "s3://resumes/users/u1/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "Go developer", text)

	_, err = extractor.ExtractText(context.Background(), "minio://resumes/users/u2/cv.txt")
	assert.True(t, stderrors.Is(err, errors.ErrUnreachableResource))

	_, err = extractor.ExtractText(context.Background(), "minio://resumes")
	assert.True(t, stderrors.Is(err, errors.ErrUnreachableResource))

	assertNoTempFiles(t, dir)
}

func TestExtractor_ConcurrentCallsDoNotCollide(t *testing.T) {
	host := resumeHost(t)
	extractor, dir := newTestExtractor(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/resume.txt"
			if i%2 == 1 {
				path = "/notes.md"
			}
			_, err := extractor.ExtractText(context.Background(), host.URL+path)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assertNoTempFiles(t, dir)
}

func TestMIMEFromExtension(t *testing.T) {
	assert.Equal(t, MIMEPDF, MIMEFromExtension("CV.PDF"))
	assert.Equal(t, MIMEDocx, MIMEFromExtension("cv.docx"))
	assert.Equal(t, "", MIMEFromExtension("cv.doc"))
}

func TestFileParserManager_ParserFor(t *testing.T) {
	m := NewFileParserManager()
	assert.IsType(t, &TextParser{}, m.ParserFor("text/plain; charset=utf-8"))
	assert.IsType(t, &PDFParser{}, m.ParserFor(MIMEPDF))
	assert.IsType(t, &WordParser{}, m.ParserFor(MIMEDocx))
	assert.IsType(t, &ExcelParser{}, m.ParserFor(MIMEXlsx))
	assert.Nil(t, m.ParserFor("image/png"))
	assert.Len(t, m.SupportedFormats(), 5)
}

func TestJoinPages(t *testing.T) {
	licenseErr := stderrors.New("unidoc license required")

	t.Run("keeps readable pages", func(t *testing.T) {
		text, err := joinPages(3, func(i int) (string, error) {
			if i == 2 {
				return "", licenseErr
			}
			return "page text", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "page text\npage text\n", text)
	})

	t.Run("reports the first failure when nothing is readable", func(t *testing.T) {
		_, err := joinPages(2, func(i int) (string, error) {
			return "", licenseErr
		})
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, licenseErr))
		assert.Contains(t, err.Error(), "page 1")
	})

	t.Run("blank pages without failures", func(t *testing.T) {
		text, err := joinPages(1, func(i int) (string, error) { return " ", nil })
		require.NoError(t, err)
		assert.Equal(t, " \n", text)
	})
}

// minimalPDF builds a one-page PDF with a valid cross-reference table.
func minimalPDF(line string) []byte {
	content := "BT /F1 12 Tf 72 720 Td (" + line + ") Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractor_PDFResume(t *testing.T) {
	key := os.Getenv("UNIDOC_LICENSE_API_KEY")
	if key == "" {
		t.Skip("UNIDOC_LICENSE_API_KEY not set")
	}
	require.NoError(t, ApplyUnidocLicense(key))

	pdf := minimalPDF("Jane Doe Senior Go Engineer")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pdf)
	}))
	defer server.Close()

	dir := t.TempDir()
	extractor := NewExtractor(ExtractorOptions{Timeout: 5 * time.Second, MaxBytes: 1 << 20, TempDir: dir}, nil, zap.NewNop())
	text, err := extractor.ExtractText(context.Background(), server.URL+"/cv.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe")
	assertNoTempFiles(t, dir)
}
