package knowledge

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

const (
	MIMEPlainText = "text/plain"
	MIMEMarkdown  = "text/markdown"
	MIMEPDF       = "application/pdf"
	MIMEDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXlsx      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var extensionTypes = map[string]string{
	".txt":      MIMEPlainText,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".pdf":      MIMEPDF,
	".docx":     MIMEDocx,
	".xlsx":     MIMEXlsx,
}

// MIMEFromExtension maps a file name to a MIME type, or "" when unknown.
func MIMEFromExtension(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// FileParser turns one document format into plain text.
type FileParser interface {
	Supports(mime string) bool
	Parse(r io.ReaderAt, size int64) (string, error)
}

func baseMIME(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

type TextParser struct{}

func (p *TextParser) Supports(mime string) bool {
	m := baseMIME(mime)
	return m == MIMEPlainText || m == MIMEMarkdown
}

func (p *TextParser) Parse(r io.ReaderAt, size int64) (string, error) {
	content, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(content), nil
}

type PDFParser struct{}

func (p *PDFParser) Supports(mime string) bool {
	return baseMIME(mime) == MIMEPDF
}

func (p *PDFParser) Parse(r io.ReaderAt, size int64) (string, error) {
	pdfReader, err := model.NewPdfReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("inspect pdf: %w", err)
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil || !ok {
			return "", fmt.Errorf("pdf is password protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pdf pages: %w", err)
	}

	return joinPages(numPages, func(i int) (string, error) {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}
		return ex.ExtractText()
	})
}

// joinPages concatenates the text of every readable page. Unreadable pages
// are skipped, but when no page yields text the first page error is returned.
func joinPages(numPages int, pageText func(i int) (string, error)) (string, error) {
	var (
		textBuilder strings.Builder
		firstErr    error
	)
	for i := 1; i <= numPages; i++ {
		text, err := pageText(i)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("extract pdf page %d: %w", i, err)
			}
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	if strings.TrimSpace(textBuilder.String()) == "" && firstErr != nil {
		return "", firstErr
	}
	return textBuilder.String(), nil
}

type WordParser struct{}

func (p *WordParser) Supports(mime string) bool {
	return baseMIME(mime) == MIMEDocx
}

func (p *WordParser) Parse(r io.ReaderAt, size int64) (string, error) {
	doc, err := document.Read(r, size)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}

type ExcelParser struct{}

func (p *ExcelParser) Supports(mime string) bool {
	return baseMIME(mime) == MIMEXlsx
}

func (p *ExcelParser) Parse(r io.ReaderAt, size int64) (string, error) {
	ss, err := spreadsheet.Read(r, size)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer ss.Close()

	var textBuilder strings.Builder
	for _, sheet := range ss.Sheets() {
		textBuilder.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name()))
		for _, row := range sheet.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				cells = append(cells, cell.GetString())
			}
			if len(cells) > 0 {
				textBuilder.WriteString(strings.Join(cells, "\t"))
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}

// FileParserManager picks the parser for a MIME type.
type FileParserManager struct {
	parsers []FileParser
}

func NewFileParserManager() *FileParserManager {
	return &FileParserManager{
		parsers: []FileParser{
			&PDFParser{},
			&WordParser{},
			&ExcelParser{},
			&TextParser{},
		},
	}
}

// ParserFor returns nil when no parser accepts mime.
func (m *FileParserManager) ParserFor(mime string) FileParser {
	for _, parser := range m.parsers {
		if parser.Supports(mime) {
			return parser
		}
	}
	return nil
}

// SupportedFormats lists the accepted MIME types.
func (m *FileParserManager) SupportedFormats() []string {
	return []string{MIMEPDF, MIMEDocx, MIMEXlsx, MIMEPlainText, MIMEMarkdown}
}
