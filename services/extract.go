package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/vnkhanh/scholar-ai-backend/logger"
)

type InputType string

const (
	InputPDF      InputType = "pdf"
	InputDOCX     InputType = "docx"
	InputTXT      InputType = "txt"
	InputMarkdown InputType = "md"
	InputHTML     InputType = "html"
	InputAudio    InputType = "audio"
)

// InputTypeFromFilename maps the lowercase extension of name to an input
// type. File contents are never inspected.
func InputTypeFromFilename(name string) (InputType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return InputPDF, true
	case ".docx":
		return InputDOCX, true
	case ".txt":
		return InputTXT, true
	case ".md":
		return InputMarkdown, true
	case ".html", ".htm":
		return InputHTML, true
	case ".mp3", ".mp4", ".wav", ".m4a":
		return InputAudio, true
	default:
		return "", false
	}
}

// Transcriber turns an audio or video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path, filename string) (string, error)
}

// Extractor produces best-effort plain text from an uploaded file.
type Extractor struct {
	transcriber Transcriber
	log         *logger.Logger
}

// NewExtractor builds an extractor. A nil transcriber makes audio inputs
// behave like unsupported files.
func NewExtractor(t Transcriber, log *logger.Logger) *Extractor {
	return &Extractor{transcriber: t, log: logger.OrNop(log)}
}

// Extract never fails: unsupported types and parser errors yield "" and the
// cause is logged.
func (e *Extractor) Extract(ctx context.Context, path, filename string) (text string) {
	defer func() {
		// ledongthuc/pdf panics on some malformed files.
		if r := recover(); r != nil {
			e.log.Warn("extraction panicked", "filename", filename, "panic", fmt.Sprint(r))
			text = ""
		}
	}()

	text, err := e.extract(ctx, path, filename)
	if err != nil {
		e.log.Warn("extraction failed, continuing with empty text", "filename", filename, "error", err)
		return ""
	}
	return text
}

func (e *Extractor) extract(ctx context.Context, path, filename string) (string, error) {
	kind, ok := InputTypeFromFilename(filename)
	if !ok {
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
	switch kind {
	case InputPDF:
		return ExtractTextFromPDF(path)
	case InputDOCX:
		return ExtractTextFromDOCX(path)
	case InputTXT, InputMarkdown:
		return ExtractTextFromTXT(path)
	case InputHTML:
		return ExtractTextFromHTML(path)
	case InputAudio:
		if e.transcriber == nil {
			return "", fmt.Errorf("transcription disabled for %q", filepath.Ext(filename))
		}
		return e.transcriber.Transcribe(ctx, path, filename)
	}
	return "", fmt.Errorf("unsupported file type %q", kind)
}

func ExtractTextFromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// ExtractTextFromDOCX reads the <w:t> runs of word/document.xml, one line
// per paragraph.
func ExtractTextFromDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var b strings.Builder
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &se); err == nil {
					b.WriteString(text)
				}
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			if se.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func ExtractTextFromTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return string(data), nil
}

// ExtractTextFromHTML returns the visible text nodes, skipping script,
// style and other non-rendered elements.
func ExtractTextFromHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, "\n"), nil
}
