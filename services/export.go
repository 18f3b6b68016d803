package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

const (
	ExportQuiz       = "quiz"
	ExportFlashcards = "flashcards"
	ExportSummary    = "summary"
	ExportAudio      = "audio"
)

var (
	ErrUnsupportedExport = errors.New("unsupported export")
	ErrAudioDisabled     = errors.New("audio export is not enabled")
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Formats lists the accepted formats per kind; the first is the default.
var Formats = map[string][]string{
	ExportQuiz:       {"docx", "xlsx", "json"},
	ExportFlashcards: {"docx", "xlsx", "json"},
	ExportSummary:    {"docx", "md", "html"},
	ExportAudio:      {"mp3"},
}

type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter renders one field of a guide as a downloadable file.
type Exporter struct {
	synth Synthesizer
}

// NewExporter builds an exporter. A nil synthesizer disables audio.
func NewExporter(synth Synthesizer) *Exporter {
	return &Exporter{synth: synth}
}

func (e *Exporter) AudioEnabled() bool {
	return e.synth != nil
}

func resolveFormat(kind, format string) (string, error) {
	formats, ok := Formats[kind]
	if !ok {
		return "", fmt.Errorf("%w: kind %q", ErrUnsupportedExport, kind)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return formats[0], nil
	}
	for _, f := range formats {
		if f == format {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s as %q", ErrUnsupportedExport, kind, format)
}

// ExportFilename is <kind>_<id>_<slug(title)>.<ext>.
func ExportFilename(kind string, g models.StudyGuide, ext string) string {
	name := kind + "_" + g.ID
	if s := slug.Make(g.Title); s != "" {
		name += "_" + s
	}
	return name + "." + ext
}

// Export renders quiz, flashcards or summary. Audio goes through ExportAudio.
func (e *Exporter) Export(kind, format string, g models.StudyGuide) (Export, error) {
	if kind == ExportAudio {
		return Export{}, fmt.Errorf("%w: audio needs ExportAudio", ErrUnsupportedExport)
	}
	format, err := resolveFormat(kind, format)
	if err != nil {
		return Export{}, err
	}

	var (
		data        []byte
		contentType string
	)
	switch kind + "/" + format {
	case "quiz/docx":
		data, err = quizDOCX(g)
		contentType = mimeDOCX
	case "quiz/xlsx":
		data, err = quizXLSX(g)
		contentType = mimeXLSX
	case "quiz/json":
		data, err = json.MarshalIndent(map[string]any{"title": g.Title, "quiz": nonNil(g.Quiz)}, "", "  ")
		contentType = "application/json"
	case "flashcards/docx":
		data, err = flashcardsDOCX(g)
		contentType = mimeDOCX
	case "flashcards/xlsx":
		data, err = flashcardsXLSX(g)
		contentType = mimeXLSX
	case "flashcards/json":
		data, err = json.MarshalIndent(map[string]any{"title": g.Title, "flash_cards": nonNil(g.FlashCards)}, "", "  ")
		contentType = "application/json"
	case "summary/docx":
		data, err = summaryDOCX(g)
		contentType = mimeDOCX
	case "summary/md":
		data = []byte(summaryMarkdown(g))
		contentType = "text/markdown; charset=utf-8"
	case "summary/html":
		data, err = summaryHTML(g)
		contentType = "text/html; charset=utf-8"
	}
	if err != nil {
		return Export{}, fmt.Errorf("render %s as %s: %w", kind, format, err)
	}
	return Export{
		Filename:    ExportFilename(kind, g, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// ExportAudio reads the summary aloud as MP3.
func (e *Exporter) ExportAudio(ctx context.Context, g models.StudyGuide) (Export, error) {
	if e.synth == nil {
		return Export{}, ErrAudioDisabled
	}
	text := g.Title + ".\n" + g.Summary
	audio, err := e.synth.Synthesize(ctx, text)
	if err != nil {
		return Export{}, fmt.Errorf("synthesize summary: %w", err)
	}
	return Export{
		Filename:    ExportFilename(ExportAudio, g, "mp3"),
		ContentType: "audio/mpeg",
		Data:        audio,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func answerLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprint(i + 1)
}

func quizDOCX(g models.StudyGuide) ([]byte, error) {
	var d docxDocument
	d.Heading(g.Title + " - Quiz")
	for i, q := range g.Quiz {
		d.Bold(fmt.Sprintf("%d. %s", i+1, q.Question))
		for j, a := range q.PossibleAnswers {
			d.Text(fmt.Sprintf("   %s) %s", answerLabel(j), a))
		}
	}
	if len(g.Quiz) > 0 {
		d.Heading2("Answer key")
		for i, q := range g.Quiz {
			d.Text(fmt.Sprintf("%d. %s) %s", i+1, answerLabel(q.Index), q.CorrectAnswer()))
		}
	}
	return d.Bytes()
}

func flashcardsDOCX(g models.StudyGuide) ([]byte, error) {
	var d docxDocument
	d.Heading(g.Title + " - Flashcards")
	for i, c := range g.FlashCards {
		d.Bold(fmt.Sprintf("%d. %s", i+1, c.Front()))
		d.Text(c.Back())
	}
	return d.Bytes()
}

func summaryDOCX(g models.StudyGuide) ([]byte, error) {
	var d docxDocument
	d.Heading(g.Title)
	for _, para := range strings.Split(g.Summary, "\n\n") {
		if p := strings.TrimSpace(para); p != "" {
			d.Text(p)
		}
	}
	if len(g.Topics) > 0 {
		d.Heading2("Topics")
		for _, t := range g.Topics {
			d.Text(topicLine(t))
		}
	}
	if len(g.StudyTips) > 0 {
		d.Heading2("Study tips")
		for _, tip := range g.StudyTips {
			d.Text("- " + tip)
		}
	}
	return d.Bytes()
}

func topicLine(t models.Topic) string {
	if t.Difficulty == "" {
		return "- " + t.Name
	}
	return fmt.Sprintf("- %s (%s)", t.Name, t.Difficulty)
}

func summaryMarkdown(g models.StudyGuide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", g.Title, strings.TrimSpace(g.Summary))
	if len(g.Topics) > 0 {
		b.WriteString("\n## Topics\n\n")
		for _, t := range g.Topics {
			b.WriteString(topicLine(t) + "\n")
		}
	}
	if len(g.StudyTips) > 0 {
		b.WriteString("\n## Study tips\n\n")
		for _, tip := range g.StudyTips {
			b.WriteString("- " + tip + "\n")
		}
	}
	return b.String()
}

func summaryHTML(g models.StudyGuide) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(summaryMarkdown(g)), &body); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(g.Title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func workbook(sheet string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func quizXLSX(g models.StudyGuide) ([]byte, error) {
	maxAnswers := 0
	for _, q := range g.Quiz {
		if len(q.PossibleAnswers) > maxAnswers {
			maxAnswers = len(q.PossibleAnswers)
		}
	}
	header := []any{"#", "Question"}
	for i := 0; i < maxAnswers; i++ {
		header = append(header, "Answer "+answerLabel(i))
	}
	header = append(header, "Correct")

	rows := [][]any{header}
	for i, q := range g.Quiz {
		row := []any{i + 1, q.Question}
		for j := 0; j < maxAnswers; j++ {
			if j < len(q.PossibleAnswers) {
				row = append(row, q.PossibleAnswers[j])
			} else {
				row = append(row, "")
			}
		}
		row = append(row, answerLabel(q.Index))
		rows = append(rows, row)
	}
	return workbook("Quiz", rows)
}

func flashcardsXLSX(g models.StudyGuide) ([]byte, error) {
	rows := [][]any{{"#", "Front", "Back"}}
	for i, c := range g.FlashCards {
		rows = append(rows, []any{i + 1, c.Front(), c.Back()})
	}
	return workbook("Flashcards", rows)
}
