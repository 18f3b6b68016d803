package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/scholar-ai-backend/models"
	"github.com/vnkhanh/scholar-ai-backend/store"
)

type fakeGenerator struct {
	guide       models.StudyGuide
	err         error
	transcripts []string
}

func (f *fakeGenerator) Generate(_ context.Context, req GuideRequest) (models.StudyGuide, error) {
	f.transcripts = append(f.transcripts, req.Transcript)
	return f.guide, f.err
}

func (f *fakeGenerator) Replan(context.Context, models.StudyGuide, string, GenerateOptions) ([]models.ScheduleEntry, error) {
	return nil, errors.New("not used")
}

func (f *fakeGenerator) Motivate(context.Context, int, int, GenerateOptions) (string, error) {
	return "", errors.New("not used")
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *fakeArchive) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if a.err != nil {
		return a.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = data
	return nil
}

func (a *fakeArchive) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

func (a *fakeArchive) URI(key string) string { return "mem://" + key }

type recordingNotifier struct {
	statuses []string
	changed  int
}

func (n *recordingNotifier) UploadStatus(_ string, status string, _ int, _ string) {
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) GuidesChanged() { n.changed++ }

func generatedGuide() models.StudyGuide {
	return models.StudyGuide{
		Title:      "Generated",
		Summary:    "About things",
		FlashCards: []models.FlashCard{models.NewFlashCard("f", "b")},
		Quiz:       []models.QuizQuestion{{Question: "q", PossibleAnswers: []string{"a", "b"}, Index: 1}},
	}
}

func newTestPipeline(t *testing.T, gen Generator, archive *fakeArchive, n *recordingNotifier) (*Pipeline, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	var p *Pipeline
	if archive != nil {
		p = NewPipeline(NewExtractor(nil, nil), gen, st, archive, n, nil)
	} else {
		p = NewPipeline(NewExtractor(nil, nil), gen, st, nil, n, nil)
	}
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	p.newID = func() string { return "fixed-id" }
	return p, st
}

func TestPipelineStoresGeneratedGuide(t *testing.T) {
	gen := &fakeGenerator{guide: generatedGuide()}
	n := &recordingNotifier{}
	p, st := newTestPipeline(t, gen, nil, n)

	path := writeFile(t, "upload", []byte("lecture text"))
	g, err := p.Run(context.Background(), UploadInput{Path: path, Filename: "notes.txt", UploadID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", g.ID)
	assert.Equal(t, "notes.txt", g.Filename)
	assert.Equal(t, int64(1700000000123), g.CreatedAt)
	assert.Equal(t, []string{"lecture text"}, gen.transcripts)

	stored, err := st.Get(context.Background(), "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, g, stored)

	assert.Equal(t, []string{StatusReceived, StatusExtracting, StatusGenerating, StatusSaving, StatusDone}, n.statuses)
	assert.Equal(t, 1, n.changed)
}

func TestPipelineExtractionFailureStillGenerates(t *testing.T) {
	gen := &fakeGenerator{guide: generatedGuide()}
	p, st := newTestPipeline(t, gen, nil, &recordingNotifier{})

	path := writeFile(t, "upload", []byte("not really a pdf"))
	g, err := p.Run(context.Background(), UploadInput{Path: path, Filename: "broken.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, gen.transcripts)

	_, err = st.Get(context.Background(), g.ID)
	assert.NoError(t, err)
}

func TestPipelineGenerationFailureStoresNothing(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	n := &recordingNotifier{}
	p, st := newTestPipeline(t, gen, nil, n)

	path := writeFile(t, "upload", []byte("text"))
	_, err := p.Run(context.Background(), UploadInput{Path: path, Filename: "a.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	list, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, StatusFailed, n.statuses[len(n.statuses)-1])
	assert.Equal(t, 0, n.changed)
}

func TestPipelineArchivesSource(t *testing.T) {
	archive := &fakeArchive{}
	p, st := newTestPipeline(t, &fakeGenerator{guide: generatedGuide()}, archive, &recordingNotifier{})

	path := writeFile(t, "upload", []byte("source bytes"))
	g, err := p.Run(context.Background(), UploadInput{Path: path, Filename: "Notes.TXT"})
	require.NoError(t, err)
	assert.Equal(t, "sources/fixed-id.txt", g.SourceKey)
	assert.Equal(t, []byte("source bytes"), archive.objects["sources/fixed-id.txt"])

	stored, err := st.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "sources/fixed-id.txt", stored.SourceKey)

	p.DeleteSource(context.Background(), stored.SourceKey)
	assert.Empty(t, archive.objects)
}

func TestPipelineArchiveFailureDoesNotFailUpload(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket gone")}
	p, st := newTestPipeline(t, &fakeGenerator{guide: generatedGuide()}, archive, &recordingNotifier{})

	path := writeFile(t, "upload", []byte("source bytes"))
	g, err := p.Run(context.Background(), UploadInput{Path: path, Filename: "a.txt"})
	require.NoError(t, err)
	assert.Empty(t, g.SourceKey)

	stored, err := st.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SourceKey)
}
