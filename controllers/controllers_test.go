package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/vnkhanh/scholar-ai-backend/controllers"
	"github.com/vnkhanh/scholar-ai-backend/middleware"
	"github.com/vnkhanh/scholar-ai-backend/models"
	"github.com/vnkhanh/scholar-ai-backend/routes"
	"github.com/vnkhanh/scholar-ai-backend/services"
	"github.com/vnkhanh/scholar-ai-backend/store"
	"github.com/vnkhanh/scholar-ai-backend/ws"
)

type fakeGenerator struct {
	configuredKey string
	guide         models.StudyGuide
	err           error
	schedule      []models.ScheduleEntry
	motivation    string
	motivateErr   error
	requests      []services.GuideRequest
	reasons       []string
}

func (f *fakeGenerator) Generate(_ context.Context, req services.GuideRequest) (models.StudyGuide, error) {
	f.requests = append(f.requests, req)
	return f.guide, f.err
}

func (f *fakeGenerator) Replan(_ context.Context, _ models.StudyGuide, reason string, _ services.GenerateOptions) ([]models.ScheduleEntry, error) {
	f.reasons = append(f.reasons, reason)
	return f.schedule, f.err
}

func (f *fakeGenerator) Motivate(context.Context, int, int, services.GenerateOptions) (string, error) {
	return f.motivation, f.motivateErr
}

func (f *fakeGenerator) HasKey(opts services.GenerateOptions) bool {
	return opts.APIKey != "" || f.configuredKey != ""
}

func (f *fakeGenerator) ListModels(_ context.Context, _ string) ([]services.ModelInfo, error) {
	return []services.ModelInfo{{Name: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash"}}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyLimiter) Limit() int                                  { return 1 }

type HandlerSuite struct {
	suite.Suite
	ctx       context.Context
	store     *store.FileStore
	gen       *fakeGenerator
	uploadDir string
	limiter   middleware.Limiter
	router    *gin.Engine
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctx = context.Background()

	fs, err := store.NewFileStore(s.T().TempDir(), nil)
	s.Require().NoError(err)
	s.store = fs
	s.uploadDir = s.T().TempDir()
	s.gen = &fakeGenerator{guide: models.StudyGuide{
		Title:      "Photosynthesis",
		Summary:    "Plants turn light into sugar.",
		FlashCards: []models.FlashCard{models.NewFlashCard("Chlorophyll", "Green pigment")},
		Quiz: []models.QuizQuestion{
			{Question: "Where does it happen?", PossibleAnswers: []string{"Roots", "Leaves"}, Index: 1},
		},
	}}
	s.limiter = nil
	s.buildRouter()
}

func (s *HandlerSuite) buildRouter() {
	hub := ws.NewHub(nil)
	pipeline := services.NewPipeline(services.NewExtractor(nil, nil), s.gen, s.store, nil, hub, nil)
	h := controllers.NewHandler(controllers.Deps{
		Store:          s.store,
		Uploader:       pipeline,
		Generator:      s.gen,
		Hub:            hub,
		UploadDir:      s.uploadDir,
		MaxUploadBytes: 1 << 20,
	})
	s.router = routes.SetupRouter(h, hub, routes.Options{UploadLimiter: s.limiter})
}

func (s *HandlerSuite) seed(id string) models.StudyGuide {
	g := models.StudyGuide{
		ID:         id,
		Title:      "Biology",
		Summary:    "Cells and more.",
		FlashCards: []models.FlashCard{models.NewFlashCard("Cell", "Unit of life")},
		Quiz: []models.QuizQuestion{
			{Question: "q1", PossibleAnswers: []string{"a", "b"}, Index: 1},
			{Question: "q2", PossibleAnswers: []string{"a", "b"}, Index: 0},
		},
		StudySchedule: []models.ScheduleEntry{
			{DayOffset: 0, Title: "Read", Details: "Chapter 1", DurationMinutes: 30},
			{DayOffset: 1, Title: "Review", Details: "Cards", DurationMinutes: 20},
		},
		Filename:  "bio.pdf",
		CreatedAt: 1700000000000,
	}
	_, err := s.store.Create(s.ctx, g)
	s.Require().NoError(err)
	return g
}

func (s *HandlerSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) upload(filename, content string, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		s.Require().NoError(err)
		_, err = part.Write([]byte(content))
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.WriteField("goals", "pass the exam"))
	s.Require().NoError(mw.WriteField("difficulty", "hard"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](s *HandlerSuite, w *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *HandlerSuite) TestUploadCreatesGuide() {
	w := s.upload("notes.txt", "light reactions happen in the thylakoid", controllers.APIKeyHeader, "user-key")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	g := decode[models.StudyGuide](s, w)
	s.Equal("Photosynthesis", g.Title)
	s.Equal("notes.txt", g.Filename)
	s.NotEmpty(g.ID)
	s.NotZero(g.CreatedAt)

	s.Require().Len(s.gen.requests, 1)
	req := s.gen.requests[0]
	s.Contains(req.Transcript, "thylakoid")
	s.Equal("pass the exam", req.Goals)
	s.Equal("hard", req.Difficulty)
	s.Equal("user-key", req.Options.APIKey)

	stored, err := s.store.Get(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g.Title, stored.Title)

	entries, err := os.ReadDir(s.uploadDir)
	s.Require().NoError(err)
	s.Empty(entries, "upload temp file is removed")
}

func (s *HandlerSuite) TestUploadUnreadableFileStillGenerates() {
	w := s.upload("slides.pptx", "binary", controllers.APIKeyHeader, "k")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Require().Len(s.gen.requests, 1)
	s.Empty(s.gen.requests[0].Transcript)
}

func (s *HandlerSuite) TestUploadWithoutKeyIsRejected() {
	w := s.upload("notes.txt", "text")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(decode[map[string]any](s, w)["error"], "API key")
	s.Empty(s.gen.requests)
}

func (s *HandlerSuite) TestUploadUsesConfiguredKey() {
	s.gen.configuredKey = "server-key"
	w := s.upload("notes.md", "# Title")
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *HandlerSuite) TestUploadWithoutFile() {
	w := s.upload("", "", controllers.APIKeyHeader, "k")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("file: is required", decode[map[string]any](s, w)["error"])
}

func (s *HandlerSuite) TestUploadGenerationFailureStoresNothing() {
	s.gen.err = errors.New("provider unavailable")
	w := s.upload("notes.txt", "text", controllers.APIKeyHeader, "k")
	s.Equal(http.StatusInternalServerError, w.Code)

	body := decode[map[string]any](s, w)
	s.Equal("upload failed", body["error"])
	s.Contains(body["details"], "provider unavailable")

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *HandlerSuite) TestUploadRateLimited() {
	s.limiter = denyLimiter{}
	s.buildRouter()
	w := s.upload("notes.txt", "text", controllers.APIKeyHeader, "k")
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Empty(s.gen.requests)
}

func (s *HandlerSuite) TestGetAndList() {
	s.seed("g1")

	w := s.do(http.MethodGet, "/api/guide/g1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Biology", decode[models.StudyGuide](s, w).Title)

	w = s.do(http.MethodGet, "/api/guide/missing", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/guides", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	list := decode[map[string][]map[string]any](s, w)["guides"]
	s.Require().Len(list, 1)
	s.Equal("g1", list[0]["id"])
	s.NotContains(list[0], "flash_cards")
}

func (s *HandlerSuite) TestListEmpty() {
	w := s.do(http.MethodGet, "/api/guides", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"guides":[]}`, w.Body.String())
}

func (s *HandlerSuite) TestUpdateGuide() {
	s.seed("g1")

	w := s.do(http.MethodPatch, "/api/guide", map[string]any{"id": "g1", "updates": map[string]any{"title": "Cells"}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.JSONEq(`{"success":true}`, w.Body.String())

	g, err := s.store.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("Cells", g.Title)
	s.Equal("Cells and more.", g.Summary)

	w = s.do(http.MethodPost, "/api/updateGuide", map[string]any{"id": "g1", "updates": map[string]any{"summary": "New"}})
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerSuite) TestUpdateGuideRejections() {
	s.seed("g1")

	w := s.do(http.MethodPost, "/api/guide", map[string]any{"updates": map[string]any{"title": "X"}})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("id: is required", decode[map[string]any](s, w)["error"])

	w = s.do(http.MethodPost, "/api/guide", map[string]any{"id": "g1"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("updates: is required", decode[map[string]any](s, w)["error"])

	w = s.do(http.MethodPost, "/api/guide", map[string]any{"id": "g1", "updates": map[string]any{"created_at": 1}})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/guide", map[string]any{"id": "nope", "updates": map[string]any{"title": "X"}})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestDeleteGuide() {
	s.seed("g1")
	s.seed("g2")

	w := s.do(http.MethodDelete, "/api/guide/delete", map[string]any{"id": "g1"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	_, err := s.store.Get(s.ctx, "g1")
	s.ErrorIs(err, store.ErrNotFound)

	w = s.do(http.MethodDelete, "/api/guide/g2", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/deleteGuide", map[string]any{"id": "g2"})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/guide/delete", map[string]any{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestProgress() {
	s.seed("g1")

	w := s.do(http.MethodPut, "/api/guide/g1/progress", map[string]any{"index": 1, "completed": true})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	g, err := s.store.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.False(g.StudySchedule[0].IsCompleted())
	s.True(g.StudySchedule[1].IsCompleted())

	w = s.do(http.MethodPut, "/api/guide/g1/progress", map[string]any{"index": 5, "completed": true})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/guide/g1/progress", map[string]any{"completed": true})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/guide/none/progress", map[string]any{"index": 0, "completed": true})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestQuizScore() {
	s.seed("g1")

	w := s.do(http.MethodPost, "/api/guide/g1/quiz/score", map[string]any{"answers": []any{1, 0}})
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"score":2,"total":2,"percentage":100,"correct":[true,true]}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/guide/g1/quiz/score", map[string]any{"answers": []any{nil, 0}})
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"score":1,"total":2,"percentage":50,"correct":[false,true]}`, w.Body.String())
}

func (s *HandlerSuite) TestReplan() {
	s.seed("g1")
	s.gen.schedule = []models.ScheduleEntry{{DayOffset: 0, Title: "Catch up", Details: "Both chapters", DurationMinutes: 60}}

	w := s.do(http.MethodPost, "/api/guide/g1/replan", map[string]any{"reason": "sick for two days"}, controllers.APIKeyHeader, "k")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal([]string{"sick for two days"}, s.gen.reasons)

	g, err := s.store.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(g.StudySchedule, 1)
	s.Equal("Catch up", g.StudySchedule[0].Title)

	w = s.do(http.MethodPost, "/api/guide/g1/replan", map[string]any{}, controllers.APIKeyHeader, "k")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestMotivation() {
	s.seed("g1")
	s.gen.motivation = "Halfway there!"

	w := s.do(http.MethodPost, "/api/guide/g1/motivation", nil, controllers.APIKeyHeader, "k")
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode[map[string]any](s, w)
	s.Equal("Halfway there!", body["message"])
	s.EqualValues(2, body["total"])

	s.gen.motivateErr = errors.New("quota")
	w = s.do(http.MethodPost, "/api/guide/g1/motivation", nil, controllers.APIKeyHeader, "k")
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotEmpty(decode[map[string]any](s, w)["message"])
}

func (s *HandlerSuite) TestExport() {
	s.seed("g1")

	w := s.do(http.MethodGet, "/api/export/quiz/g1?format=json", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(`attachment; filename="quiz_g1_biology.json"`, w.Header().Get("Content-Disposition"))
	s.Contains(w.Body.String(), `"possible_answers"`)

	w = s.do(http.MethodGet, "/api/export/flashcards/g1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), ".docx")

	w = s.do(http.MethodGet, "/api/export/summary/g1?format=md", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Cells and more.")

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/export/summary/g1?format=xlsx", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/export/poster/g1", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/export/quiz/missing", nil).Code)
	s.Equal(http.StatusNotImplemented, s.do(http.MethodGet, "/api/export/audio/g1", nil).Code)
}

func (s *HandlerSuite) TestModels() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/models", nil).Code)

	w := s.do(http.MethodGet, "/api/models", nil, controllers.APIKeyHeader, "k")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "gemini-2.0-flash")
}

func (s *HandlerSuite) TestHealth() {
	for _, path := range []string{"/health", "/api/health"} {
		w := s.do(http.MethodGet, path, nil)
		s.Require().Equal(http.StatusOK, w.Code)
		body := decode[map[string]any](s, w)
		s.Equal("ok", body["status"])
		s.Equal("ok", body["store"])
	}
}

func (s *HandlerSuite) TestPreflight() {
	for _, path := range []string{"/api/guide", "/api/upload", "/api/guide/delete", "/api/guide/g1/progress"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:4200")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		s.Equal(http.StatusOK, w.Code, path)
		s.NotEmpty(w.Header().Get("Access-Control-Allow-Origin"), path)
		s.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE", path)
	}
}
