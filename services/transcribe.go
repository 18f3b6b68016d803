package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/storage"
)

const (
	// Longest audio the synchronous Recognize call accepts.
	maxSyncAudio = 60 * time.Second
	// Slack added to the audio length when waiting for a long running job.
	longRunningSlack = 300 * time.Second
)

// SpeechTranscriber transcribes audio with Cloud Speech-to-Text. Audio longer
// than a minute is staged in GCS and recognized asynchronously.
type SpeechTranscriber struct {
	client   *speech.Client
	language string
	staging  *storage.GCSStore
	log      *logger.Logger
}

func NewSpeechTranscriber(ctx context.Context, credentialsFile, language string, staging *storage.GCSStore, log *logger.Logger) (*SpeechTranscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	return &SpeechTranscriber{client: client, language: language, staging: staging, log: logger.OrNop(log)}, nil
}

func (t *SpeechTranscriber) Close() error {
	return t.client.Close()
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, path, filename string) (string, error) {
	cfg := t.recognitionConfig(filename)

	// Non-MP3 inputs have unknown length and take the long running path.
	duration := time.Duration(-1)
	if cfg.Encoding == speechpb.RecognitionConfig_MP3 {
		if d, err := MP3DurationFromFile(path); err == nil {
			duration = d
		} else {
			t.log.Warn("could not read mp3 duration", "filename", filename, "error", err)
		}
	}

	if duration >= 0 && duration <= maxSyncAudio {
		return t.recognize(ctx, cfg, path)
	}
	return t.longRunning(ctx, cfg, path, filename, duration)
}

func (t *SpeechTranscriber) recognitionConfig(filename string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               t.language,
		EnableAutomaticPunctuation: true,
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		cfg.Encoding = speechpb.RecognitionConfig_MP3
		cfg.SampleRateHertz = 16000
	case ".wav":
		// LINEAR16 headers carry the sample rate.
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
	default:
		cfg.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
	return cfg
}

func (t *SpeechTranscriber) recognize(ctx context.Context, cfg *speechpb.RecognitionConfig, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return joinTranscripts(resp.GetResults()), nil
}

func (t *SpeechTranscriber) longRunning(ctx context.Context, cfg *speechpb.RecognitionConfig, path, filename string, duration time.Duration) (string, error) {
	if t.staging == nil {
		return "", errors.New("long audio needs a GCS bucket for staging")
	}

	key := "transcribe/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	err = t.staging.Put(ctx, key, f, 0, storage.ContentType(filename))
	f.Close()
	if err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := t.staging.Delete(cleanupCtx, key); err != nil {
			t.log.Warn("failed to delete staged audio", "key", key, "error", err)
		}
	}()

	wait := longRunningSlack
	if duration > 0 {
		wait += duration
	} else {
		wait += time.Hour
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	op, err := t.client.LongRunningRecognize(waitCtx, &speechpb.LongRunningRecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: t.staging.URI(key)}},
	})
	if err != nil {
		return "", fmt.Errorf("start long running recognize: %w", err)
	}
	resp, err := op.Wait(waitCtx)
	if err != nil {
		return "", fmt.Errorf("wait for recognize: %w", err)
	}
	return joinTranscripts(resp.GetResults()), nil
}

func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	var parts []string
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if s := strings.TrimSpace(alts[0].GetTranscript()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
