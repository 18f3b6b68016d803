package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/vnkhanh/scholar-ai-backend/logger"
)

// TTS requests are limited to 5000 bytes of input.
const ttsChunkBytes = 4500

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type SpeechSynthesizer struct {
	client   *texttospeech.Client
	voice    string
	language string
	log      *logger.Logger
}

func NewSpeechSynthesizer(ctx context.Context, credentialsFile, voice, language string, log *logger.Logger) (*SpeechSynthesizer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tts client: %w", err)
	}
	return &SpeechSynthesizer{client: client, voice: voice, language: language, log: logger.OrNop(log)}, nil
}

func (s *SpeechSynthesizer) Close() error {
	return s.client.Close()
}

// Synthesize concatenates the MP3 output of every chunk of text.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text is empty")
	}

	chunks := splitTextToChunksByByte(text, ttsChunkBytes)
	var audio []byte
	for i, chunk := range chunks {
		s.log.Debug("synthesizing chunk", "chunk", i+1, "of", len(chunks), "bytes", len(chunk))
		resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: s.language,
				Name:         s.voice,
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio = append(audio, resp.AudioContent...)
	}
	return audio, nil
}

// splitTextToChunksByByte cuts text into pieces of at most maxBytes, preferring
// sentence ends and never splitting a UTF-8 sequence.
func splitTextToChunksByByte(text string, maxBytes int) []string {
	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxBytes {
			chunks = append(chunks, remaining)
			break
		}

		cutPos := 0
		for i := maxBytes; i > 0; i-- {
			switch remaining[i-1] {
			case '.', '!', '?', '\n':
				cutPos = i
			}
			if cutPos > 0 {
				break
			}
		}
		if cutPos == 0 {
			cutPos = maxBytes
			for cutPos > 0 && (remaining[cutPos]&0xC0) == 0x80 {
				cutPos--
			}
			if cutPos == 0 {
				cutPos = maxBytes
			}
		}

		chunks = append(chunks, remaining[:cutPos])
		remaining = remaining[cutPos:]
	}
	return chunks
}
