package assistant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/openai/openai-go"

	"samhq.app/sam/core/config"
)

var audioFormats = []string{"mp3", "mp4", "mpeg", "mpga", "m4a", "wav", "webm"}

// IsAudio reports whether a file name has an extension the transcription
// endpoint accepts.
func IsAudio(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(audioFormats, ext)
}

// Audio converts between speech and text.
type Audio interface {
	Speech(ctx context.Context, text string) ([]byte, error)
	Transcribe(ctx context.Context, name string, audio []byte) (string, error)
}

// OpenAIAudio implements Audio with the OpenAI speech and transcription APIs.
type OpenAIAudio struct {
	client openai.Client
	cfg    config.AudioConfig
}

func NewOpenAIAudio(client openai.Client, cfg config.AudioConfig) *OpenAIAudio {
	return &OpenAIAudio{client: client, cfg: cfg}
}

func (a *OpenAIAudio) Speech(ctx context.Context, text string) ([]byte, error) {
	resp, err := a.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: a.cfg.TTSModel,
		Voice: openai.AudioSpeechNewParamsVoice(a.cfg.TTSVoice),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}
	return data, nil
}

func (a *OpenAIAudio) Transcribe(ctx context.Context, name string, audio []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), name, ""),
		Model: openai.AudioModelWhisper1,
	}
	if a.cfg.STTPrompt != "" {
		params.Prompt = openai.String(a.cfg.STTPrompt)
	}

	tr, err := a.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", name, err)
	}
	return tr.Text, nil
}
