package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

var openAIVoices = []openai.AudioSpeechNewParamsVoice{
	openai.AudioSpeechNewParamsVoiceAlloy,
	openai.AudioSpeechNewParamsVoiceAsh,
	openai.AudioSpeechNewParamsVoiceBallad,
	openai.AudioSpeechNewParamsVoiceCoral,
	openai.AudioSpeechNewParamsVoiceEcho,
	openai.AudioSpeechNewParamsVoiceSage,
	openai.AudioSpeechNewParamsVoiceShimmer,
	openai.AudioSpeechNewParamsVoiceVerse,
	openai.AudioSpeechNewParamsVoiceMarin,
	openai.AudioSpeechNewParamsVoiceCedar,
}

// OpenAI speaks through the OpenAI text-to-speech endpoint.
type OpenAI struct {
	logger zerolog.Logger
	client openai.Client
	model  openai.SpeechModel
}

// NewOpenAI creates a backend for apiKey. Retries are left to the
// Synthesizer, so the client's own retry loop is disabled.
func NewOpenAI(logger zerolog.Logger, apiKey, model string, timeout time.Duration, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = openai.SpeechModelTTS1
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(timeout))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAI{
		logger: logger.With().Str("component", "openai-tts").Logger(),
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Speak writes an mp3 of text to outPath. Voices the endpoint does not know,
// such as edge-tts neural voice names, fall back to alloy.
func (o *OpenAI) Speak(ctx context.Context, text, voice, outPath string) error {
	v := openAIVoice(voice)
	if string(v) != voice {
		o.logger.Debug().Str("requested", voice).Str("voice", string(v)).Msg("voice not offered by openai, using fallback")
	}

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          o.model,
		Voice:          v,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer resp.Body.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return Permanent(fmt.Errorf("create %s: %w", outPath, err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("read speech response: %w", err)
	}
	return f.Close()
}

func openAIVoice(voice string) openai.AudioSpeechNewParamsVoice {
	v := openai.AudioSpeechNewParamsVoice(voice)
	if slices.Contains(openAIVoices, v) {
		return v
	}
	return openai.AudioSpeechNewParamsVoiceAlloy
}

// classifyOpenAIError marks client errors other than rate limiting as
// permanent.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return Permanent(fmt.Errorf("OpenAI API error: %w", err))
		}
	}
	return fmt.Errorf("OpenAI API error: %w", err)
}
