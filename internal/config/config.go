package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Speech providers
const (
	ProviderEdgeTTS = "edge-tts"
	ProviderOpenAI  = "openai"
)

// Policies for source images narrower than the frame after resizing
const (
	NarrowLetterbox = "letterbox"
	NarrowError     = "error"
)

// Voice presets used by the original scripts
const (
	VoiceKeita  = "ja-JP-KeitaNeural"
	VoiceNanami = "ja-JP-NanamiNeural"
)

// Environment overrides
const (
	EnvVoice    = "AUTOVIDEO_VOICE"
	EnvProvider = "AUTOVIDEO_TTS_PROVIDER"
	EnvFontPath = "AUTOVIDEO_FONT_PATH"
	EnvOpenAI   = "OPENAI_API_KEY"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	Paths     PathConfig     `yaml:"paths"`
	Video     VideoConfig    `yaml:"video"`
	Speech    SpeechConfig   `yaml:"speech"`
	FFmpeg    FFmpegConfig   `yaml:"ffmpeg"`
	Subtitles SubtitleConfig `yaml:"subtitles"`
}

// PathConfig locates inputs and outputs relative to the project root.
type PathConfig struct {
	ScriptDir       string   `yaml:"script_dir"`
	ImageDir        string   `yaml:"image_dir"`
	ImageExtensions []string `yaml:"image_extensions"`
	OutputDir       string   `yaml:"output_dir"`
	TranscriptDir   string   `yaml:"transcript_dir"`
	// TranscriptName is a fmt pattern receiving the slug.
	TranscriptName string `yaml:"transcript_name"`
}

type VideoConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FPS          float64 `yaml:"fps"`
	NarrowPolicy string  `yaml:"narrow_policy"`
}

type SpeechConfig struct {
	Provider   string        `yaml:"provider"`
	Voice      string        `yaml:"voice"`
	BinaryPath string        `yaml:"binary_path"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"-"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
}

type FFmpegConfig struct {
	BinaryPath string        `yaml:"binary_path"`
	ProbePath  string        `yaml:"probe_path"`
	Threads    int           `yaml:"threads"`
	Preset     string        `yaml:"preset"`
	CRF        int           `yaml:"crf"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SubtitleConfig struct {
	Enabled        bool     `yaml:"enabled"`
	FontPath       string   `yaml:"font_path"`
	FontCandidates []string `yaml:"font_candidates"`
	FontSize       int      `yaml:"font_size"`
	FontColor      string   `yaml:"font_color"`
	OutlineColor   string   `yaml:"outline_color"`
	OutlineWidth   int      `yaml:"outline_width"`
	MaxLineChars   int      `yaml:"max_line_chars"`
	BottomMargin   int      `yaml:"bottom_margin"`
}

// Load reads configuration from file or returns defaults, then applies
// environment overrides from the process env, .env.local and .env.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	loadDotEnv(".env.local", ".env")
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the encoder or renderer cannot honor.
func (c *Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	}
	// yuv420p needs even dimensions
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return fmt.Errorf("video size must be even, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.Video.FPS)
	}
	switch c.Video.NarrowPolicy {
	case NarrowLetterbox, NarrowError:
	default:
		return fmt.Errorf("unknown narrow_policy %q", c.Video.NarrowPolicy)
	}
	switch c.Speech.Provider {
	case ProviderEdgeTTS, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
	}
	if c.Speech.Voice == "" {
		return fmt.Errorf("speech voice is required")
	}
	if c.Speech.Retries < 0 {
		return fmt.Errorf("speech retries cannot be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if c.Subtitles.Enabled {
		if c.Subtitles.FontSize <= 0 {
			return fmt.Errorf("subtitle font size must be positive")
		}
		if c.Subtitles.MaxLineChars <= 0 {
			return fmt.Errorf("subtitle max_line_chars must be positive")
		}
	}
	if !strings.Contains(c.Paths.TranscriptName, "%s") {
		return fmt.Errorf("transcript_name must contain %%s for the slug")
	}
	return nil
}

// ScriptPath returns the script document for a slug.
func (c *Config) ScriptPath(slug string) string {
	return filepath.Join(c.Paths.ScriptDir, slug+".md")
}

// VideoPath returns the encoded video destination for a slug.
func (c *Config) VideoPath(slug string) string {
	return filepath.Join(c.Paths.OutputDir, slug+".mp4")
}

// TranscriptPath returns the caption transcript destination for a slug.
func (c *Config) TranscriptPath(slug string) string {
	return filepath.Join(c.Paths.TranscriptDir, fmt.Sprintf(c.Paths.TranscriptName, slug))
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		TempDir:     "",
		Concurrency: 1,
		Paths: PathConfig{
			ScriptDir:       "content/scripts",
			ImageDir:        "public/images/articles",
			ImageExtensions: []string{".webp"},
			OutputDir:       "public/videos",
			TranscriptDir:   "content/social",
			TranscriptName:  "【自動生成動画テロップ】%s.txt",
		},
		Video: VideoConfig{
			Width:        1080,
			Height:       1920,
			FPS:          24,
			NarrowPolicy: NarrowLetterbox,
		},
		Speech: SpeechConfig{
			Provider:   ProviderEdgeTTS,
			Voice:      VoiceKeita,
			BinaryPath: "edge-tts",
			Model:      "tts-1",
			Timeout:    90 * time.Second,
			Retries:    3,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    4,
			Preset:     "medium",
			CRF:        23,
			Timeout:    10 * time.Minute,
		},
		Subtitles: SubtitleConfig{
			Enabled: false,
			FontCandidates: []string{
				"/System/Library/Fonts/ヒラギノ角ゴシック W6.ttc",
				"/System/Library/Fonts/Hiragino Sans GB.ttc",
				"/usr/share/fonts/opentype/noto/NotoSansCJK-Bold.ttc",
				"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
				"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
				"/usr/share/fonts/truetype/fonts-japanese-gothic.ttf",
				`C:\Windows\Fonts\meiryo.ttc`,
				`C:\Windows\Fonts\msgothic.ttc`,
			},
			FontSize:     70,
			FontColor:    "#FFFFFF",
			OutlineColor: "#000000",
			OutlineWidth: 4,
			MaxLineChars: 16,
			BottomMargin: 300,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./autovideo.yaml",
		"./autovideo.yml",
		filepath.Join(os.Getenv("HOME"), ".autovideo", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadDotEnv loads each env file that exists. Variables already present in
// the environment win, so .env.local takes precedence over .env.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvVoice); v != "" {
		c.Speech.Voice = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		c.Speech.Provider = v
	}
	if v := os.Getenv(EnvFontPath); v != "" {
		c.Subtitles.FontPath = v
	}
	c.Speech.APIKey = os.Getenv(EnvOpenAI)
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
