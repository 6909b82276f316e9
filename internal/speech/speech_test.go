package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/tomohiro-takahashi/autovideo/internal/script"
)

// fakeBackend writes the text as the "audio" payload.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[int]int
	failures int // fail this many calls per segment before succeeding
	failErr  error
	delay    func(text string) time.Duration
	empty    bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Speak(ctx context.Context, text, voice, outPath string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var idx int
	fmt.Sscanf(filepath.Base(outPath), "voice_%d.mp3", &idx)

	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[int]int)
	}
	f.calls[idx]++
	call := f.calls[idx]
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if call <= f.failures {
		if f.failErr != nil {
			return f.failErr
		}
		return errors.New("transient failure")
	}
	if f.empty {
		return os.WriteFile(outPath, nil, 0644)
	}
	return os.WriteFile(outPath, []byte(voice+":"+text), 0644)
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, c := range f.calls {
		total += c
	}
	return total
}

// fakeProber reports 100ms per byte of payload.
type fakeProber struct {
	fixed time.Duration
}

func (p fakeProber) ProbeDuration(_ context.Context, path string) (time.Duration, error) {
	if p.fixed != 0 {
		return p.fixed, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return time.Duration(info.Size()) * 100 * time.Millisecond, nil
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t))
}

func segments(texts ...string) []script.Segment {
	out := make([]script.Segment, len(texts))
	for i, text := range texts {
		out[i] = script.Segment{Index: i, Text: text}
	}
	return out
}

func TestClipPath(t *testing.T) {
	if got := ClipPath("/work", 3); got != filepath.Join("/work", "voice_3.mp3") {
		t.Errorf("unexpected clip path %s", got)
	}
}

func TestSynthesizeMeasuresDuration(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(testLogger(t), &fakeBackend{}, fakeProber{fixed: 4200 * time.Millisecond}, Options{Voice: "v"})

	clip, err := s.Synthesize(context.Background(), script.Segment{Index: 2, Text: "Hello world."}, dir)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if clip.Index != 2 || clip.Duration != 4200*time.Millisecond {
		t.Errorf("unexpected clip %+v", clip)
	}
	if clip.Path != ClipPath(dir, 2) {
		t.Errorf("unexpected path %s", clip.Path)
	}
	data, _ := os.ReadFile(clip.Path)
	if string(data) != "v:Hello world." {
		t.Errorf("backend did not receive voice and text, wrote %q", data)
	}
}

func TestSynthesizeRetriesTransientFailures(t *testing.T) {
	backend := &fakeBackend{failures: 2}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Retries: 3, RetryInterval: time.Millisecond})

	if _, err := s.Synthesize(context.Background(), script.Segment{Text: "abc"}, t.TempDir()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := backend.totalCalls(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestSynthesizeGivesUpAfterRetries(t *testing.T) {
	backend := &fakeBackend{failures: 10}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Retries: 2, RetryInterval: time.Millisecond})

	dir := t.TempDir()
	_, err := s.Synthesize(context.Background(), script.Segment{Text: "abc"}, dir)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := backend.totalCalls(); got != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", got)
	}
	if _, statErr := os.Stat(ClipPath(dir, 0)); !os.IsNotExist(statErr) {
		t.Error("failed synthesis should not leave an audio file")
	}
}

func TestSynthesizePermanentErrorNotRetried(t *testing.T) {
	backend := &fakeBackend{failures: 10, failErr: Permanent(errors.New("bad voice"))}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Retries: 5, RetryInterval: time.Millisecond})

	_, err := s.Synthesize(context.Background(), script.Segment{Text: "abc"}, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "bad voice") {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if got := backend.totalCalls(); got != 1 {
		t.Errorf("permanent error should not be retried, got %d calls", got)
	}
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	s := NewSynthesizer(testLogger(t), &fakeBackend{empty: true}, fakeProber{}, Options{})

	_, err := s.Synthesize(context.Background(), script.Segment{Text: "abc"}, t.TempDir())
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestSynthesizeRejectsZeroDuration(t *testing.T) {
	s := NewSynthesizer(testLogger(t), &fakeBackend{}, fakeProber{fixed: -time.Second}, Options{})

	_, err := s.Synthesize(context.Background(), script.Segment{Text: "abc"}, t.TempDir())
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio for non-positive duration, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{})

	_, err := s.Synthesize(context.Background(), script.Segment{Text: ""}, t.TempDir())
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if backend.totalCalls() != 0 {
		t.Error("backend should not be called for empty text")
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	backend := &fakeBackend{delay: func(string) time.Duration { return time.Second }}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Timeout: 10 * time.Millisecond})

	_, err := s.Synthesize(context.Background(), script.Segment{Text: "slow"}, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSynthesizeAllPreservesOrder(t *testing.T) {
	// later segments finish first
	backend := &fakeBackend{delay: func(text string) time.Duration {
		return time.Duration(10-len(text)) * 5 * time.Millisecond
	}}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Workers: 4})

	segs := segments("a", "bb", "ccc", "dddd", "eeeee")
	clips, err := s.SynthesizeAll(context.Background(), segs, t.TempDir())
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}
	if len(clips) != len(segs) {
		t.Fatalf("expected %d clips, got %d", len(segs), len(clips))
	}
	for i, clip := range clips {
		if clip.Index != i {
			t.Errorf("clip %d has index %d", i, clip.Index)
		}
		// ":" plus the text
		want := time.Duration(len(segs[i].Text)+1) * 100 * time.Millisecond
		if clip.Duration != want {
			t.Errorf("clip %d duration %v, want %v", i, clip.Duration, want)
		}
	}
	if peak := backend.peak.Load(); peak > 4 {
		t.Errorf("worker limit exceeded: %d in flight", peak)
	}
}

func TestSynthesizeAllSequentialByDefault(t *testing.T) {
	backend := &fakeBackend{delay: func(string) time.Duration { return 2 * time.Millisecond }}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{})

	if _, err := s.SynthesizeAll(context.Background(), segments("a", "b", "c"), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if peak := backend.peak.Load(); peak != 1 {
		t.Errorf("expected one call at a time, got %d", peak)
	}
}

func TestSynthesizeAllFailsFast(t *testing.T) {
	backend := &fakeBackend{failures: 1, failErr: Permanent(errors.New("quota"))}
	s := NewSynthesizer(testLogger(t), backend, fakeProber{}, Options{Workers: 2})

	clips, err := s.SynthesizeAll(context.Background(), segments("a", "b", "c"), t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if clips != nil {
		t.Errorf("expected no clips on failure, got %+v", clips)
	}
}

func TestEdgeTTSArgs(t *testing.T) {
	got := strings.Join(edgeTTSArgs("こんにちは", "ja-JP-KeitaNeural", "/w/voice_0.mp3"), " ")
	want := "--voice ja-JP-KeitaNeural --text こんにちは --write-media /w/voice_0.mp3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewEdgeTTSMissingBinary(t *testing.T) {
	if _, err := NewEdgeTTS(zerolog.Nop(), "definitely-not-edge-tts"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestOpenAIVoiceFallback(t *testing.T) {
	if got := openAIVoice("nova-not-real"); got != "alloy" {
		t.Errorf("expected alloy fallback, got %s", got)
	}
	if got := openAIVoice("ja-JP-KeitaNeural"); got != "alloy" {
		t.Errorf("expected alloy fallback for edge voice, got %s", got)
	}
	if got := openAIVoice("coral"); got != "coral" {
		t.Errorf("expected coral, got %s", got)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(zerolog.Nop(), "", "", 0); err == nil {
		t.Error("expected error without api key")
	}
}

func TestOpenAISpeak(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake-mp3"))
	}))
	defer server.Close()

	backend, err := NewOpenAI(testLogger(t), "sk-test", "", time.Second, option.WithBaseURL(server.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "voice_0.mp3")
	if err := backend.Speak(context.Background(), "Hello world.", "ja-JP-KeitaNeural", out); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil || string(data) != "ID3fake-mp3" {
		t.Errorf("unexpected output %q (%v)", data, err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/v1/audio/speech" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestOpenAIClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	backend, err := NewOpenAI(testLogger(t), "sk-test", "", time.Second, option.WithBaseURL(server.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}

	err = backend.Speak(context.Background(), "x", "alloy", filepath.Join(t.TempDir(), "voice_0.mp3"))
	if err == nil || !isPermanent(err) {
		t.Errorf("expected permanent error for 400, got %v", err)
	}
}
