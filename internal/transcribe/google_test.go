package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/session"
)

func testBlob() session.Blob {
	return session.Blob{Data: []byte("opus-bytes"), Codec: "WEBM_OPUS", SampleRate: 48000}
}

func newRecognizerFor(srv *httptest.Server) Recognizer {
	return NewGoogleRecognizer(config.RecognitionConfig{
		Mode:     "google",
		Endpoint: srv.URL,
		APIKey:   "test-key",
	})
}

func TestGoogleTranscribe(t *testing.T) {
	var captured recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech:recognize" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, query %q", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(recognizeResponse{
			Results: []recognizeResult{{
				Alternatives: []recognizeAlternative{
					{Transcript: "test phrase", Confidence: 0.92},
					{Transcript: "text phrase", Confidence: 0.41},
				},
			}},
		})
	}))
	defer srv.Close()

	text, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "test phrase" {
		t.Fatalf("expected first alternative of first result, got %q", text)
	}

	if captured.Config.Encoding != "WEBM_OPUS" || captured.Config.SampleRateHertz != 48000 {
		t.Fatalf("transport tags not forwarded: %+v", captured.Config)
	}
	if captured.Config.LanguageCode != "en-US" {
		t.Fatalf("language not forwarded: %q", captured.Config.LanguageCode)
	}
	wantAudio := base64.StdEncoding.EncodeToString([]byte("opus-bytes"))
	if captured.Audio.Content != wantAudio {
		t.Fatalf("audio content not base64 of blob: %q", captured.Audio.Content)
	}
}

func TestGoogleTranscribeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(recognizeResponse{})
	}))
	defer srv.Close()

	_, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestGoogleTranscribeEmptyAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(recognizeResponse{Results: []recognizeResult{{}}})
	}))
	defer srv.Close()

	_, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestGoogleTranscribeEmptyTranscriptString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(recognizeResponse{
			Results: []recognizeResult{{
				Alternatives: []recognizeAlternative{{Transcript: "", Confidence: 0.11}},
			}},
		})
	}))
	defer srv.Close()

	_, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript for empty transcript string, got %v", err)
	}
}

func TestGoogleTranscribeServiceFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "quota exceeded", http.StatusForbidden)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
			if !errors.Is(err, ErrService) {
				t.Fatalf("expected ErrService, got %v", err)
			}
		})
	}
}

func TestGoogleTranscribeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, err := newRecognizerFor(srv).Transcribe(context.Background(), testBlob(), "en-US")
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.RecognitionConfig{Mode: "whisper"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
