package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/session"
)

// googleRecognizer talks to the Speech-to-Text v1 REST endpoint with an API
// key credential. One recognize call per finalized recording, no streaming.
type googleRecognizer struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

func NewGoogleRecognizer(cfg config.RecognitionConfig) Recognizer {
	return &googleRecognizer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		client:   http.DefaultClient,
	}
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []recognizeResult `json:"results"`
}

type recognizeResult struct {
	Alternatives []recognizeAlternative `json:"alternatives"`
}

type recognizeAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

func (g *googleRecognizer) Transcribe(ctx context.Context, blob session.Blob, language string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	payload := recognizeRequest{
		Config: recognizeConfig{
			Encoding:        blob.Codec,
			SampleRateHertz: blob.SampleRate,
			LanguageCode:    language,
		},
		Audio: recognizeAudio{
			Content: base64.StdEncoding.EncodeToString(blob.Data),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrService, err)
	}

	target := g.endpoint + "/v1/speech:recognize"
	if g.apiKey != "" {
		target += "?key=" + url.QueryEscape(g.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %s", ErrService, resp.Status)
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrService, err)
	}
	return firstTranscript(decoded)
}

// firstTranscript consumes the first alternative of the first result; the
// rest of the response is ignored. An empty transcript string counts as no
// transcript.
func firstTranscript(resp recognizeResponse) (string, error) {
	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		return "", ErrNoTranscript
	}
	transcript := resp.Results[0].Alternatives[0].Transcript
	if transcript == "" {
		return "", ErrNoTranscript
	}
	return transcript, nil
}
