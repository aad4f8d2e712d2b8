package transcribe

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/session"
	"google.golang.org/api/option"
)

// cloudRecognizer uses the Cloud Speech SDK with service-account credentials
// instead of the REST endpoint with an API key. Same request/response
// contract: one Recognize call, first alternative of the first result.
type cloudRecognizer struct {
	credentialsJSON string
	timeout         time.Duration
}

func NewCloudRecognizer(cfg config.RecognitionConfig) (Recognizer, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("recognition.credentials_json must be set when mode=gcloud")
	}
	return &cloudRecognizer{
		credentialsJSON: cfg.CredentialsJSON,
		timeout:         time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
	}, nil
}

func (c *cloudRecognizer) Transcribe(ctx context.Context, blob session.Blob, language string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	client, err := speech.NewClient(ctx, option.WithCredentialsJSON([]byte(c.credentialsJSON)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	defer client.Close()

	encoding, err := encodingFor(blob.Codec)
	if err != nil {
		return "", err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(blob.SampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: blob.Data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}

	results := resp.GetResults()
	if len(results) == 0 || len(results[0].GetAlternatives()) == 0 {
		return "", ErrNoTranscript
	}
	transcript := results[0].GetAlternatives()[0].GetTranscript()
	if transcript == "" {
		return "", ErrNoTranscript
	}
	return transcript, nil
}

func encodingFor(codec string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch codec {
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("%w: unsupported codec %q", ErrService, codec)
	}
}
