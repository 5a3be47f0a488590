package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCredentials is returned when the speech provider key or region
// is not configured.
var ErrMissingCredentials = errors.New("configuration error: speech provider credentials missing")

// Service holds the environment driven settings of the assessment service.
type Service struct {
	SpeechKey      string
	SpeechRegion   string
	SpeechEndpoint string
	Language       string
	AttemptTimeout time.Duration
	AttemptRetries uint64
	MockSpeech     bool

	ReferenceDir  string
	PhraseCatalog string
	TuningPath    string

	Port string
}

// FromEnv reads the service configuration from the process environment.
// It never fails; call Validate before using the remote provider.
func FromEnv() Service {
	return Service{
		SpeechKey:      firstEnv("SPEECH_KEY", "AZURE_SPEECH_KEY"),
		SpeechRegion:   firstEnv("SPEECH_REGION", "AZURE_SPEECH_REGION"),
		SpeechEndpoint: os.Getenv("SPEECH_ENDPOINT"),
		Language:       EnvOr("SPEECH_LANGUAGE", "en-US"),
		AttemptTimeout: durationEnv("SPEECH_ATTEMPT_TIMEOUT", 10*time.Second),
		AttemptRetries: uint64(intEnv("SPEECH_ATTEMPT_RETRIES", 0)),
		MockSpeech:     os.Getenv("USE_MOCK_SPEECH") == "true",
		ReferenceDir:   EnvOr("REFERENCE_AUDIO_DIR", "public/audio/reference"),
		PhraseCatalog:  os.Getenv("PHRASE_CATALOG"),
		TuningPath:     os.Getenv("TUNING_PATH"),
		Port:           EnvOr("PORT", "8080"),
	}
}

// Validate reports missing provider credentials. Mock mode needs none.
func (s Service) Validate() error {
	if s.MockSpeech {
		return nil
	}
	var missing []string
	if s.SpeechKey == "" {
		missing = append(missing, "SPEECH_KEY")
	}
	if s.SpeechRegion == "" && s.SpeechEndpoint == "" {
		missing = append(missing, "SPEECH_REGION")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Endpoint returns the recognition endpoint base URL without query.
func (s Service) Endpoint() string {
	if s.SpeechEndpoint != "" {
		return strings.TrimRight(s.SpeechEndpoint, "/")
	}
	return fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", s.SpeechRegion)
}

func EnvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func intEnv(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func durationEnv(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
