package transcription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// stage is a state of the fallback ladder.
type stage int

const (
	stagePrimary stage = iota
	stageSecondary
	stageTranscribe
	stageDemo
)

func (s stage) String() string {
	switch s {
	case stagePrimary:
		return "primary"
	case stageSecondary:
		return "secondary"
	case stageTranscribe:
		return "transcribe"
	default:
		return "demo"
	}
}

func (s stage) source() string {
	switch s {
	case stagePrimary:
		return "primary"
	case stageSecondary:
		return "secondary"
	case stageTranscribe:
		return "transcription"
	default:
		return "demo"
	}
}

// assessmentConfig is the JSON document carried base64 encoded in the
// Pronunciation-Assessment header.
type assessmentConfig struct {
	ReferenceText           string `json:"ReferenceText"`
	GradingSystem           string `json:"GradingSystem"`
	Granularity             string `json:"Granularity"`
	Dimension               string `json:"Dimension"`
	EnableMiscue            bool   `json:"EnableMiscue"`
	EnableProsodyAssessment bool   `json:"EnableProsodyAssessment,omitempty"`
	NBestPhonemeCount       int    `json:"NBestPhonemeCount,omitempty"`
}

func comprehensiveConfig(reference string) assessmentConfig {
	return assessmentConfig{
		ReferenceText:           reference,
		GradingSystem:           "HundredMark",
		Granularity:             "Phoneme",
		Dimension:               "Comprehensive",
		EnableProsodyAssessment: true,
		NBestPhonemeCount:       5,
	}
}

// reducedConfig drops prosody and phoneme alternatives.
func reducedConfig(reference string) assessmentConfig {
	return assessmentConfig{
		ReferenceText: reference,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		Dimension:     "Comprehensive",
	}
}

func encodeConfig(cfg assessmentConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode assessment config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// query returns the URL parameters of a stage. The secondary attempt sends
// the language only and so receives the simple response format.
func (s stage) query(language string) url.Values {
	q := url.Values{}
	q.Set("language", language)
	switch s {
	case stagePrimary:
		q.Set("format", "detailed")
		q.Set("profanity", "raw")
	case stageTranscribe:
		q.Set("format", "detailed")
	}
	return q
}

func (c *Client) newRequest(ctx context.Context, s stage, wav []byte, reference string) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = s.query(c.language).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(wav))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	var cfg assessmentConfig
	switch s {
	case stagePrimary:
		cfg = comprehensiveConfig(reference)
	case stageSecondary:
		cfg = reducedConfig(reference)
	default:
		return req, nil
	}
	header, err := encodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Pronunciation-Assessment", header)
	return req, nil
}
