package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Classifier names the dominant color in a JPEG frame, answering with one
// word from the closed vocabulary (or "none").
type Classifier interface {
	DetectColor(ctx context.Context, jpeg []byte) (string, error)
}

// Palette is the closed color vocabulary the classifier is allowed to
// answer with. "none" is a valid answer but never a vote.
var Palette = map[string]bool{
	"red": true, "green": true, "blue": true,
	"yellow": true, "white": true, "black": true,
}

const colorPrompt = `Identify the most dominant color in this image.

Respond with ONLY ONE word in lowercase:
red, green, blue, yellow, white, black, or none

Focus on medication pouches or containers if visible.`

// Gemini asks the generateContent endpoint to classify a frame.
type Gemini struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

func NewGemini(url, apiKey string, timeout time.Duration) *Gemini {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gemini{url: url, apiKey: apiKey, timeout: timeout, http: &http.Client{}}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) DetectColor(ctx context.Context, jpeg []byte) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini api key not set")
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: colorPrompt},
				{InlineData: &geminiBlob{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(jpeg),
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	actx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, g.url+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty classifier response")
	}

	word := strings.ToLower(strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text))
	if word == "none" || Palette[word] {
		return word, nil
	}
	return "", fmt.Errorf("unexpected classifier answer %q", word)
}
