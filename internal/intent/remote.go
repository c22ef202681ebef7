package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRemoteTimeout = 5 * time.Second

// Remote is an Extractor backed by an external NLP service. The wire contract
// mirrors Parsed: POST {"utterance": ...} and get back action, content, and a
// confidence. Any transport or contract failure is returned as an error so a
// Fallback can degrade to the local parser.
type Remote struct {
	url        string
	httpClient *http.Client
}

func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Utterance string `json:"utterance"`
}

type remoteResponse struct {
	Action     string   `json:"action"`
	Content    string   `json:"content"`
	NewContent string   `json:"new_content,omitempty"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
	Priority   string   `json:"priority,omitempty"`
	Due        string   `json:"due,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func (r *Remote) Extract(ctx context.Context, utterance string) (Parsed, error) {
	body, err := json.Marshal(remoteRequest{Utterance: utterance})
	if err != nil {
		return Parsed{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Parsed{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Parsed{}, fmt.Errorf("remote extractor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Parsed{}, fmt.Errorf("remote extractor: status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Parsed{}, fmt.Errorf("remote extractor: decode: %w", err)
	}
	action := Action(out.Action)
	if !ValidAction(action) {
		return Parsed{}, fmt.Errorf("remote extractor: unknown action %q", out.Action)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Parsed{}, fmt.Errorf("remote extractor: confidence %v out of range", out.Confidence)
	}
	return Parsed{
		Action:     action,
		Content:    out.Content,
		NewContent: out.NewContent,
		Confidence: out.Confidence,
		Keywords:   out.Keywords,
		Meta: Metadata{
			Priority: out.Priority,
			Due:      out.Due,
			Tags:     out.Tags,
		},
	}, nil
}

// Fallback tries a primary Extractor and degrades to the local one on any
// error. Engine code always sees a working extractor.
type Fallback struct {
	Primary Extractor
	Local   Extractor
}

func NewFallback(primary Extractor, local Extractor) *Fallback {
	if local == nil {
		local = NewParser()
	}
	return &Fallback{Primary: primary, Local: local}
}

func (f *Fallback) Extract(ctx context.Context, utterance string) (Parsed, error) {
	if f.Primary != nil {
		if parsed, err := f.Primary.Extract(ctx, utterance); err == nil {
			return parsed, nil
		}
	}
	return f.Local.Extract(ctx, utterance)
}
