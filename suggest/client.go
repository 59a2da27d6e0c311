package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.0-flash"
	defaultTimeout  = 60 * time.Second
	defaultRetries  = 2
	maxBackoff      = 8 * time.Second

	systemPrompt = "You are a web platform compatibility assistant. " +
		"When asked about a feature with narrow browser support, suggest widely supported alternatives " +
		"or progressive-enhancement fallbacks. Prefer Baseline widely available features. " +
		"Answer briefly, with a short code example when it helps."
)

// Config carries the advisor connection settings.
type Config struct {
	Endpoint   string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Request describes one feature occurrence to ask advice about.
type Request struct {
	Feature  string
	Key      string
	Tier     baseline.Tier
	Missing  []string // core browsers without support, if known
	Question string   // free-form follow-up instead of the generated prompt
}

// Client talks to the Gemini generateContent endpoint. Safe for concurrent
// use as long as each goroutine works on its own Session.
type Client struct {
	endpoint string
	model    string
	key      string
	retries  int
	http     *http.Client
	log      *zap.Logger
}

// NewClient builds an advisor client, substituting defaults for anything
// unset. Logger may be nil.
func NewClient(conf Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		endpoint: strings.TrimRight(conf.Endpoint, "/"),
		model:    conf.Model,
		key:      conf.APIKey,
		retries:  conf.MaxRetries,
		log:      log.Named("suggest"),
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.retries <= 0 {
		c.retries = defaultRetries
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.http = &http.Client{Timeout: timeout}
	c.log.Debug("Advisor configured",
		zap.String("endpoint", c.endpoint), zap.String("model", c.model), zap.String("key", maskKey(c.key)))
	return c
}

// Gemini wire shapes, trimmed to what we use.
type (
	geminiPart struct {
		Text string `json:"text"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiRequest struct {
		SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
		Contents          []geminiContent `json:"contents"`
	}
	geminiResponse struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	geminiError struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
)

// Advise sends the request on top of the session history and records both
// sides of the exchange in the session on success. Failures leave the
// session untouched so the caller can simply retry.
func (c *Client) Advise(ctx context.Context, sess *Session, req Request) (string, error) {
	if sess == nil {
		return "", fmt.Errorf("advise called without a session")
	}
	prompt := req.Question
	if prompt == "" {
		prompt = buildPrompt(req)
	}

	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
	}
	for _, turn := range sess.History() {
		payload.Contents = append(payload.Contents, geminiContent{Role: turn.Role, Parts: []geminiPart{{Text: turn.Text}}})
	}
	payload.Contents = append(payload.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: prompt}}})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode advisor request: %w", err)
	}

	url := c.endpoint + "/v1beta/models/" + c.model + ":generateContent"
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		answer, retryAfter, retry, err := c.post(ctx, url, body)
		if err == nil {
			sess.remember("user", prompt)
			sess.remember("model", answer)
			return answer, nil
		}
		lastErr = err
		if !retry || attempt == c.retries {
			break
		}
		c.log.Debug("Advisor call failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
		if err := c.wait(ctx, retryDelay(retryAfter, attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// post performs one HTTP exchange. retryAfter carries the server's
// Retry-After header and retry tells the caller whether another attempt
// makes sense.
func (c *Client) post(ctx context.Context, url string, body []byte) (answer, retryAfter string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", false, fmt.Errorf("failed to build advisor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		// key travels in a header, never in the url
		req.Header.Set("x-goog-api-key", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", false, fmt.Errorf("advisor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		var out geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", "", false, fmt.Errorf("failed to decode advisor response: %w", err)
		}
		var sb strings.Builder
		if len(out.Candidates) > 0 {
			for _, p := range out.Candidates[0].Content.Parts {
				sb.WriteString(p.Text)
			}
		}
		answer = strings.TrimSpace(sb.String())
		if answer == "" {
			return "", "", false, fmt.Errorf("advisor returned no answer")
		}
		return answer, "", false, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr geminiError
	_ = json.Unmarshal(data, &apiErr)
	msg := strings.TrimSpace(apiErr.Error.Message)
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "", resp.Header.Get("Retry-After"), true, fmt.Errorf("advisor returned %d: %s", resp.StatusCode, msg)
	default:
		return "", "", false, fmt.Errorf("advisor returned %d: %s", resp.StatusCode, msg)
	}
}

// wait blocks for the given delay unless the context ends first.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay picks the pause before the next attempt: the server's
// Retry-After when present, exponential backoff otherwise.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	d := 800 * time.Millisecond << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// buildPrompt turns a request into the question we ask the model.
func buildPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The %s `%s`", keyKind(req.Key), displayName(req))
	if req.Key != "" {
		fmt.Fprintf(&sb, " (feature key `%s`)", req.Key)
	}
	fmt.Fprintf(&sb, " is Baseline %s.", req.Tier)
	if len(req.Missing) > 0 {
		fmt.Fprintf(&sb, " It is missing in: %s.", strings.Join(req.Missing, ", "))
	}
	sb.WriteString(" Suggest safer alternatives or fallbacks I can use today.")
	return sb.String()
}

func displayName(req Request) string {
	if req.Feature != "" {
		return req.Feature
	}
	return req.Key
}

func keyKind(key string) string {
	switch {
	case strings.HasPrefix(key, "css.properties."):
		return "CSS property"
	case strings.HasPrefix(key, "html.elements."):
		return "HTML element"
	default:
		return "web feature"
	}
}

func maskKey(key string) string {
	if key == "" {
		return "<unset>"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
