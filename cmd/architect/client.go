package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	authapp "architect/internal/auth/app"
	"architect/internal/domain/lead"
	"architect/internal/intake"
	"architect/internal/quiz"
	"architect/internal/results"
)

// apiError is a failed envelope. Redirect is set when the server sends the user elsewhere.
type apiError struct {
	Status   int
	Message  string
	Redirect string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Redirect string          `json:"redirect"`
}

// funnelClient drives the funnel API like a browser, keeping device and session cookies.
type funnelClient struct {
	base string
	http *http.Client
}

func newFunnelClient(base string, timeout time.Duration) (*funnelClient, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", base, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &funnelClient{
		base: base,
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (c *funnelClient) Catalog(ctx context.Context) (lead.Catalog, error) {
	var out lead.Catalog
	_, err := c.do(ctx, http.MethodGet, "/v1/catalog", nil, &out)
	return out, err
}

func (c *funnelClient) Submit(ctx context.Context, profile lead.Profile) (intake.Result, error) {
	var out intake.Result
	_, err := c.do(ctx, http.MethodPost, "/v1/intake", profile, &out)
	return out, err
}

func (c *funnelClient) Quiz(ctx context.Context) (quiz.View, error) {
	var out quiz.View
	_, err := c.do(ctx, http.MethodGet, "/v1/quiz", nil, &out)
	return out, err
}

func (c *funnelClient) Answer(ctx context.Context, option int) (quiz.View, error) {
	var out quiz.View
	_, err := c.do(ctx, http.MethodPost, "/v1/quiz/answers", map[string]int{"option": option}, &out)
	return out, err
}

func (c *funnelClient) Results(ctx context.Context) (results.View, error) {
	return c.view(ctx, http.MethodGet, "/v1/results", nil)
}

func (c *funnelClient) Focus(ctx context.Context, area string) (results.View, error) {
	return c.view(ctx, http.MethodPost, "/v1/results/focus", map[string]string{"focus_area": area})
}

func (c *funnelClient) Roadmap(ctx context.Context) (results.View, error) {
	return c.view(ctx, http.MethodPost, "/v1/results/roadmap", nil)
}

func (c *funnelClient) Pivot(ctx context.Context, dreamJob string) (results.View, error) {
	return c.view(ctx, http.MethodPost, "/v1/results/pivot", map[string]string{"dream_job": dreamJob})
}

func (c *funnelClient) Postgrad(ctx context.Context, choice string) (results.View, error) {
	return c.view(ctx, http.MethodPost, "/v1/results/postgrad", map[string]string{"postgrad_choice": choice})
}

func (c *funnelClient) Chat(ctx context.Context, message string) (results.View, error) {
	return c.view(ctx, http.MethodPost, "/v1/results/chat", map[string]string{"message": message})
}

func (c *funnelClient) SignOut(ctx context.Context) (string, error) {
	return c.do(ctx, http.MethodPost, "/v1/results/signout", nil, nil)
}

func (c *funnelClient) Retake(ctx context.Context) (string, error) {
	return c.do(ctx, http.MethodPost, "/v1/results/retake", nil, nil)
}

func (c *funnelClient) RequestLink(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	_, err := c.do(ctx, http.MethodPost, "/v1/auth/link", map[string]string{"email": email, "redirect": authapp.DefaultRedirect}, &out)
	return out.Message, err
}

// Redeem completes sign-in from a pasted magic link or bare token.
func (c *funnelClient) Redeem(ctx context.Context, link string) error {
	token := strings.TrimSpace(link)
	if parsed, err := url.Parse(token); err == nil && parsed.Query().Get("token") != "" {
		token = parsed.Query().Get("token")
	}
	if token == "" {
		return errors.New("empty sign-in link")
	}
	_, err := c.do(ctx, http.MethodGet, authapp.CallbackPath+"?token="+url.QueryEscape(token), nil, nil)
	return err
}

// view keeps the partial view some failures carry so callers can still render it.
func (c *funnelClient) view(ctx context.Context, method, path string, body any) (results.View, error) {
	var out results.View
	_, err := c.do(ctx, method, path, body, &out)
	return out, err
}

func (c *funnelClient) do(ctx context.Context, method, path string, body, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return "", fmt.Errorf("%s %s: decode response (status %d): %w", method, path, resp.StatusCode, err)
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	if !env.Success {
		return env.Redirect, &apiError{Status: resp.StatusCode, Message: env.Error, Redirect: env.Redirect}
	}
	return env.Redirect, nil
}
