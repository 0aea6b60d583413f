package openaiservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := metrics.MustNewMetrics(prometheus.NewRegistry())
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"}, "You are a coach.", m)
}

func TestGenerateTextSendsPersonaHistoryAndPrompt(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Eat more greens."}}]}`))
	})

	history := []wizard.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	res := client.GenerateText(context.Background(), "What should I eat?", history, 0.7)

	require.True(t, res.OK())
	assert.Equal(t, "Eat more greens.", res.Value)
	assert.Equal(t, DefaultChatModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, chatMessage{Role: "system", Content: "You are a coach."}, got.Messages[0])
	assert.Equal(t, "hello", got.Messages[2].Content)
	assert.Equal(t, chatMessage{Role: "user", Content: "What should I eat?"}, got.Messages[3])
}

func TestGenerateImageRequest(t *testing.T) {
	var got imageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/vision.png"}]}`))
	})

	url, err := Image(context.Background(), client, "a garden", DefaultImageOptions)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/vision.png", url)
	assert.Equal(t, imageRequest{Model: DefaultImageModel, Prompt: "a garden", N: 1, Size: "1024x1024", Quality: "hd", Style: "vivid"}, got)
}

func TestMissingCredential(t *testing.T) {
	client := New(Config{}, "persona", nil)
	assert.False(t, client.HasCredential())

	res := client.GenerateText(context.Background(), "p", nil, 0.7)
	assert.ErrorIs(t, res.Err, ErrMissingCredential)

	text := Text(context.Background(), client, "p", nil, 0.7)
	assert.Contains(t, text, "Could not generate a response")
	assert.Contains(t, text, "OPENAI_API_KEY")

	_, err := Image(context.Background(), client, "p", DefaultImageOptions)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestAPIErrorIsTyped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	res := client.GenerateImage(context.Background(), "p", ImageOptions{})
	var apiErr *APIError
	require.True(t, errors.As(res.Err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
	assert.Equal(t, "http_429", outcome(res.Err))
}

func TestSingleAttemptPerCall(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := client.GenerateText(context.Background(), "p", nil, 0.7)
	assert.False(t, res.OK())
	assert.Equal(t, 1, calls)
}

func TestEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	res := client.GenerateText(context.Background(), "p", nil, 0.7)
	assert.ErrorIs(t, res.Err, ErrEmptyResponse)

	imgClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	res = imgClient.GenerateImage(context.Background(), "p", ImageOptions{})
	assert.ErrorIs(t, res.Err, ErrEmptyResponse)
}

func TestResolvePolicies(t *testing.T) {
	ok := Result{Value: "fine"}
	v, err := ok.Resolve(Propagate)
	require.NoError(t, err)
	assert.Equal(t, "fine", v)

	failed := Result{Err: errors.New("boom")}
	v, err = failed.Resolve(Degrade)
	require.NoError(t, err)
	assert.Equal(t, Placeholder(failed.Err), v)
	assert.Contains(t, v, "boom")

	v, err = failed.Resolve(Propagate)
	assert.EqualError(t, err, "boom")
	assert.Empty(t, v)
	assert.Equal(t, "propagate", Propagate.String())
}

func TestFetchImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("PNGDATA"))
	})

	data, err := client.FetchImage(context.Background(), client.cfg.BaseURL+"/vision.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	_, err = client.FetchImage(context.Background(), client.cfg.BaseURL+"/missing.png")
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.GenerateText(ctx, "p", nil, 0.7)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "transport", outcome(res.Err))
}

func TestNonOKSuccessStatusIsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"queued"}}]}`))
	})

	res := client.GenerateText(context.Background(), "p", nil, 0.7)
	var apiErr *APIError
	require.True(t, errors.As(res.Err, &apiErr))
	assert.Equal(t, http.StatusAccepted, apiErr.StatusCode)
	assert.Empty(t, res.Value)
}

func TestFetchImageRejectsOversizedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("PNGDATA"))
	})
	assert.Equal(t, DefaultMaxImageBytes, client.cfg.MaxImageBytes)

	client.cfg.MaxImageBytes = 7
	data, err := client.FetchImage(context.Background(), client.cfg.BaseURL+"/vision.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	client.cfg.MaxImageBytes = 4
	_, err = client.FetchImage(context.Background(), client.cfg.BaseURL+"/vision.png")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
