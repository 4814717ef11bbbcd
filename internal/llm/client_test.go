package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.8,
		Timeout:     30,
	}
}

const completionBody = `{
	"id": "test-id",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "Title: Foo\n1. Introduction"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com/")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, "test-model", client.Model())
	assert.NotNil(t, client.httpClient)

	_, err = NewClient(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "API key"},
		{name: "missing url", mutate: func(c *Config) { c.APIURL = "" }, wantErr: "API URL"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "hot temperature", mutate: func(c *Config) { c.Temperature = 2.5 }, wantErr: "temperature"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://api.example.com")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerate_SendsSystemAndUserMessages(t *testing.T) {
	var (
		mu  sync.Mutex
		got ChatRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "be an expert", "write it")
	require.NoError(t, err)
	assert.Equal(t, "Title: Foo\n1. Introduction", text)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be an expert", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "write it", got.Messages[1].Content)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.8, got.Temperature, 1e-9)
}

func TestGenerate_APIError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded", "type": "rate_limit", "code": "429"}}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, 1, calls, "generation must not be retried")
}

func TestGenerate_NonJSONFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChatCompletion_OptionOverrides(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.SiteURL = "https://srs.example.com"
	client, err := NewClient(cfg)
	require.NoError(t, err)

	opts := NewChatCompletionOptions().WithMaxTokens(42).WithTemperature(0.1)
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, opts)
	require.NoError(t, err)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Equal(t, 42, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
}

func TestGenerate_Live(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		t.Skip("LLM_API_KEY environment variable not set, skipping integration test")
	}

	cfg := testConfig(os.Getenv("LLM_API_URL"))
	cfg.APIKey = apiKey
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.openai.com/v1"
	}
	cfg.Model = os.Getenv("LLM_MODEL")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cfg.MaxTokens = 64

	client, err := NewClient(cfg)
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "Reply tersely.", `Reply with exactly "Title: Ping".`)
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "Title"))
}
