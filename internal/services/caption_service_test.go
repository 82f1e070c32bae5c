package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptionerFor поднимает тестовый Ollama-сервер, отдающий response
// как поле "response", и возвращает клиента, направленного на него.
func newCaptionerFor(t *testing.T, response string) *OllamaCaptioner {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Len(t, req.Images, 1)

		json.NewEncoder(w).Encode(ollamaResponse{Response: response})
	}))
	t.Cleanup(ts.Close)
	return NewOllamaCaptioner(ts.URL, "llava", 5*time.Second)
}

func TestDescribeParsesCleanJSON(t *testing.T) {
	c := newCaptionerFor(t, `{"title": "Quiet Lake", "description": "A calm lake at dusk."}`)
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, "Quiet Lake", caption.Title)
	assert.Equal(t, "A calm lake at dusk.", caption.Description)
}

func TestDescribeExtractsJSONFromProse(t *testing.T) {
	c := newCaptionerFor(t, "Sure! Here is the result:\n{\"title\": \"Old Bridge\", \"description\": \"Stone bridge over a river.\"}\nHope that helps.")
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, "Old Bridge", caption.Title)
	assert.Equal(t, "Stone bridge over a river.", caption.Description)
}

func TestDescribeNoJSONFallsBackToRawText(t *testing.T) {
	c := newCaptionerFor(t, "  A dog playing in the snow.  ")
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderParseFailedTitle, caption.Title)
	assert.Equal(t, "A dog playing in the snow.", caption.Description)
}

func TestDescribeEmptyResponse(t *testing.T) {
	c := newCaptionerFor(t, "")
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderParseFailedTitle, caption.Title)
	assert.Equal(t, placeholderParseFailedDesc, caption.Description)
}

func TestDescribeUnparsableJSON(t *testing.T) {
	c := newCaptionerFor(t, "{'title': 'Single Quotes', 'description': 'not valid json'}")
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderParseFailedTitle, caption.Title)
	// Весь сырой ответ становится описанием.
	assert.Contains(t, caption.Description, "Single Quotes")
}

func TestDescribeMissingKeysUseDefaults(t *testing.T) {
	c := newCaptionerFor(t, `{"mood": "warm"}`)
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderDefaultTitle, caption.Title)
	assert.Equal(t, placeholderDefaultDesc, caption.Description)
}

func TestDescribeServerUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // сервер уже закрыт - соединение не установится

	c := NewOllamaCaptioner(ts.URL, "llava", time.Second)
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderServerFailedTitle, caption.Title)
	assert.Equal(t, placeholderServerFailedDesc, caption.Description)
}

func TestDescribeServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	c := NewOllamaCaptioner(ts.URL, "llava", time.Second)
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderServerFailedTitle, caption.Title)
	assert.Equal(t, placeholderServerFailedDesc, caption.Description)
}

func TestDescribeTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(ts.Close)

	c := NewOllamaCaptioner(ts.URL, "llava", 50*time.Millisecond)
	caption := c.Describe(context.Background(), []byte("fake-image"))
	assert.Equal(t, placeholderServerFailedTitle, caption.Title)
	assert.Equal(t, placeholderServerFailedDesc, caption.Description)
}
