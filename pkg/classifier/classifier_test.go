package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/sitescout/internal/models"
)

func chatResponseWith(t *testing.T, content string, tokens int) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{"total_tokens": tokens},
	})
	require.NoError(t, err)
	return body
}

func newTestClient(baseURL string) *Client {
	return New(Options{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		MaxRetries:        2,
		ContentCharBudget: 100,
	}, log.New(io.Discard))
}

func TestClassifyStructured(t *testing.T) {
	assessment := `{
		"importance_score": 0.85,
		"tags": ["admissions", "requirements"],
		"abstract": "Application requirements for the program.",
		"recommended_links": [
			{"url": "https://www.example.edu/apply", "priority": 0.8, "kind": "application"},
			{"url": "https://www.example.edu/faq", "priority": "medium", "kind": "mystery"}
		],
		"related_topics": ["higher education"]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write(chatResponseWith(t, assessment, 321))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Classify(context.Background(), "https://www.example.edu/admissions", "Admissions", "page text")
	require.NoError(t, err)

	assert.True(t, res.Structured)
	assert.Equal(t, 321, res.TokensUsed)
	assert.InDelta(t, 0.85, res.Assessment.ImportanceScore, 1e-9)
	assert.Equal(t, []string{"admissions", "requirements"}, res.Assessment.Tags)

	require.Len(t, res.Assessment.RecommendedLinks, 2)
	assert.Equal(t, models.LinkKindApplication, res.Assessment.RecommendedLinks[0].Kind)
	// String priority forms map onto the numeric scale.
	assert.InDelta(t, 0.6, res.Assessment.RecommendedLinks[1].Priority, 1e-9)
	// Unknown kinds fold into "other".
	assert.Equal(t, models.LinkKindOther, res.Assessment.RecommendedLinks[1].Kind)
}

func TestClassifyUnstructured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponseWith(t, "I could not analyze this page, sorry.", 50))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Classify(context.Background(), "https://www.example.edu/x", "", "text")
	require.NoError(t, err)

	assert.False(t, res.Structured)
	assert.Equal(t, "I could not analyze this page, sorry.", res.Raw)
	assert.Equal(t, 50, res.TokensUsed)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	content := "```json\n{\"importance_score\": 0.4, \"tags\": [], \"abstract\": \"a\", \"recommended_links\": [], \"related_topics\": []}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponseWith(t, content, 10))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Classify(context.Background(), "https://www.example.edu/x", "", "text")
	require.NoError(t, err)
	assert.True(t, res.Structured)
	assert.InDelta(t, 0.4, res.Assessment.ImportanceScore, 1e-9)
}

func TestClassifyTruncatesContent(t *testing.T) {
	var gotContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(req.Messages[1].Content), &payload))
		gotContent = payload["content"]
		w.Write(chatResponseWith(t, `{"importance_score": 0}`, 10))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Classify(context.Background(), "https://www.example.edu/x", "", string(long))
	require.NoError(t, err)
	assert.Len(t, gotContent, 100)
}

func TestClassifyRetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Classify(context.Background(), "https://www.example.edu/x", "", "text")

	var clsErr *Error
	require.ErrorAs(t, err, &clsErr)
	assert.Equal(t, 2, attempts)
}

func TestClassifyEstimatesTokensWhenUsageAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponseWith(t, `{"importance_score": 0.5}`, 0))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Classify(context.Background(), "https://www.example.edu/x", "", "some page text")
	require.NoError(t, err)
	assert.Greater(t, res.TokensUsed, 0)
}

func TestAnalyzeStructured(t *testing.T) {
	analysis := `{
		"sections": [
			{"text": "Application requirements overview.", "type": "requirements", "context": "admissions"}
		],
		"program_info": {
			"key_points": ["rolling admissions"],
			"requirements": ["bachelor's degree"]
		}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponseWith(t, analysis, 150))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Analyze(context.Background(), "https://www.example.edu/admissions", "Admissions", "page text")
	require.NoError(t, err)

	assert.True(t, res.Structured)
	assert.Equal(t, 150, res.TokensUsed)
	require.Len(t, res.Analysis.Sections, 1)
	assert.Equal(t, "requirements", res.Analysis.Sections[0].Type)
	assert.Equal(t, []string{"rolling admissions"}, res.Analysis.KeyPoints)
	assert.Equal(t, []string{"bachelor's degree"}, res.Analysis.Requirements)
}

func TestAnalyzeEmptySectionsIsUnstructured(t *testing.T) {
	// A decodable document with no sections means the page was judged invalid.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponseWith(t, `{"sections": [], "program_info": {}}`, 20))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Analyze(context.Background(), "https://www.example.edu/404", "", "not found")
	require.NoError(t, err)
	assert.False(t, res.Structured)
	assert.Equal(t, 20, res.TokensUsed)
}

func TestPriorityValueForms(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`0.7`, 0.7},
		{`"high"`, 0.9},
		{`"Medium"`, 0.6},
		{`"low"`, 0.3},
		{`"0.45"`, 0.45},
	}
	for _, tt := range tests {
		var p priorityValue
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &p), tt.raw)
		assert.InDelta(t, tt.want, float64(p), 1e-9, tt.raw)
	}
}
