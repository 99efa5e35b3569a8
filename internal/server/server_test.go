package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doclens/doclens/internal/analytics"
	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/server"
	"github.com/doclens/doclens/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger creates a logger that swallows output to keep test runs quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "attention") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type fakeModel struct {
	response string
}

func (f *fakeModel) GenerateChat(ctx context.Context, systemPrompt string, history []llm.ChatMessage, query string) (string, error) {
	return f.response, nil
}

func (f *fakeModel) GenerateChatStream(ctx context.Context, systemPrompt string, history []llm.ChatMessage, query string, onToken func(string) error) (string, error) {
	for _, tok := range strings.SplitAfter(f.response, " ") {
		if err := onToken(tok); err != nil {
			return "", err
		}
	}
	return f.response, nil
}

func newTestServer(t *testing.T, response string) (*httptest.Server, *session.Session) {
	t.Helper()

	sess := session.New(session.Options{
		Chunk: chunker.Config{Size: 50, Overlap: 10},
	}, &fakeEmbedder{}, &fakeModel{response: response})

	cfg := config.Config{ServerAddr: "localhost:0", StaticDir: t.TempDir() + "/missing"}
	srv := server.New(cfg, sess, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sess
}

func TestIsolationHeaders(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "require-corp", resp.Header.Get("Cross-Origin-Embedder-Policy"))
	assert.Equal(t, "same-origin", resp.Header.Get("Cross-Origin-Opener-Policy"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOptionsPreflight(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/stats", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatsEmptySession(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats analytics.AggregatedStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 0, stats.TotalQueries)
	assert.Zero(t, stats.AvgAnswerGrounding)
}

func TestDocumentUpload(t *testing.T) {
	ts, sess := newTestServer(t, "ok")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("documents", "attention.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Attention mechanisms weigh every token against every other token."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		DocumentsIndexed int      `json:"documents_indexed"`
		ChunksIndexed    int      `json:"chunks_indexed"`
		Errors           []string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.DocumentsIndexed)
	assert.Greater(t, result.ChunksIndexed, 0)
	assert.Empty(t, result.Errors)
	assert.Equal(t, result.ChunksIndexed, sess.Store().Size())
}

func TestDocumentUploadRejectsEmptyForm(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsRejectsPost(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	resp, err := http.Post(ts.URL+"/api/stats", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatWebsocketStreamsAnswer(t *testing.T) {
	ts, sess := newTestServer(t, "Attention weighs tokens against each other.")

	require.NoError(t, ingestText(t, sess, "attention.txt",
		"Attention mechanisms weigh every token against every other token when building representations."))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"query": "How does attention work?"}))

	var tokens []string
	for {
		var frame struct {
			Type   string          `json:"type"`
			Token  string          `json:"token"`
			Error  string          `json:"error"`
			Answer json.RawMessage `json:"answer"`
		}
		require.NoError(t, conn.ReadJSON(&frame))

		switch frame.Type {
		case "token":
			tokens = append(tokens, frame.Token)
		case "error":
			t.Fatalf("unexpected error frame: %s", frame.Error)
		case "answer":
			var answer session.Answer
			require.NoError(t, json.Unmarshal(frame.Answer, &answer))
			assert.Equal(t, "Attention weighs tokens against each other.", answer.Response)
			assert.Equal(t, strings.Join(tokens, ""), answer.Response)
			require.NotEmpty(t, answer.Sources)
			assert.Equal(t, "attention.txt", answer.Sources[0].Source)
			assert.Equal(t, 1, sess.Stats().TotalQueries)
			return
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
}

func TestChatWebsocketRejectsEmptyQuery(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"query": ""}))

	var frame struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.NotEmpty(t, frame.Error)
}

func TestResetClearsAnalytics(t *testing.T) {
	ts, sess := newTestServer(t, "ok")

	_, err := sess.Ask(context.Background(), "What is attention?")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Stats().TotalQueries)

	resp, err := http.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, sess.Stats().TotalQueries)
}

// ingestText indexes raw text through the session's staging path.
func ingestText(t *testing.T, sess *session.Session, source, text string) error {
	t.Helper()
	_, err := sess.IngestText(context.Background(), source, text)
	return err
}
