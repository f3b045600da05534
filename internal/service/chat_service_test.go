package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentchat/internal/agent"
	"agentchat/internal/cache"
	"agentchat/internal/domain"
	"agentchat/internal/llm"
	"agentchat/internal/rag"
	"agentchat/internal/repository"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Generate(ctx context.Context, messages []domain.Message, opts llm.GenerateOptions) (*llm.Response, error) {
	return f.GenerateStream(ctx, messages, opts, nil)
}

func (f *fakeProvider) GenerateStream(_ context.Context, _ []domain.Message, _ llm.GenerateOptions, fn llm.StreamFunc) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if fn != nil {
		fn(f.response)
	}
	return &llm.Response{
		Content: f.response,
		Usage:   &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// haltingProvider streams its fragments and then fails, imitating a model
// call dropped mid-generation.
type haltingProvider struct {
	fragments []string
	err       error
}

func (h *haltingProvider) Name() string  { return "fake" }
func (h *haltingProvider) Model() string { return "fake-model" }

func (h *haltingProvider) Generate(ctx context.Context, messages []domain.Message, opts llm.GenerateOptions) (*llm.Response, error) {
	return h.GenerateStream(ctx, messages, opts, nil)
}

func (h *haltingProvider) GenerateStream(_ context.Context, _ []domain.Message, _ llm.GenerateOptions, fn llm.StreamFunc) (*llm.Response, error) {
	if fn != nil {
		for _, fragment := range h.fragments {
			fn(fragment)
		}
	}
	return nil, h.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestService(t *testing.T, provider llm.Provider) (*ChatService, *repository.ConversationRepository, *rag.Engine) {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewConversationRepository(db)

	logger := zap.NewNop()

	orchestrator := agent.NewOrchestrator(logger)
	orchestrator.Register(agent.New(domain.AgentGeneral, "General Agent", "", "", provider, nil, 3, logger))

	engine := rag.NewEngine(rag.Options{
		CollectionName: "test",
		RetrievalK:     5,
		ScoreThreshold: 0.7,
	}, fakeEmbedder{}, provider, logger)

	svc := NewChatService(repo, orchestrator, engine, provider, cache.Disabled(),
		true, time.Millisecond, logger)
	return svc, repo, engine
}

func TestChatAgentMode(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeProvider{response: "hello there"})

	resp, err := svc.Chat(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Response)
	assert.Equal(t, domain.ModeAgent, resp.Mode)
	assert.Equal(t, "General Agent", resp.Agent)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 15, *resp.TokensUsed)
	assert.False(t, resp.Cached)

	// Exactly one user and one assistant message were persisted, and the
	// short first message became the title.
	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "hi", conv.Title)

	history, err := repo.LoadHistory(conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	require.NotNil(t, history[1].TotalTokens)
	assert.Equal(t, 15, *history[1].TotalTokens)
}

func TestChatLongMessageLeavesTitleEmpty(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeProvider{response: "ok"})

	long := strings.Repeat("x", 150)
	_, err := svc.Chat(context.Background(), domain.ChatRequest{SessionID: "s1", Message: long})
	require.NoError(t, err)

	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	assert.Empty(t, conv.Title)
}

func TestChatInvalidMode(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeProvider{response: "ok"})

	_, err := svc.Chat(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "hi",
		Mode:      "telepathy",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChatInvalidAgentType(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeProvider{response: "ok"})

	_, err := svc.Chat(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "hi",
		AgentType: "astrology",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChatProviderFailureIsSoft(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeProvider{err: errors.New("backend down")})

	resp, err := svc.Chat(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "Agent error:")

	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	history, err := repo.LoadHistory(conv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChatRAGModeEmptyStore(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeProvider{response: "unused"})

	resp, err := svc.Chat(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "what do the docs say?",
		Mode:      domain.ModeRAG,
	})
	require.NoError(t, err)
	assert.Equal(t, "rag", resp.Agent)
	assert.Contains(t, resp.Response, "could not find relevant information")

	// The notice came from no model call, so nothing is billed.
	assert.Nil(t, resp.TokensUsed)
	assert.Nil(t, resp.CostUSD)
}

func TestChatHistoryExcludesCurrentMessage(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeProvider{response: "ok"})

	_, err := svc.Chat(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "first"})
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "second"})
	require.NoError(t, err)

	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	history, err := repo.LoadHistory(conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[2].Content)
}

func collect(events <-chan domain.StreamEvent) (content string, last domain.StreamEvent, count int) {
	for event := range events {
		count++
		last = event
		if event.Type == domain.StreamContent {
			content += event.Content
		}
	}
	return content, last, count
}

func TestChatStreamAgentMode(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeProvider{response: "hey"})

	events := svc.ChatStream(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hi"})
	content, last, _ := collect(events)

	assert.Equal(t, "hey", content)
	assert.Equal(t, domain.StreamDone, last.Type)

	// The streamed turn persisted one assistant message with the full text.
	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	history, err := repo.LoadHistory(conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hey", history[1].Content)
}

func TestChatStreamRAGMode(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeProvider{response: "unused"})

	events := svc.ChatStream(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "docs?",
		Mode:      domain.ModeRAG,
	})
	content, last, _ := collect(events)

	assert.Contains(t, content, "could not find relevant information")
	assert.Equal(t, domain.StreamDone, last.Type)
}

func TestChatStreamMidGenerationErrorKeepsPrefix(t *testing.T) {
	provider := &haltingProvider{
		fragments: []string{"partial ", "answer"},
		err:       errors.New("connection reset"),
	}
	svc, repo, engine := newTestService(t, provider)

	ingest := engine.AddDocuments(context.Background(), []domain.DocumentInput{
		{Text: "reference material"},
	})
	require.True(t, ingest.Success)

	events := svc.ChatStream(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "docs?",
		Mode:      domain.ModeRAG,
	})

	var content string
	var errorEvents, doneEvents int
	for event := range events {
		switch event.Type {
		case domain.StreamContent:
			content += event.Content
		case domain.StreamError:
			errorEvents++
		case domain.StreamDone:
			doneEvents++
		}
	}

	// Everything delivered before the failure arrives as content, followed
	// by exactly one error event and no done event.
	assert.Equal(t, "partial answer", content)
	assert.Equal(t, 1, errorEvents)
	assert.Zero(t, doneEvents)

	// The partial answer is still persisted as the assistant message.
	conv, err := repo.GetBySessionID("s1")
	require.NoError(t, err)
	history, err := repo.LoadHistory(conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	assert.Equal(t, "partial answer", history[1].Content)
}

func TestChatStreamErrorSurvivesSlowConsumer(t *testing.T) {
	// Enough fragments to fill the event channel buffer before anything
	// is read, so the error event must wait rather than be dropped.
	fragments := make([]string, 16)
	for i := range fragments {
		fragments[i] = "x"
	}
	provider := &haltingProvider{fragments: fragments, err: errors.New("upstream closed")}
	svc, _, engine := newTestService(t, provider)

	ingest := engine.AddDocuments(context.Background(), []domain.DocumentInput{
		{Text: "reference material"},
	})
	require.True(t, ingest.Success)

	events := svc.ChatStream(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "docs?",
		Mode:      domain.ModeRAG,
	})

	time.Sleep(50 * time.Millisecond)

	_, last, _ := collect(events)
	assert.Equal(t, domain.StreamError, last.Type)
	assert.Contains(t, last.Error, "upstream closed")
}

func TestChatStreamInvalidModeEmitsSingleError(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeProvider{response: "ok"})

	events := svc.ChatStream(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "hi",
		Mode:      "telepathy",
	})
	content, last, count := collect(events)

	assert.Empty(t, content)
	assert.Equal(t, 1, count)
	assert.Equal(t, domain.StreamError, last.Type)
	assert.Contains(t, last.Error, "telepathy")
}
