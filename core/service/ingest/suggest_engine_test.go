package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"suggest_server/config"
	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/core/service/embedding"
)

func newBucketEngine(llm out.LLMClient) *Engine {
	cfg := &config.Config{
		SummaryMaxWords:       2,
		ThreadSummaryMaxWords: 5,
	}
	return NewEngine([]out.MailSource{}, nil, nil, nil, nil, NewSummarizer(llm, 2), cfg)
}

func mailAt(id, thread, body string, sentAt time.Time) domain.EmailMessage {
	return domain.EmailMessage{MessageID: id, ThreadID: thread, Body: body, SentAt: &sentAt}
}

func TestSummarizeThreads_BucketsByThread(t *testing.T) {
	llm := &fakeLLM{response: strings.Repeat("word ", 8)}
	engine := newBucketEngine(llm)

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	messages := []domain.EmailMessage{
		mailAt("a-1", "thread-a", "alpha one", base.Add(2*time.Hour)),
		mailAt("b-1", "", "bravo", base),
		mailAt("a-2", "thread-a", "alpha two", base.Add(time.Hour)),
		mailAt("c-1", "", "", base.Add(3*time.Hour)),
	}

	got := engine.summarizeThreads(context.Background(), messages, time.Time{})
	if len(got) != len(messages) {
		t.Fatalf("message count changed: %d", len(got))
	}

	// Both members of the thread share one summary at the thread cap.
	if got[0].Body != got[2].Body {
		t.Errorf("thread members should share a summary: %q vs %q", got[0].Body, got[2].Body)
	}
	if words := len(strings.Fields(got[0].Body)); words != 5 {
		t.Errorf("thread summary has %d words, want 5", words)
	}

	// A lone message falls back to its own id bucket at the single cap.
	if words := len(strings.Fields(got[1].Body)); words != 2 {
		t.Errorf("single summary has %d words, want 2", words)
	}

	// Empty bodies stay empty, no model call wasted on them.
	if got[3].Body != "" {
		t.Errorf("empty body rewritten to %q", got[3].Body)
	}
}

func TestSummarizeThreads_DeadlineFallsBackToRawText(t *testing.T) {
	llm := &fakeLLM{response: "should not be used"}
	engine := newBucketEngine(llm)

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	messages := []domain.EmailMessage{
		mailAt("a-1", "thread-a", "alpha one", base),
		mailAt("a-2", "thread-a", "alpha two", base.Add(time.Hour)),
	}

	got := engine.summarizeThreads(context.Background(), messages, time.Now().Add(-time.Second))

	want := "alpha one\n\nalpha two"
	if got[0].Body != want || got[1].Body != want {
		t.Errorf("expired budget should keep raw joined text, got %q / %q", got[0].Body, got[1].Body)
	}
}

func TestSummarizeThreads_NoSentAtStillDeterministic(t *testing.T) {
	llm := &fakeLLM{response: "summary text"}
	engine := newBucketEngine(llm)

	messages := []domain.EmailMessage{
		{MessageID: "x-1", Body: "first"},
		{MessageID: "x-2", Body: "second"},
	}

	got := engine.summarizeThreads(context.Background(), messages, time.Time{})
	if got[0].Body == "" || got[1].Body == "" {
		t.Errorf("undated messages should still be summarized: %+v", got)
	}
}

type stubMailSource struct {
	results   []*out.FetchResult
	call      int
	gotCursor []*domain.IngestCursor
}

func (s *stubMailSource) Name() domain.EmailProvider { return domain.ProviderGmail }

func (s *stubMailSource) FetchMessages(_ context.Context, _ *domain.OAuthConnection, cursor *domain.IngestCursor, _ out.FetchOptions) (*out.FetchResult, error) {
	s.gotCursor = append(s.gotCursor, cursor)
	res := s.results[s.call]
	if s.call < len(s.results)-1 {
		s.call++
	}
	return res, nil
}

type stubTokenRepo struct{}

func (stubTokenRepo) GetByUserAndProvider(_ context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.OAuthConnection, error) {
	return &domain.OAuthConnection{UserID: userID, Provider: provider}, nil
}
func (stubTokenRepo) Upsert(context.Context, *domain.OAuthConnection) error { return nil }
func (stubTokenRepo) Delete(context.Context, uuid.UUID, domain.EmailProvider) error {
	return nil
}
func (stubTokenRepo) ListUserIDsWithTokens(context.Context) ([]uuid.UUID, error) { return nil, nil }

type memCursorRepo struct {
	stored  map[domain.EmailProvider]*domain.IngestCursor
	upserts int
}

func newMemCursorRepo() *memCursorRepo {
	return &memCursorRepo{stored: make(map[domain.EmailProvider]*domain.IngestCursor)}
}

func (r *memCursorRepo) Get(_ context.Context, _ string, provider domain.EmailProvider) (*domain.IngestCursor, error) {
	return r.stored[provider], nil
}

func (r *memCursorRepo) Upsert(_ context.Context, cursor *domain.IngestCursor) error {
	r.upserts++
	r.stored[cursor.Provider] = cursor
	return nil
}

type stubContextStore struct{}

func (stubContextStore) UpsertMany(_ context.Context, _ string, items []domain.EmailEmbedding) (int, error) {
	return len(items), nil
}
func (stubContextStore) SearchSimilar(context.Context, string, []float32, []domain.EmailProvider, int) ([]domain.EmailContext, error) {
	return nil, nil
}
func (stubContextStore) ListRecent(context.Context, string, []domain.EmailProvider, int) ([]domain.EmailContext, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embedding(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, 4), nil
}
func (stubEmbedder) EmbeddingBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, 4)
	}
	return vecs, nil
}

func TestIngestProvider_CursorAdvancesAndHolds(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	advanced := &domain.IngestCursor{
		UserID:         userID.String(),
		Provider:       domain.ProviderGmail,
		LastInternalMs: base.UnixMilli(),
		LastMessageID:  "m-1",
	}
	source := &stubMailSource{
		results: []*out.FetchResult{
			{
				Messages:  []domain.EmailMessage{mailAt("m-1", "t-1", "first message body", base)},
				NewCursor: advanced,
				Scanned:   1,
			},
			// Rerun with nothing newer keeps NewCursor nil.
			{Scanned: 0},
		},
	}
	cursors := newMemCursorRepo()

	cfg := &config.Config{
		IngestMaxMessages:     50,
		IngestPageSize:        25,
		SummaryMaxWords:       10,
		ThreadSummaryMaxWords: 20,
	}
	engine := NewEngine(
		[]out.MailSource{source},
		stubTokenRepo{},
		cursors,
		stubContextStore{},
		embedding.NewService(stubEmbedder{}, 4),
		NewSummarizer(&fakeLLM{response: "summary"}, 2),
		cfg,
	)

	stats, err := engine.IngestProvider(context.Background(), userID, domain.ProviderGmail, 0, time.Time{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if stats.Embedded != 1 {
		t.Errorf("embedded = %d, want 1", stats.Embedded)
	}
	if cursors.upserts != 1 {
		t.Fatalf("cursor upserts = %d, want 1", cursors.upserts)
	}
	if got := cursors.stored[domain.ProviderGmail]; got.LastInternalMs != base.UnixMilli() {
		t.Errorf("stored watermark = %d, want %d", got.LastInternalMs, base.UnixMilli())
	}

	if _, err := engine.IngestProvider(context.Background(), userID, domain.ProviderGmail, 0, time.Time{}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// The second fetch sees the stored cursor and the watermark holds.
	if len(source.gotCursor) != 2 || source.gotCursor[1] == nil {
		t.Fatalf("second fetch should receive the stored cursor, got %+v", source.gotCursor)
	}
	if source.gotCursor[1].LastInternalMs != base.UnixMilli() {
		t.Errorf("cursor passed to fetch = %d, want %d", source.gotCursor[1].LastInternalMs, base.UnixMilli())
	}
	if cursors.upserts != 1 {
		t.Errorf("cursor upserts after rerun = %d, want still 1", cursors.upserts)
	}
}
