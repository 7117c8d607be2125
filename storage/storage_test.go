package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/models"
)

func testChunks() []models.Chunk {
	now := time.Now()
	return []models.Chunk{
		{ID: "c1", RecordIndex: 0, Text: "stocks for retirement", Embedding: []float32{1, 0, 0}, CreatedAt: now},
		{ID: "c2", RecordIndex: 1, Text: "gold for wealth creation", Embedding: []float32{0, 1, 0}, CreatedAt: now},
		{ID: "c3", RecordIndex: 2, Text: "fixed deposits for savings", Embedding: []float32{0.7, 0.7, 0}, CreatedAt: now},
	}
}

func TestLocalStore_InsertAndSearch(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "chroma"), "financial_advice")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.InsertChunks(ctx, testChunks()); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("c1 should be top result, got %s", results[0].Chunk.ID)
	}
	if results[1].Chunk.ID != "c3" {
		t.Errorf("c3 should be second, got %s", results[1].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be sorted by descending score")
	}
	if results[0].Chunk.Text != "stocks for retirement" {
		t.Errorf("unexpected text: %q", results[0].Chunk.Text)
	}
}

func TestLocalStore_ExistsAfterReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma")
	ctx := context.Background()

	first, err := NewLocalStore(dir, "financial_advice")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if ok, _ := first.Exists(ctx); ok {
		t.Error("fresh persist directory should not count as existing")
	}
	if err := first.InsertChunks(ctx, testChunks()); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	first.Close()

	second, err := NewLocalStore(dir, "financial_advice")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer second.Close()

	if ok, _ := second.Exists(ctx); !ok {
		t.Error("reopened persist directory should count as existing")
	}
	count, err := second.CountChunks(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 persisted chunks, got %d", count)
	}
}

func TestLocalStore_EmptyDirectoryIsNotAnIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma")
	ctx := context.Background()

	// a run that failed before storing anything leaves an empty database behind
	first, err := NewLocalStore(dir, "financial_advice")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	first.Close()

	second, err := NewLocalStore(dir, "financial_advice")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer second.Close()

	if ok, _ := second.Exists(ctx); ok {
		t.Error("persist directory without chunks should not count as existing")
	}
}

func TestLocalStore_ReplaceChunks(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "financial_advice")
	defer store.Close()

	ctx := context.Background()
	store.InsertChunks(ctx, testChunks())

	fresh := []models.Chunk{
		{ID: "n1", RecordIndex: 0, Text: "mutual funds", Embedding: []float32{0, 0, 1}, CreatedAt: time.Now()},
	}
	if err := store.ReplaceChunks(ctx, fresh); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	results, _ := store.Search(ctx, []float32{0, 0, 1}, 5)
	if len(results) != 1 || results[0].Chunk.ID != "n1" {
		t.Errorf("expected only the new chunk, got %+v", results)
	}
}

func TestLocalStore_FailedReplaceKeepsIndex(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "financial_advice")
	defer store.Close()

	ctx := context.Background()
	store.InsertChunks(ctx, testChunks())

	if err := store.ReplaceChunks(ctx, nil); err == nil {
		t.Error("replacing with no chunks should fail")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.ReplaceChunks(cancelled, testChunks()[:1]); err == nil {
		t.Error("replace with a cancelled context should fail")
	}

	count, _ := store.CountChunks(ctx)
	if count != 3 {
		t.Errorf("old index should survive a failed replace, got %d chunks", count)
	}
}

func TestLocalStore_CollectionsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, _ := NewLocalStore(dir, "a")
	defer a.Close()
	a.InsertChunks(ctx, testChunks())

	b, _ := NewLocalStore(dir, "b")
	defer b.Close()

	count, _ := b.CountChunks(ctx)
	if count != 0 {
		t.Errorf("collection b should be empty, got %d", count)
	}
}

func TestLocalStore_Clear(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "financial_advice")
	defer store.Close()

	ctx := context.Background()
	store.InsertChunks(ctx, testChunks())

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	count, _ := store.CountChunks(ctx)
	if count != 0 {
		t.Errorf("expected 0 chunks after clear, got %d", count)
	}
}

func TestLocalStore_InsertEmpty(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "financial_advice")
	defer store.Close()

	if err := store.InsertChunks(context.Background(), nil); err == nil {
		t.Error("inserting no chunks should fail")
	}
}

func TestRank_SkipsMismatchedDimensions(t *testing.T) {
	chunks := append(testChunks(), models.Chunk{ID: "short", Embedding: []float32{1}})

	results := rank([]float32{1, 0, 0}, chunks, 10)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Chunk.ID == "short" {
			t.Error("chunk with wrong dimension should be skipped")
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if d := got - tt.want; d > 1e-9 || d < -1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(&config.Config{VectorStore: "chroma"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := NewSessionStore(models.DefaultGenerationParams())

	a := store.GetOrCreate("")
	if a.ID == "" {
		t.Fatal("new session should get an id")
	}
	if again := store.GetOrCreate(a.ID); again != a {
		t.Error("known id should return the same session")
	}
	if other := store.GetOrCreate("unknown"); other == a || other.ID == "unknown" {
		t.Error("unknown id should create a fresh session under a new id")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}

func TestSessionStore_Prune(t *testing.T) {
	store := NewSessionStore(models.DefaultGenerationParams())
	stale := store.GetOrCreate("")
	fresh := store.GetOrCreate("")

	now := time.Now()
	stale.Touch(now.Add(-48 * time.Hour))
	fresh.Touch(now)

	if removed := store.Prune(now, 24*time.Hour); removed != 1 {
		t.Fatalf("expected 1 pruned session, got %d", removed)
	}
	if _, ok := store.Get(stale.ID); ok {
		t.Error("stale session should be gone")
	}
	if _, ok := store.Get(fresh.ID); !ok {
		t.Error("fresh session should remain")
	}
}

func TestLocalStore_TiesKeepRecordOrder(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "financial_advice")
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	store.InsertChunks(ctx, []models.Chunk{
		{ID: "z", RecordIndex: 2, Text: "c", Embedding: []float32{1, 0}, CreatedAt: now},
		{ID: "y", RecordIndex: 0, Text: "a", Embedding: []float32{1, 0}, CreatedAt: now},
		{ID: "x", RecordIndex: 1, Text: "b", Embedding: []float32{1, 0}, CreatedAt: now},
	})

	results, _ := store.Search(ctx, []float32{1, 0}, 3)
	for i, want := range []string{"y", "x", "z"} {
		if results[i].Chunk.ID != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].Chunk.ID)
		}
	}
}

func TestNewMongoStore_PingFailure(t *testing.T) {
	cfg := &config.Config{
		MongoURI:      "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200",
		MongoDatabase: "advisor_test",
		Collection:    "financial_advice",
	}

	_, err := NewMongoStore(cfg)
	if err == nil {
		t.Fatal("expected an error for an unreachable server")
	}
	if !strings.Contains(err.Error(), "failed to ping MongoDB") {
		t.Errorf("unexpected error: %v", err)
	}
}
