package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K", "VECTOR_STORE", "COLLECTION", "WATCH_CSV"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("unexpected chunking defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 {
		t.Errorf("expected top-k 5, got %d", cfg.TopK)
	}
	if cfg.VectorStore != "local" {
		t.Errorf("expected local vector store, got %s", cfg.VectorStore)
	}
	if cfg.Collection != "financial_advice" {
		t.Errorf("unexpected collection: %s", cfg.Collection)
	}
	if cfg.WatchCSV {
		t.Error("csv watching should be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TOP_K", "3")
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("HF_TEMPERATURE", "0.4")
	t.Setenv("WATCH_CSV", "true")

	cfg := Load()

	if cfg.TopK != 3 {
		t.Errorf("expected top-k 3, got %d", cfg.TopK)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.ChunkSize)
	}
	if cfg.HFTemperature < 0.39 || cfg.HFTemperature > 0.41 {
		t.Errorf("expected temperature 0.4, got %f", cfg.HFTemperature)
	}
	if !cfg.WatchCSV {
		t.Error("expected csv watching to be enabled")
	}
}

func TestRequireOpenRouterKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireOpenRouterKey(); err == nil {
		t.Fatal("expected error for missing key")
	}

	cfg.OpenRouterAPIKey = "sk-or-test"
	if err := cfg.RequireOpenRouterKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
