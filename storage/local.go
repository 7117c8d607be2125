package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blavejr/finadvisor/models"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore keeps the index in a SQLite file under the persist directory.
type LocalStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	persistDir string
	collection string
	existed    bool
}

func NewLocalStore(persistDir, collection string) (*LocalStore, error) {
	if persistDir == "" {
		persistDir = "./Data/Docs/chroma"
	}

	existed := false
	if info, err := os.Stat(persistDir); err == nil && info.IsDir() {
		existed = true
	}

	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persist directory: %w", err)
	}

	dbPath := filepath.Join(persistDir, "vectors.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	s := &LocalStore{
		db:         db,
		persistDir: persistDir,
		collection: collection,
		existed:    existed,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("Opened local vector store: %s (collection: %s, existing: %v)", dbPath, collection, existed)
	return s, nil
}

func (s *LocalStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		record_index INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Exists is true only when the persist directory was already there and holds
// chunks for this collection; an empty database left by a failed run is rebuilt.
func (s *LocalStore) Exists(ctx context.Context) (bool, error) {
	if !s.existed {
		return false, nil
	}
	count, err := s.CountChunks(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *LocalStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	return s.write(ctx, chunks, false)
}

// ReplaceChunks deletes the collection and inserts chunks in one transaction.
func (s *LocalStore) ReplaceChunks(ctx context.Context, chunks []models.Chunk) error {
	return s.write(ctx, chunks, true)
}

func (s *LocalStore) write(ctx context.Context, chunks []models.Chunk, replace bool) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to insert")
	}
	startTime := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection); err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, collection, record_index, chunk_index, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID,
			s.collection,
			chunk.RecordIndex,
			chunk.ChunkIndex,
			chunk.Text,
			embedding,
			string(metadata),
			chunk.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	log.Printf("Persisted %d chunks in %v", len(chunks), time.Since(startTime))
	return nil
}

func (s *LocalStore) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_index, chunk_index, text, embedding, metadata, created_at
		FROM chunks WHERE collection = ?
		ORDER BY record_index, chunk_index
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var embedding []byte
		var metadata sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.RecordIndex, &chunk.ChunkIndex, &chunk.Text, &embedding, &metadata, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal(embedding, &chunk.Embedding); err != nil {
			log.Printf("Warning: skipping chunk %s with corrupt embedding: %v", chunk.ID, err)
			continue
		}
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &chunk.Metadata)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return rank(queryEmbedding, chunks, limit), nil
}

func (s *LocalStore) CountChunks(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", s.collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}
