package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store
// instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a remote Qdrant instance,
// for corpora that outgrow the in-process store. The collection is created
// with Euclid distance so raw distances keep the lower-is-closer convention
// of the local index; note the backend reports plain rather than squared
// L2, so absolute score values differ from the local store's.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must not be zero")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already
// exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Add upserts chunks with their pre-computed embeddings. vectors[i] is the
// embedding of chunks[i].
func (s *QdrantStore) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant: chunks and vectors must be parallel: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]interface{}{
			"chunk_id":    chunk.ID,
			"text":        chunk.Text,
			"document_id": chunk.DocumentID,
			"offset":      int64(chunk.Offset),
		}
		for k, v := range chunk.Metadata {
			payload["meta_"+k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(pointID(chunk.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search returns the topK nearest chunks by L2 distance, converted to
// similarity scores.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]QueryResult, error) {
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]QueryResult, 0, len(points))
	for _, p := range points {
		chunk := Chunk{Metadata: make(map[string]string)}
		if payload := p.Payload; payload != nil {
			if v, ok := payload["chunk_id"]; ok {
				chunk.ID = v.GetStringValue()
			}
			if v, ok := payload["text"]; ok {
				chunk.Text = v.GetStringValue()
			}
			if v, ok := payload["document_id"]; ok {
				chunk.DocumentID = v.GetStringValue()
			}
			if v, ok := payload["offset"]; ok {
				chunk.Offset = int(v.GetIntegerValue())
			}
			for k, v := range payload {
				if len(k) > 5 && k[:5] == "meta_" {
					chunk.Metadata[k[5:]] = v.GetStringValue()
				}
			}
		}
		results = append(results, QueryResult{
			Chunk:       chunk,
			RawDistance: p.Score,
			Score:       SimilarityFromDistance(p.Score),
		})
	}

	return results, nil
}

// Count reports the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Ping calls the Qdrant gRPC health check.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Reset drops and recreates the collection, discarding all stored points.
func (s *QdrantStore) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: failed to delete collection %q: %w", s.cfg.Collection, err)
	}
	return s.ensureCollection(ctx)
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID derives a stable numeric Qdrant point ID from a chunk ID. Chunk
// IDs produced by ingestion are 16 hex characters and parse directly; any
// other ID is hashed.
func pointID(chunkID string) uint64 {
	if n, err := strconv.ParseUint(chunkID, 16, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(chunkID))
	return h.Sum64()
}
