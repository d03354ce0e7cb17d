package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newRetryBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Index returns a vector index backed by the named collection. Metadata
// lives in process memory, so the collection is always recreated empty.
func (s *QdrantStorage) Index(ctx context.Context, collection string, dimension int) (*QdrantIndex, error) {
	idx := &QdrantIndex{
		client:     s.client,
		collection: collection,
		dimension:  dimension,
	}
	if err := idx.Reset(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// QdrantIndex stores vectors as points whose numeric ID is the insertion
// position, searched with Euclidean distance.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int

	mu    sync.RWMutex
	count int
}

const upsertBatchSize = 100

func (q *QdrantIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != q.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), q.dimension)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Points past count from a failed call are overwritten by the next Add
	// and never returned by Search.
	for i := 0; i < len(vectors); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(q.count + j)),
				Vectors: qdrant.NewVectors(vectors[j]...),
			})
		}
		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	q.count += len(vectors)
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newRetryBackOff(), ctx))
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), q.dimension)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if k <= 0 || q.count == 0 {
		return nil, nil
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", q.collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		pos := int(r.Id.GetNum())
		if pos >= q.count {
			continue
		}
		// Euclid scores are plain distances; square them to match FlatIndex.
		hits = append(hits, Hit{Position: pos, Distance: r.Score * r.Score})
	}
	return hits, nil
}

func (q *QdrantIndex) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

func (q *QdrantIndex) Dimension() int { return q.dimension }

// Reset drops and recreates the collection.
func (q *QdrantIndex) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
				return fmt.Errorf("failed to delete collection: %w", err)
			}
			break
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.count = 0
	return nil
}
