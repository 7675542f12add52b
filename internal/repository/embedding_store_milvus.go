package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/models"
)

const (
	milvusFieldID         = "id"
	milvusFieldEntityType = "entity_type"
	milvusFieldSourceID   = "source_id"
	milvusFieldText       = "text"
	milvusFieldVector     = "vector"

	milvusMaxTextLength = 65535
)

// MilvusOptions configures the Milvus backend.
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	VectorSize int
	UseTLS     bool
	Timeout    time.Duration
}

// MilvusEmbeddingStore keeps embeddings in one Milvus collection keyed by
// "<entityType>:<sourceID>".
type MilvusEmbeddingStore struct {
	client     client.Client
	collection string
	vectorSize int
	timeout    time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewMilvusClient dials Milvus.
func NewMilvusClient(ctx context.Context, opts MilvusOptions) (client.Client, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	return c, nil
}

func NewMilvusEmbeddingStore(c client.Client, opts MilvusOptions, logger *zap.Logger) *MilvusEmbeddingStore {
	if opts.Collection == "" {
		opts.Collection = "jobboard_embeddings"
	}
	if opts.VectorSize <= 0 {
		opts.VectorSize = 1536
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MilvusEmbeddingStore{
		client:     c,
		collection: opts.Collection,
		vectorSize: opts.VectorSize,
		timeout:    opts.Timeout,
		logger:     logger.Named("milvus_store"),
	}
}

func milvusKey(entityType models.EntityType, sourceID string) string {
	return string(entityType) + ":" + sourceID
}

func (s *MilvusEmbeddingStore) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Job board embeddings",
			Fields: []*entity.Field{
				{Name: milvusFieldID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{"max_length": "256"}},
				{Name: milvusFieldEntityType, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "32"}},
				{Name: milvusFieldSourceID, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "128"}},
				{Name: milvusFieldText, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": strconv.Itoa(milvusMaxTextLength)}},
				{Name: milvusFieldVector, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": strconv.Itoa(s.vectorSize)}},
			},
		}
		if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber, client.WithConsistencyLevel(entity.ClStrong)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}

		index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, milvusFieldVector, index, false); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	s.ready = true
	return nil
}

func (s *MilvusEmbeddingStore) Upsert(ctx context.Context, entityType models.EntityType, sourceID string, vector []float32, text string) error {
	if len(vector) != s.vectorSize {
		return errors.NewDimensionMismatchError(len(vector), s.vectorSize)
	}
	if len(text) > milvusMaxTextLength {
		return errors.NewInvalidInputError("text", fmt.Sprintf("exceeds %d bytes", milvusMaxTextLength))
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureCollection(ctx); err != nil {
		return errors.NewStoreUnavailableError().WithCause(err)
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvusFieldID, []string{milvusKey(entityType, sourceID)}),
		entity.NewColumnVarChar(milvusFieldEntityType, []string{string(entityType)}),
		entity.NewColumnVarChar(milvusFieldSourceID, []string{sourceID}),
		entity.NewColumnVarChar(milvusFieldText, []string{text}),
		entity.NewColumnFloatVector(milvusFieldVector, s.vectorSize, [][]float32{vector}),
	)
	if err != nil {
		return errors.NewStoreUnavailableError().WithCause(fmt.Errorf("milvus upsert: %w", err))
	}
	return nil
}

func (s *MilvusEmbeddingStore) GetOne(ctx context.Context, entityType models.EntityType, sourceID string) (*models.Embedding, error) {
	records, err := s.query(ctx, entityType, []string{sourceID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFoundError("embedding " + milvusKey(entityType, sourceID))
	}
	return &records[0], nil
}

func (s *MilvusEmbeddingStore) GetMany(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error) {
	ids := uniqueIDs(sourceIDs)
	if len(ids) == 0 {
		return []models.Embedding{}, nil
	}
	records, err := s.query(ctx, entityType, ids)
	if err != nil {
		return nil, err
	}
	return orderBySourceIDs(records, ids), nil
}

func (s *MilvusEmbeddingStore) Delete(ctx context.Context, entityType models.EntityType, sourceID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureCollection(ctx); err != nil {
		return errors.NewStoreUnavailableError().WithCause(err)
	}
	pks := entity.NewColumnVarChar(milvusFieldID, []string{milvusKey(entityType, sourceID)})
	if err := s.client.DeleteByPks(ctx, s.collection, "", pks); err != nil {
		return errors.NewStoreUnavailableError().WithCause(fmt.Errorf("milvus delete: %w", err))
	}
	return nil
}

func (s *MilvusEmbeddingStore) query(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureCollection(ctx); err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(err)
	}

	keys := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		keys[i] = strconv.Quote(milvusKey(entityType, id))
	}
	expr := fmt.Sprintf("%s in [%s]", milvusFieldID, strings.Join(keys, ","))

	result, err := s.client.Query(ctx, s.collection, nil, expr,
		[]string{milvusFieldEntityType, milvusFieldSourceID, milvusFieldText, milvusFieldVector})
	if err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(fmt.Errorf("milvus query: %w", err))
	}

	records, err := decodeMilvusRows(result)
	if err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(err)
	}
	return records, nil
}

func decodeMilvusRows(result client.ResultSet) ([]models.Embedding, error) {
	var (
		entityTypes, sourceIDs, texts []string
		vectors                       [][]float32
	)
	for _, column := range result {
		switch col := column.(type) {
		case *entity.ColumnVarChar:
			switch col.Name() {
			case milvusFieldEntityType:
				entityTypes = col.Data()
			case milvusFieldSourceID:
				sourceIDs = col.Data()
			case milvusFieldText:
				texts = col.Data()
			}
		case *entity.ColumnFloatVector:
			if col.Name() == milvusFieldVector {
				vectors = col.Data()
			}
		}
	}

	n := len(sourceIDs)
	if len(entityTypes) != n || len(texts) != n || len(vectors) != n {
		return nil, fmt.Errorf("milvus returned ragged columns")
	}

	records := make([]models.Embedding, n)
	for i := 0; i < n; i++ {
		records[i] = models.Embedding{
			EntityType: models.EntityType(entityTypes[i]),
			SourceID:   sourceIDs[i],
			Vector:     models.Vector(vectors[i]),
			Text:       texts[i],
		}
	}
	return records, nil
}

// Close releases the Milvus connection.
func (s *MilvusEmbeddingStore) Close() error {
	return s.client.Close()
}
