package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"unirag-ingestor/internal/db"
	"unirag-ingestor/internal/helper"
	"unirag-ingestor/internal/models"
)

const compress = false

// errNoEmbedding is returned by the collection's embedding func. Vectors are
// always computed upstream, so a document without one is a failed batch.
var errNoEmbedding = errors.New("document has no precomputed embedding")

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// VectorDBManager stores chunks in a chromem-go collection.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
	reset      bool
}

// NewVectorDBManager opens a persistent database at dbPath, or an in-memory
// one when inMemory is set.
func NewVectorDBManager(dbPath string, inMemory bool) (*VectorDBManager, error) {
	var (
		cdb *chromem.DB
		err error
	)
	if inMemory {
		cdb = chromem.NewDB()
	} else {
		cdb, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create database: %v", db.ErrPersistence, err)
		}
	}
	return &VectorDBManager{db: cdb, dbPath: dbPath}, nil
}

// GetOrCreateCollection selects the collection that Persist writes to.
func (m *VectorDBManager) GetOrCreateCollection(name string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(name, nil, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create/get collection: %v", db.ErrPersistence, err)
	}
	m.collection = c
	return c, nil
}

// WithReset makes the next Persist clear the collection before adding.
func (m *VectorDBManager) WithReset(reset bool) *VectorDBManager {
	m.reset = reset
	return m
}

// Persist adds all chunks to the collection. If any document fails, the
// ones added by this call are deleted again.
func (m *VectorDBManager) Persist(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	embedded, err := db.Pair(chunks, vectors)
	if err != nil {
		return 0, err
	}
	if len(embedded) == 0 {
		return 0, nil
	}
	if m.collection == nil {
		return 0, fmt.Errorf("%w: collection is required", db.ErrPersistence)
	}
	if m.reset {
		if err := m.Reset(); err != nil {
			return 0, err
		}
		m.reset = false
	}

	docs := make([]chromem.Document, len(embedded))
	ids := make([]string, len(embedded))
	for i, e := range embedded {
		id, err := helper.GenerateUUID()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", db.ErrPersistence, err)
		}
		ids[i] = id
		docs[i] = chromem.Document{
			ID:        id,
			Content:   e.Text,
			Metadata:  models.CopyMetadata(e.Metadata),
			Embedding: e.Vector,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		if delErr := m.collection.Delete(context.WithoutCancel(ctx), nil, nil, ids...); delErr != nil {
			log.Error().Err(delErr).Str("collection", m.collection.Name).Msg("Failed to remove partial batch")
		}
		return 0, fmt.Errorf("%w: failed to add documents: %v", db.ErrPersistence, err)
	}

	log.Info().Str("collection", m.collection.Name).Int("rows", len(docs)).Msg("Stored documents")
	return len(docs), nil
}

// Count returns the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// Reset drops the current collection and creates it again empty.
func (m *VectorDBManager) Reset() error {
	if m.collection == nil {
		return fmt.Errorf("%w: collection is required", db.ErrPersistence)
	}
	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("%w: failed to drop collection: %v", db.ErrPersistence, err)
	}
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	log.Info().Str("collection", name).Msg("Reset collection")
	return nil
}
