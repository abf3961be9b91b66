package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/models"
)

var (
	// ErrCountMismatch means chunks and vectors are not aligned. It points at
	// a pipeline bug; nothing is written.
	ErrCountMismatch = errors.New("chunk/vector count mismatch")

	// ErrPersistence wraps database failures. The batch has been rolled back.
	ErrPersistence = errors.New("persistence error")
)

// Document is one stored chunk. The table name is chosen per Persister.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	Content       string            `bun:"content,notnull"`
	Embedding     Vector            `bun:"embedding,notnull,type:vector"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a Postgres handle with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		sqldb, err := sql.Open("postgres", cfg.ConnectionURI)
		if err != nil {
			return nil, fmt.Errorf("%w: open: %v", ErrPersistence, err)
		}
		return sqldb, nil
	default:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.ConnectionURI))), nil
	}
}

// Pair aligns chunks with their vectors by position.
func Pair(chunks []models.Chunk, vectors [][]float32) ([]models.EmbeddedChunk, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrCountMismatch, len(chunks), len(vectors))
	}
	out := make([]models.EmbeddedChunk, len(chunks))
	for i := range chunks {
		out[i] = models.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}
	return out, nil
}

// Rows turns embedded chunks into the rows written to storage.
func Rows(embedded []models.EmbeddedChunk) []models.PersistedRow {
	rows := make([]models.PersistedRow, len(embedded))
	for i, e := range embedded {
		rows[i] = models.PersistedRow{Content: e.Text, Vector: e.Vector, Metadata: e.Metadata}
	}
	return rows
}

// schemaFunc creates table for vectors of dims dimensions if it is missing.
type schemaFunc func(ctx context.Context, tx bun.Tx, table string, dims int) error

// Persister writes a batch of rows into one table in a single transaction.
type Persister struct {
	db        *bun.DB
	table     string
	initTable bool
	reset     bool
	schema    schemaFunc
}

func NewPersister(db *bun.DB, table string) *Persister {
	return &Persister{db: db, table: table, schema: createVectorTable}
}

// WithInitTable makes Persist create the pgvector extension and the target
// table inside the batch transaction if they are missing.
func (p *Persister) WithInitTable(init bool) *Persister {
	p.initTable = init
	return p
}

// WithReset makes Persist drop and recreate the target table inside the batch
// transaction, so previous rows are replaced only if the new batch commits.
func (p *Persister) WithReset(reset bool) *Persister {
	p.reset = reset
	return p
}

// Persist checks that chunks and vectors line up, then stores them.
func (p *Persister) Persist(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	embedded, err := Pair(chunks, vectors)
	if err != nil {
		return 0, err
	}
	return p.PersistRows(ctx, Rows(embedded))
}

// PersistRows inserts all rows with one multi-row INSERT inside one
// transaction. Either every row is committed or none is.
func (p *Persister) PersistRows(ctx context.Context, rows []models.PersistedRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: acquire connection: %v", ErrPersistence, err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Str("table", p.table).Msg("Rollback failed")
			return
		}
		log.Warn().Str("table", p.table).Int("rows", len(rows)).Msg("Rolled back batch")
	}()

	if p.reset {
		if err := DropTable(ctx, tx, p.table); err != nil {
			return 0, fmt.Errorf("%w: drop table %s: %v", ErrPersistence, p.table, err)
		}
	}
	if p.initTable || p.reset {
		if err := p.schema(ctx, tx, p.table, len(rows[0].Vector)); err != nil {
			return 0, fmt.Errorf("%w: create table %s: %v", ErrPersistence, p.table, err)
		}
	}

	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = Document{Content: r.Content, Embedding: Vector(r.Vector), Metadata: r.Metadata}
	}

	res, err := tx.NewInsert().
		Model(&docs).
		ModelTableExpr("?", bun.Ident(p.table)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: insert into %s: %v", ErrPersistence, p.table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	committed = true

	n := len(docs)
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		n = int(affected)
	}
	log.Info().Str("table", p.table).Int("rows", n).Msg("Stored documents")
	return n, nil
}

func createVectorTable(ctx context.Context, tx bun.Tx, table string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("cannot derive vector dimensions")
	}
	if _, err := tx.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ? (
		id bigserial PRIMARY KEY,
		content text NOT NULL,
		embedding vector(?) NOT NULL,
		metadata jsonb
	)`, bun.Ident(table), dims)
	return err
}

// CountRows returns the number of rows in table.
func CountRows(ctx context.Context, db bun.IDB, table string) (int, error) {
	return db.NewSelect().TableExpr("?", bun.Ident(table)).Count(ctx)
}

// DropTable removes table if it exists.
func DropTable(ctx context.Context, db bun.IDB, table string) error {
	_, err := db.NewDropTable().TableExpr("?", bun.Ident(table)).IfExists().Exec(ctx)
	return err
}
