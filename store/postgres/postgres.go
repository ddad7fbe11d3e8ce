// Package postgres implements the document store on Postgres: one jsonb
// table holding every entity type's documents, with the embedded-identity
// filter expressed as jsonb operators.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/store"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store persists documents in a single jsonb table
type Store struct {
	pool  *pgxpool.Pool
	table string
	log   *logger.Logger
}

// New creates a Postgres-backed store writing to the given table
func New(pool *pgxpool.Pool, table string, log *logger.Logger) (*Store, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &Store{
		pool:  pool,
		table: table,
		log:   log,
	}, nil
}

// Migrate creates the documents table and its jsonb index
func (s *Store) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			entity_type text NOT NULL,
			id          text NOT NULL,
			doc         jsonb NOT NULL,
			PRIMARY KEY (entity_type, id)
		)
	`, s.table)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_doc_idx ON %s USING gin (doc jsonb_path_ops)`,
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("failed to index %s: %w", s.table, err)
	}

	s.log.Info("document store migrated", "table", s.table)
	return nil
}

// Get loads one instance by id
func (s *Store) Get(ctx context.Context, t *entity.Type, id string) (*entity.Instance, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE entity_type = $1 AND id = $2`, s.table)

	var doc []byte
	err := s.pool.QueryRow(ctx, query, t.Qualified(), id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s(%s)", store.ErrNotFound, t.Qualified(), id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := unmarshalDoc(doc)
	if err != nil {
		return nil, err
	}
	return &entity.Instance{Type: t, ID: id, Fields: fields}, nil
}

// Save upserts an instance. The xmax trick reports whether the row was
// freshly inserted.
func (s *Store) Save(ctx context.Context, inst *entity.Instance) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (entity_type, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, id) DO UPDATE SET doc = EXCLUDED.doc
		RETURNING (xmax = 0)
	`, s.table)

	doc, err := json.Marshal(inst.Fields)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document: %w", err)
	}

	var created bool
	if err := s.pool.QueryRow(ctx, query, inst.Type.Qualified(), inst.ID, doc).Scan(&created); err != nil {
		return false, fmt.Errorf("failed to save document: %w", err)
	}
	return created, nil
}

// Delete removes an instance
func (s *Store) Delete(ctx context.Context, inst *entity.Instance) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE entity_type = $1 AND id = $2`, s.table)

	tag, err := s.pool.Exec(ctx, query, inst.Type.Qualified(), inst.ID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, inst)
	}
	return nil
}

// FindByEmbeddedID finds documents embedding the given identity in the
// named field: as the field's own id (scalar embed), as a list member's
// id, or as a set key.
func (s *Store) FindByEmbeddedID(ctx context.Context, t *entity.Type, field, id string) (store.Iterator, error) {
	query := fmt.Sprintf(`
		SELECT id, doc FROM %s
		WHERE entity_type = $1
		  AND (
			doc->($2::text)->>'id' = $3::text
			OR doc->($2::text) @> jsonb_build_array(jsonb_build_object('id', $3::text))
			OR jsonb_typeof(doc->($2::text)->($3::text)) = 'object'
		  )
	`, s.table)

	rows, err := s.pool.Query(ctx, query, t.Qualified(), field, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedded id: %w", err)
	}
	return &rowIterator{rows: rows, typ: t}, nil
}

// rowIterator streams matching documents off an open pgx result set
type rowIterator struct {
	rows pgx.Rows
	typ  *entity.Type
}

func (it *rowIterator) Next(ctx context.Context) (*entity.Instance, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}
		return nil, store.ErrIteratorDone
	}

	var (
		id  string
		doc []byte
	)
	if err := it.rows.Scan(&id, &doc); err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	fields, err := unmarshalDoc(doc)
	if err != nil {
		return nil, err
	}
	return &entity.Instance{Type: it.typ, ID: id, Fields: fields}, nil
}

func (it *rowIterator) Stop() {
	it.rows.Close()
}

func unmarshalDoc(doc []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return fields, nil
}
