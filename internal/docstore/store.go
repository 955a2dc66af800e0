package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/ironlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrNotFound = errors.New("document not found")

// Store is a per-user document store on top of a postgres JSONB table.
// Every document lives in a (user id, collection, document id) cell, the
// document body is schema-less JSON. There are no cross-user operations.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
	}
}

// EnsureSchema creates the backing table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_document (
			user_id    TEXT  NOT NULL,
			collection TEXT  NOT NULL,
			doc_id     TEXT  NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (user_id, collection, doc_id)
		);`,
	)
	if err != nil {
		return fmt.Errorf("create user_document table: %w", err)
	}
	return nil
}

// Collection addresses one sub-collection of one user's partition.
func (s *Store) Collection(userID, name string) *Collection {
	return &Collection{
		db:     s.db,
		userID: userID,
		name:   name,
	}
}

type Document struct {
	ID   string
	Data []byte
}

// To unmarshals the document body into v.
func (d Document) To(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("unmarshal document %s: %w", d.ID, err)
	}
	return nil
}

type Collection struct {
	db     *pgxpool.Pool
	userID string
	name   string
}

func (c *Collection) Get(ctx context.Context, id string) (_ *Document, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", c.name))
	span.SetAttributes(attribute.String("doc_id", id))

	rows, err := c.db.Query(
		ctx,
		`SELECT doc FROM user_document WHERE user_id = $1 AND collection = $2 AND doc_id = $3;`,
		c.userID, c.name, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrNotFound
	}

	var doc []byte
	if err := rows.Scan(&doc); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	return &Document{ID: id, Data: doc}, nil
}

// Set writes the whole document, overwriting any previous version.
func (c *Collection) Set(ctx context.Context, id string, doc any) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", c.name))
	span.SetAttributes(attribute.String("doc_id", id))

	docJson, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = c.db.Exec(
		ctx,
		`INSERT INTO user_document (user_id, collection, doc_id, doc)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET doc = EXCLUDED.doc;`,
		c.userID, c.name, id, docJson,
	)
	return err
}

// Update merges the given fields into an existing document.
func (c *Collection) Update(ctx context.Context, id string, fields map[string]any) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", c.name))
	span.SetAttributes(attribute.String("doc_id", id))

	if len(fields) == 0 {
		return errors.New("no fields to update")
	}

	fieldsJson, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal update fields: %w", err)
	}

	tag, err := c.db.Exec(
		ctx,
		`UPDATE user_document SET doc = doc || $4::jsonb
			WHERE user_id = $1 AND collection = $2 AND doc_id = $3;`,
		c.userID, c.name, id, fieldsJson,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", c.name))
	span.SetAttributes(attribute.String("doc_id", id))

	tag, err := c.db.Exec(
		ctx,
		`DELETE FROM user_document WHERE user_id = $1 AND collection = $2 AND doc_id = $3;`,
		c.userID, c.name, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
