package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SQLite stores each document as one row with its fields serialized to a
// JSON column. Increments run inside a transaction, so they are atomic with
// respect to other writers on the same connection pool.
type SQLite struct {
	db *sql.DB
}

// NewSQLite reuses an already-open database handle; the documents table is
// created on first use.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents(
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		fields TEXT NOT NULL,
		PRIMARY KEY(collection, id)
	);`)
	if err != nil {
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context, collection, orderBy string, desc bool) ([]Document, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q := fmt.Sprintf(`SELECT id, fields FROM documents WHERE collection = ?
		ORDER BY json_extract(fields, ?) %s`, dir)
	rows, err := s.db.QueryContext(ctx, q, collection, "$."+orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *SQLite) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, id, fields) VALUES(?,?,?)`,
		collection, id, string(raw))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, ops map[string]FieldOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return err
	}
	applyOps(fields, ops)

	out, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = ? WHERE collection = ? AND id = ?`,
		string(out), collection, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeFields(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document: %w", err)
	}
	return fields, nil
}
