package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
	"github.com/roach88/artifacts/internal/querysql"
)

// Retrieve reads one record. With no fields every attribute is returned;
// otherwise only the named attributes that are present.
//
// Returns a *DataAccessError wrapping ErrNotFound if the record does not exist.
func (s *Store) Retrieve(ctx context.Context, recordType, id string, fields ...string) (ir.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+querysql.Columns+" FROM "+querysql.Table+" WHERE type = ? AND id = ?",
		recordType, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, dataErr("retrieve", recordType, id, ErrNotFound)
	}
	if err != nil {
		return ir.Record{}, dataErr("retrieve", recordType, id, err)
	}
	if len(fields) > 0 {
		rec.Attributes = rec.Attributes.Project(fields...)
	}
	return rec, nil
}

// Query returns the records matching q in deterministic order.
func (s *Store) Query(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, dataErr("query", q.Type, "", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, dataErr("query", q.Type, "", err)
	}
	defer rows.Close()

	var out []ir.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dataErr("query", q.Type, "", err)
		}
		if len(q.Fields) > 0 {
			rec.Attributes = rec.Attributes.Project(q.Fields...)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dataErr("query", q.Type, "", err)
	}
	return out, nil
}

// ResolveOptionLabel returns the label configured for an option code.
// Returns a *MetadataError when no label exists.
func (s *Store) ResolveOptionLabel(ctx context.Context, recordType, attribute string, code int64) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx, `
		SELECT label FROM option_labels
		WHERE record_type = ? AND attribute = ? AND code = ?
	`, recordType, attribute, code).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &MetadataError{RecordType: recordType, Attribute: attribute, Code: code}
	}
	if err != nil {
		return "", dataErr("label", recordType, "", err)
	}
	return label, nil
}

// ListOptionLabels returns every configured label ordered by type, attribute
// and code.
func (s *Store) ListOptionLabels(ctx context.Context) ([]ir.OptionLabel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_type, attribute, code, label FROM option_labels
		ORDER BY record_type COLLATE BINARY, attribute COLLATE BINARY, code
	`)
	if err != nil {
		return nil, dataErr("label", "", "", err)
	}
	defer rows.Close()

	var out []ir.OptionLabel
	for rows.Next() {
		var l ir.OptionLabel
		if err := rows.Scan(&l.RecordType, &l.Attribute, &l.Code, &l.Label); err != nil {
			return nil, dataErr("label", "", "", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dataErr("label", "", "", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ir.Record, error) {
	var (
		rec       ir.Record
		createdOn int64
		attrsJSON string
	)
	if err := row.Scan(&rec.Type, &rec.ID, &createdOn, &attrsJSON); err != nil {
		return ir.Record{}, err
	}
	rec.CreatedOn = time.Unix(0, createdOn).UTC()

	var attrs ir.Attributes
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return ir.Record{}, fmt.Errorf("decode attributes of %s/%s: %w", rec.Type, rec.ID, err)
	}
	rec.Attributes = attrs
	return rec, nil
}
