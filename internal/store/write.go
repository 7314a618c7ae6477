package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// Create inserts a new record and returns its id. An empty rec.ID is filled
// from the store's IDGenerator and a zero CreatedOn from its Clock.
func (s *Store) Create(ctx context.Context, rec ir.Record) (string, error) {
	if err := checkIdents(rec); err != nil {
		return "", dataErr("create", rec.Type, rec.ID, err)
	}
	if rec.ID == "" {
		rec.ID = s.ids.Generate()
	}
	if rec.CreatedOn.IsZero() {
		rec.CreatedOn = s.clock.Now()
	}

	attrsJSON, err := marshalAttributes(rec.Attributes)
	if err != nil {
		return "", dataErr("create", rec.Type, rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (type, id, created_on, attributes)
		VALUES (?, ?, ?, ?)
	`, rec.Type, rec.ID, rec.CreatedOn.UnixNano(), attrsJSON)
	if err != nil {
		return "", dataErr("create", rec.Type, rec.ID, err)
	}
	return rec.ID, nil
}

// Put inserts rec or replaces the attributes of an existing record with the
// same type and id. created_on of an existing record is kept.
// Used to seed rules and fixtures with known ids.
func (s *Store) Put(ctx context.Context, rec ir.Record) error {
	if err := checkIdents(rec); err != nil {
		return dataErr("put", rec.Type, rec.ID, err)
	}
	if rec.ID == "" {
		return dataErr("put", rec.Type, "", fmt.Errorf("id is required"))
	}
	if rec.CreatedOn.IsZero() {
		rec.CreatedOn = s.clock.Now()
	}

	attrsJSON, err := marshalAttributes(rec.Attributes)
	if err != nil {
		return dataErr("put", rec.Type, rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (type, id, created_on, attributes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET attributes = excluded.attributes
	`, rec.Type, rec.ID, rec.CreatedOn.UnixNano(), attrsJSON)
	if err != nil {
		return dataErr("put", rec.Type, rec.ID, err)
	}
	return nil
}

// Update merges the attributes of partial into the stored record.
// Attributes not named in partial are left untouched.
func (s *Store) Update(ctx context.Context, partial ir.Record) error {
	current, err := s.Retrieve(ctx, partial.Type, partial.ID)
	if err != nil {
		return dataErr("update", partial.Type, partial.ID, unwrapData(err))
	}

	attrsJSON, err := marshalAttributes(current.Attributes.Merge(partial.Attributes))
	if err != nil {
		return dataErr("update", partial.Type, partial.ID, err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE records SET attributes = ? WHERE type = ? AND id = ?",
		attrsJSON, partial.Type, partial.ID); err != nil {
		return dataErr("update", partial.Type, partial.ID, err)
	}
	return nil
}

// Delete removes a record.
// Returns a *DataAccessError wrapping ErrNotFound if nothing was deleted.
func (s *Store) Delete(ctx context.Context, recordType, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE type = ? AND id = ?", recordType, id)
	if err != nil {
		return dataErr("delete", recordType, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dataErr("delete", recordType, id, err)
	}
	if n == 0 {
		return dataErr("delete", recordType, id, ErrNotFound)
	}
	return nil
}

// ExecuteBatch runs requests in order.
//
// Each request is applied on its own; a failed request never rolls back the
// ones before it. With continueOnError the remaining requests still run and
// every failure is reported in BatchResult.Errors by index. Without it the
// batch stops at the first failure, which is also returned as the error.
//
// The returned error is non-nil only when the batch as a whole failed.
func (s *Store) ExecuteBatch(ctx context.Context, reqs []ir.Request, continueOnError bool) (ir.BatchResult, error) {
	result := ir.BatchResult{Errors: make(map[int]error)}
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return result, dataErr("batch", "", "", err)
		}

		var err error
		switch req.Op {
		case ir.OpCreate:
			_, err = s.Create(ctx, req.Record)
		case ir.OpUpdate:
			err = s.Update(ctx, req.Record)
		case ir.OpDelete:
			err = s.Delete(ctx, req.Record.Type, req.Record.ID)
		default:
			err = fmt.Errorf("unknown request op %q", req.Op)
		}

		result.Executed++
		if err == nil {
			continue
		}
		result.Errors[i] = err
		if !continueOnError {
			return result, dataErr("batch", req.Record.Type, req.Record.ID, err)
		}
	}
	return result, nil
}

// PutOptionLabel inserts or replaces the label of one option code.
func (s *Store) PutOptionLabel(ctx context.Context, l ir.OptionLabel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO option_labels (record_type, attribute, code, label)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(record_type, attribute, code) DO UPDATE SET label = excluded.label
	`, l.RecordType, l.Attribute, l.Code, l.Label)
	if err != nil {
		return dataErr("label", l.RecordType, "", err)
	}
	return nil
}

func marshalAttributes(attrs ir.Attributes) (string, error) {
	if attrs == nil {
		attrs = ir.Attributes{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

// checkIdents rejects type and attribute names that queries could not
// address.
func checkIdents(rec ir.Record) error {
	if !queryir.ValidIdent(rec.Type) {
		return fmt.Errorf("invalid record type %q", rec.Type)
	}
	for name := range rec.Attributes {
		if !queryir.ValidIdent(name) {
			return fmt.Errorf("invalid attribute name %q", name)
		}
	}
	return nil
}

// unwrapData strips the DataAccessError layer so nested store calls report
// the outer operation.
func unwrapData(err error) error {
	var de *DataAccessError
	if errors.As(err, &de) {
		return de.Err
	}
	return err
}
