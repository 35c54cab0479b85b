package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RawSnapshot holds an upstream payload verbatim in a JSONB column, keeping
// the exact upstream shape around for replay/audit without modeling every
// field as a Go struct. The repositories in db/repository do not use it:
// they bind JSONB columns such as ocr_documents.raw_payload as []byte.
type RawSnapshot json.RawMessage

// Value implements driver.Valuer for pgx/database-sql JSONB binding.
func (r RawSnapshot) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return []byte(r), nil
}

// Scan implements sql.Scanner for reading a JSONB column back out.
func (r *RawSnapshot) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*r = RawSnapshot(append([]byte(nil), v...))
		return nil
	case string:
		*r = RawSnapshot(v)
		return nil
	default:
		return fmt.Errorf("unsupported type for RawSnapshot.Scan: %T", src)
	}
}

// MarshalJSON passes the raw bytes through unchanged.
func (r RawSnapshot) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON stores the raw bytes unchanged.
func (r *RawSnapshot) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}
