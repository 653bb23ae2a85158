package model

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}

// ToJSONB converts any JSON-serializable value into a JSONB map
func ToJSONB(v interface{}) JSONB {
	raw, err := json.Marshal(v)
	if err != nil {
		return JSONB{"marshal_error": err.Error()}
	}
	out := make(JSONB)
	if err := json.Unmarshal(raw, &out); err != nil {
		return JSONB{"value": string(raw)}
	}
	return out
}
