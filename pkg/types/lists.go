package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ObjectIDList persists a set of identifiers as a JSON array column.
type ObjectIDList []ObjectID

// Contains reports whether id is present in the list.
func (l ObjectIDList) Contains(id ObjectID) bool {
	for _, candidate := range l {
		if candidate == id {
			return true
		}
	}
	return false
}

// Strings returns the identifiers as plain strings.
func (l ObjectIDList) Strings() []string {
	out := make([]string, 0, len(l))
	for _, id := range l {
		out = append(out, id.String())
	}
	return out
}

func (l ObjectIDList) Value() (driver.Value, error) {
	return marshalJSONColumn([]ObjectID(l))
}

func (l *ObjectIDList) Scan(src any) error {
	var out []ObjectID
	if err := unmarshalJSONColumn(src, &out); err != nil {
		return fmt.Errorf("object id list: %w", err)
	}
	*l = out
	return nil
}

// StringList persists a list of strings as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return marshalJSONColumn([]string(l))
}

func (l *StringList) Scan(src any) error {
	var out []string
	if err := unmarshalJSONColumn(src, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}

func marshalJSONColumn(value any) (driver.Value, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func unmarshalJSONColumn(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
