package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectID is a 24-character lower-case hex identifier. Product, category,
// brand and every other catalog reference uses this shape.
type ObjectID string

// NewObjectID generates a fresh identifier.
func NewObjectID() ObjectID {
	return ObjectID(primitive.NewObjectID().Hex())
}

// ParseObjectID validates and normalizes a hex identifier.
func ParseObjectID(value string) (ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid object id %q: %w", value, err)
	}
	return ObjectID(oid.Hex()), nil
}

// IsObjectIDHex reports whether value is a well-formed identifier.
func IsObjectIDHex(value string) bool {
	_, err := primitive.ObjectIDFromHex(value)
	return err == nil
}

func (id ObjectID) String() string {
	return string(id)
}

func (id ObjectID) IsZero() bool {
	return id == ""
}

// Timestamp returns the creation second embedded in the identifier.
func (id ObjectID) Timestamp() time.Time {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return time.Time{}
	}
	return oid.Timestamp()
}

// Value implements driver.Valuer.
func (id ObjectID) Value() (driver.Value, error) {
	if id == "" {
		return nil, nil
	}
	return string(id), nil
}

// Scan implements sql.Scanner.
func (id *ObjectID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = ""
		return nil
	case string:
		*id = ObjectID(strings.TrimSpace(v))
		return nil
	case []byte:
		*id = ObjectID(strings.TrimSpace(string(v)))
		return nil
	}
	return fmt.Errorf("object id: unsupported scan type %T", src)
}

// UnmarshalJSON rejects malformed identifiers at decode time.
func (id *ObjectID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	if raw == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseObjectID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
