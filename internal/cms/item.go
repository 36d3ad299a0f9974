package cms

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Base field names every stored record carries.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldCreatedBy = "createdBy"
	FieldStatus    = "status"
	FieldCategory  = "category"
)

// Well-known collection names.
const (
	CollectionJobs         = "jobs"
	CollectionBlog         = "blog"
	CollectionServices     = "services"
	CollectionTestimonials = "testimonials"
	CollectionTeam         = "team"
	CollectionMedia        = "media"
)

// KnownCollections are the collections included in every export.
var KnownCollections = []string{
	CollectionJobs,
	CollectionBlog,
	CollectionServices,
	CollectionTestimonials,
	CollectionTeam,
	CollectionMedia,
}

// Item is a stored record: an opaque mapping of fields to JSON values with
// the base fields (id, createdAt, updatedAt, createdBy, status) guaranteed
// once it has passed through a store.
type Item map[string]any

// ID returns the record id, or "" if unset.
func (it Item) ID() string {
	return it.String(FieldID)
}

// Status returns the record status.
func (it Item) Status() Status {
	return Status(it.String(FieldStatus))
}

// String returns a field's value if it holds a string.
func (it Item) String(field string) string {
	s, _ := it[field].(string)
	return s
}

// CreatedAt returns the parsed creation instant, or the zero time.
func (it Item) CreatedAt() time.Time {
	return it.timeField(FieldCreatedAt)
}

// UpdatedAt returns the parsed modification instant, or the zero time.
func (it Item) UpdatedAt() time.Time {
	return it.timeField(FieldUpdatedAt)
}

func (it Item) timeField(field string) time.Time {
	t, err := ParseTime(it.String(field))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy of the record.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	return cloneValue(map[string]any(it)).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Item:
		return Item(cloneValue(map[string]any(val)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

// Normalize round-trips the record through JSON so that the returned value
// has exactly the shape a later read will produce. Values that cannot be
// serialized (cycles, channels, functions, NaN) fail with ErrSerialization.
func Normalize(it Item) (Item, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}

// ToItem converts any JSON-encodable value, typically an entity struct, into an Item.
func ToItem(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding %T as record: %v", ErrSerialization, v, err)
	}
	return out, nil
}

// FromItem decodes a record into a typed value.
func FromItem[T any](it Item) (T, error) {
	var out T
	data, err := json.Marshal(it)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding record %s as %T: %w", it.ID(), out, err)
	}
	return out, nil
}

// ValidateName rejects empty or whitespace-only collection names and ids.
func ValidateName(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty: %w", kind, ErrInvalidArgument)
	}
	return nil
}
