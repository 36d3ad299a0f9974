package cms

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ReferencingCollections are scanned for media references. The media
// collection itself is never scanned.
var ReferencingCollections = []string{
	CollectionServices,
	CollectionTestimonials,
	CollectionJobs,
	CollectionTeam,
	CollectionBlog,
}

// directReferenceFields hold a media id, or an array of media ids.
var directReferenceFields = []string{"clientImage", "photo", "featuredImage", "image", "thumbnail"}

// textReferenceFields are free text that may embed a media id anywhere.
// Matching is a plain substring test, so an id that happens to occur inside
// unrelated text is reported too.
var textReferenceFields = []string{"description", "content", "reviewText", "bio"}

// MediaReference identifies one field of one record that points at a media asset.
type MediaReference struct {
	Collection string `json:"collection"`
	ItemID     string `json:"itemId"`
	Field      string `json:"field"`
}

// MediaMetadata is an asset together with everything that points at it.
type MediaMetadata struct {
	Asset      Item             `json:"asset"`
	References []MediaReference `json:"references"`
	UsageCount int              `json:"usageCount"`
}

// DeleteCheck reports whether an asset can be deleted.
type DeleteCheck struct {
	CanDelete      bool `json:"canDelete"`
	ReferenceCount int  `json:"referenceCount"`
}

// ReferenceTracker computes media references by scanning records. It owns no
// data: references are recomputed on every call.
type ReferenceTracker struct {
	records  RecordStore
	fallback RecordStore
	media    MediaStore
	logger   Logger
}

var _ ReferenceFinder = (*ReferenceTracker)(nil)

// NewReferenceTracker creates a tracker reading records from records. When a
// collection is rejected with ErrUnsupportedCollection, fallback (if non-nil)
// is used for it instead. media performs the actual deletes.
func NewReferenceTracker(records, fallback RecordStore, media MediaStore, logger Logger) *ReferenceTracker {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ReferenceTracker{
		records:  records,
		fallback: fallback,
		media:    media,
		logger:   logger,
	}
}

// FindReferences returns one entry per (record, field) pointing at mediaID.
func (t *ReferenceTracker) FindReferences(ctx context.Context, mediaID string) ([]MediaReference, error) {
	if err := ValidateName("media id", mediaID); err != nil {
		return nil, fmt.Errorf("finding references: %w", err)
	}

	refs := []MediaReference{}
	for _, collection := range ReferencingCollections {
		items, err := t.list(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("scanning %s for media %s: %w", collection, mediaID, err)
		}
		for _, item := range items {
			for _, field := range referencingFields(item, mediaID) {
				refs = append(refs, MediaReference{
					Collection: collection,
					ItemID:     item.ID(),
					Field:      field,
				})
			}
		}
	}
	return refs, nil
}

// GetMetadata returns the asset and its references. Asset is nil when the
// media record does not exist.
func (t *ReferenceTracker) GetMetadata(ctx context.Context, mediaID string) (*MediaMetadata, error) {
	asset, err := t.read(ctx, CollectionMedia, mediaID)
	if err != nil {
		return nil, fmt.Errorf("reading media %s: %w", mediaID, err)
	}
	refs, err := t.FindReferences(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return &MediaMetadata{
		Asset:      asset,
		References: refs,
		UsageCount: len(refs),
	}, nil
}

// CanDelete reports whether mediaID has no references.
func (t *ReferenceTracker) CanDelete(ctx context.Context, mediaID string) (*DeleteCheck, error) {
	refs, err := t.FindReferences(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return &DeleteCheck{CanDelete: len(refs) == 0, ReferenceCount: len(refs)}, nil
}

// UpdateReferences rewrites every reference to oldID so it points at newID.
// Exact values are replaced, arrays are mapped element-wise, and free text
// has every occurrence of oldID replaced. Running it again once no
// references remain is a no-op.
func (t *ReferenceTracker) UpdateReferences(ctx context.Context, oldID, newID string) error {
	if err := ValidateName("new media id", newID); err != nil {
		return fmt.Errorf("updating references: %w", err)
	}
	refs, err := t.FindReferences(ctx, oldID)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		item, err := t.read(ctx, ref.Collection, ref.ItemID)
		if err != nil {
			return fmt.Errorf("re-reading %s/%s: %w", ref.Collection, ref.ItemID, err)
		}
		if item == nil {
			// Deleted between the scan and now; nothing left to repoint.
			continue
		}

		value, changed := rewriteField(item[ref.Field], ref.Field, oldID, newID)
		if !changed {
			continue
		}
		if _, err := t.update(ctx, ref.Collection, ref.ItemID, Item{ref.Field: value}); err != nil {
			return fmt.Errorf("repointing %s/%s.%s: %w", ref.Collection, ref.ItemID, ref.Field, err)
		}
		t.logger.Info("media reference updated",
			"collection", ref.Collection, "id", ref.ItemID, "field", ref.Field, "from", oldID, "to", newID)
	}
	return nil
}

// DeleteWithReferenceCheck deletes mediaID only if nothing references it.
// Returns false, without error, when the asset is referenced or missing.
func (t *ReferenceTracker) DeleteWithReferenceCheck(ctx context.Context, mediaID string) (bool, error) {
	refs, err := t.FindReferences(ctx, mediaID)
	if err != nil {
		return false, err
	}
	if len(refs) > 0 {
		t.logger.Warn("media referenced, not deleted", "id", mediaID, "references", len(refs))
		return false, nil
	}
	return t.media.DeleteMedia(ctx, mediaID)
}

// FindOrphans returns the media assets nothing references.
func (t *ReferenceTracker) FindOrphans(ctx context.Context) ([]Item, error) {
	assets, err := t.list(ctx, CollectionMedia)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}

	orphans := []Item{}
	for _, asset := range assets {
		refs, err := t.FindReferences(ctx, asset.ID())
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			orphans = append(orphans, asset)
		}
	}
	return orphans, nil
}

func (t *ReferenceTracker) list(ctx context.Context, collection string) ([]Item, error) {
	items, err := t.records.List(ctx, collection, nil)
	if errors.Is(err, ErrUnsupportedCollection) && t.fallback != nil {
		return t.fallback.List(ctx, collection, nil)
	}
	return items, err
}

func (t *ReferenceTracker) read(ctx context.Context, collection, id string) (Item, error) {
	item, err := t.records.Read(ctx, collection, id)
	if errors.Is(err, ErrUnsupportedCollection) && t.fallback != nil {
		return t.fallback.Read(ctx, collection, id)
	}
	return item, err
}

func (t *ReferenceTracker) update(ctx context.Context, collection, id string, partial Item) (Item, error) {
	item, err := t.records.Update(ctx, collection, id, partial)
	if errors.Is(err, ErrUnsupportedCollection) && t.fallback != nil {
		return t.fallback.Update(ctx, collection, id, partial)
	}
	return item, err
}

// referencingFields returns the fields of item that point at mediaID.
func referencingFields(item Item, mediaID string) []string {
	var fields []string
	for _, field := range directReferenceFields {
		if directMatch(item[field], mediaID) {
			fields = append(fields, field)
		}
	}
	for _, field := range textReferenceFields {
		if s, ok := item[field].(string); ok && strings.Contains(s, mediaID) {
			fields = append(fields, field)
		}
	}
	return fields
}

func directMatch(v any, mediaID string) bool {
	switch val := v.(type) {
	case string:
		return val == mediaID
	case []any:
		for _, e := range val {
			if s, ok := e.(string); ok && s == mediaID {
				return true
			}
		}
	case []string:
		for _, s := range val {
			if s == mediaID {
				return true
			}
		}
	}
	return false
}

// rewriteField returns the repointed value of field and whether it changed.
func rewriteField(v any, field, oldID, newID string) (any, bool) {
	isText := false
	for _, f := range textReferenceFields {
		if f == field {
			isText = true
			break
		}
	}

	switch val := v.(type) {
	case string:
		if val == oldID {
			return newID, true
		}
		if isText && strings.Contains(val, oldID) {
			return strings.ReplaceAll(val, oldID, newID), true
		}
	case []any:
		out := make([]any, len(val))
		changed := false
		for i, e := range val {
			out[i] = e
			if s, ok := e.(string); ok && s == oldID {
				out[i] = newID
				changed = true
			}
		}
		return out, changed
	case []string:
		out := make([]string, len(val))
		changed := false
		for i, s := range val {
			out[i] = s
			if s == oldID {
				out[i] = newID
				changed = true
			}
		}
		return out, changed
	}
	return v, false
}
