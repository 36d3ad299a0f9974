package cms

import (
	"context"
	"io"
	"time"
)

// RecordStore is the CRUD, export and import contract both backends implement.
// read and delete treat a missing record as a normal result (nil, false);
// update treats it as ErrNotFound.
type RecordStore interface {
	// Create assigns id, createdAt and updatedAt and stores the record.
	// Any id or timestamps on item are ignored.
	Create(ctx context.Context, collection string, item Item) (Item, error)

	// Read returns the record, or nil if it does not exist.
	Read(ctx context.Context, collection, id string) (Item, error)

	// Update merges partial over the stored record. The id can not be changed
	// and updatedAt always advances.
	Update(ctx context.Context, collection, id string, partial Item) (Item, error)

	// Delete removes the record. Returns false if it did not exist.
	Delete(ctx context.Context, collection, id string) (bool, error)

	// List returns the records of a collection matching filters (nil for all).
	List(ctx context.Context, collection string, filters *Filters) ([]Item, error)

	// Export snapshots every collection the store manages.
	Export(ctx context.Context) (*ExportPackage, error)

	// Import replaces each collection present in pkg with the package's records.
	// Failures are reported per collection in the result, not as an error.
	Import(ctx context.Context, pkg *ExportPackage) (*ImportResult, error)

	// Metadata returns the bookkeeping for a collection.
	Metadata(ctx context.Context, collection string) (*CollectionMetadata, error)

	// Clear removes every record of a collection.
	Clear(ctx context.Context, collection string) error
}

// MediaFile is an upload request.
type MediaFile struct {
	Name       string
	MimeType   string
	Data       []byte
	UploadedBy string
	Tags       []string
}

// Size returns the upload size in bytes.
func (f *MediaFile) Size() int64 { return int64(len(f.Data)) }

// MediaStore manages media assets and their binaries.
type MediaStore interface {
	// UploadMedia validates and stores file, returning the new media record.
	UploadMedia(ctx context.Context, file *MediaFile) (Item, error)

	// DeleteMedia removes an asset. Fails with ErrReferenced while any
	// record still points at it. Returns false if it did not exist.
	DeleteMedia(ctx context.Context, id string) (bool, error)

	// ReplaceMedia uploads file, repoints every reference from oldID to the
	// new asset and deletes the old asset.
	ReplaceMedia(ctx context.Context, oldID string, file *MediaFile) (Item, error)
}

// Backend is a full storage backend.
type Backend interface {
	RecordStore
	MediaStore
}

// LocalBackend is the always-available backend. It owns media and the
// system configuration used to remember one-time migrations.
type LocalBackend interface {
	Backend

	// ReadMediaContent writes the binary of a media asset to w.
	ReadMediaContent(ctx context.Context, id string, w io.Writer) error

	// SetReferenceFinder replaces the finder consulted before media deletes.
	SetReferenceFinder(finder ReferenceFinder)

	// ConfigValue returns a system configuration value and whether it is set.
	ConfigValue(ctx context.Context, key string) (any, bool, error)

	// SetConfigValue stores a system configuration value.
	SetConfigValue(ctx context.Context, key string, value any) error
}

// RemoteBackend is a backend that must be initialized before use.
type RemoteBackend interface {
	Backend

	// Initialize validates configuration and connectivity. Fails with
	// ErrNotEnabled when remote mode is not configured and ErrConfig when the
	// connection parameters are malformed.
	Initialize(ctx context.Context) error

	// SupportedCollections lists the collections this backend accepts.
	SupportedCollections() []string

	// Close releases the connection.
	Close() error
}

// ReferenceFinder locates and rewrites media references.
type ReferenceFinder interface {
	FindReferences(ctx context.Context, mediaID string) ([]MediaReference, error)
	UpdateReferences(ctx context.Context, oldID, newID string) error
}

// KeyValueStore is the persistent substrate of the local backend.
type KeyValueStore interface {
	// Get returns the value for key, or nil if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the store.
	Close() error
}

// Vault stores media binaries.
// All operations use io.Reader/io.Writer so large files are streamed.
type Vault interface {
	// Put stores size bytes read from r under key, replacing any previous content.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get writes the content stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a resolvable location for key.
	URL(key string) string

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Change types published on realtime channels.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeImported = "imported"
)

// ChangeEvent describes a write made by a backend.
type ChangeEvent struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	ItemID     string    `json:"itemId,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier publishes change events to realtime subscribers.
type Notifier interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Close() error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, ChangeEvent) error { return nil }
func (NopNotifier) Close() error                               { return nil }

// Encryptor protects export archives written to disk.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
