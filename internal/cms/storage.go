package cms

import (
	"context"
	"io"
	"sync"
)

// Storage is the facade the rest of the application talks to. It holds the
// active record backend and forwards every record call to it. Media calls
// always go to the local backend, since the remote backend never stores
// binaries.
type Storage struct {
	mu     sync.RWMutex
	active RecordStore
	cloud  bool

	local    LocalBackend
	remote   RemoteBackend
	migrator *Migrator
	tracker  *ReferenceTracker
	logger   Logger
}

var _ Backend = (*Storage)(nil)

// StorageOptions configures NewStorage.
type StorageOptions struct {
	Local LocalBackend
	// Remote may be nil when no remote backend is configured.
	Remote RemoteBackend
	// CloudRequested activates the remote backend at startup if it initializes.
	CloudRequested bool
	Clock          Clock
	Logger         Logger
}

// NewStorage selects the active backend once. When cloud mode is requested
// and the remote backend initializes, it becomes active and the one-time
// migration runs; any failure falls back to the local backend.
func NewStorage(ctx context.Context, opts StorageOptions) *Storage {
	logger := opts.Logger
	if logger == nil {
		logger = NewNopLogger()
	}

	s := &Storage{
		active: opts.Local,
		local:  opts.Local,
		remote: opts.Remote,
		logger: logger,
	}
	if opts.Remote != nil {
		s.migrator = NewMigrator(opts.Local, opts.Remote, opts.Clock, logger)
	}

	s.tracker = NewReferenceTracker(s, opts.Local, opts.Local, logger)
	opts.Local.SetReferenceFinder(s.tracker)

	if opts.CloudRequested {
		if !s.SwitchToCloudMode(ctx) {
			logger.Warn("remote storage unavailable, using local storage")
		}
	}
	return s
}

// IsCloudMode reports whether the remote backend is active.
func (s *Storage) IsCloudMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloud
}

// SwitchToCloudMode initializes the remote backend and, on success, makes it
// active and runs the one-time migration. Migration failures are logged and
// do not undo the switch. Returns whether remote mode is now active.
func (s *Storage) SwitchToCloudMode(ctx context.Context) bool {
	if s.remote == nil {
		s.logger.Warn("cloud mode requested but no remote backend configured")
		return false
	}
	if err := s.remote.Initialize(ctx); err != nil {
		s.logger.Warn("remote storage initialization failed", "error", err)
		return false
	}

	s.mu.Lock()
	s.active = s.remote
	s.cloud = true
	s.mu.Unlock()
	s.logger.Info("switched to cloud storage")

	if _, err := s.migrator.Run(ctx); err != nil {
		s.logger.Error("migration to remote storage failed", "error", err)
	}
	return true
}

// SwitchToLocalMode makes the local backend active. No data is moved.
func (s *Storage) SwitchToLocalMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = s.local
	s.cloud = false
	s.logger.Info("switched to local storage")
}

// References returns the media reference tracker scanning through this facade.
func (s *Storage) References() *ReferenceTracker {
	return s.tracker
}

func (s *Storage) backend() RecordStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Storage) Create(ctx context.Context, collection string, item Item) (Item, error) {
	return s.backend().Create(ctx, collection, item)
}

func (s *Storage) Read(ctx context.Context, collection, id string) (Item, error) {
	return s.backend().Read(ctx, collection, id)
}

func (s *Storage) Update(ctx context.Context, collection, id string, partial Item) (Item, error) {
	return s.backend().Update(ctx, collection, id, partial)
}

func (s *Storage) Delete(ctx context.Context, collection, id string) (bool, error) {
	return s.backend().Delete(ctx, collection, id)
}

func (s *Storage) List(ctx context.Context, collection string, filters *Filters) ([]Item, error) {
	return s.backend().List(ctx, collection, filters)
}

func (s *Storage) Export(ctx context.Context) (*ExportPackage, error) {
	return s.backend().Export(ctx)
}

func (s *Storage) Import(ctx context.Context, pkg *ExportPackage) (*ImportResult, error) {
	return s.backend().Import(ctx, pkg)
}

func (s *Storage) Metadata(ctx context.Context, collection string) (*CollectionMetadata, error) {
	return s.backend().Metadata(ctx, collection)
}

func (s *Storage) Clear(ctx context.Context, collection string) error {
	return s.backend().Clear(ctx, collection)
}

func (s *Storage) UploadMedia(ctx context.Context, file *MediaFile) (Item, error) {
	return s.local.UploadMedia(ctx, file)
}

func (s *Storage) DeleteMedia(ctx context.Context, id string) (bool, error) {
	return s.local.DeleteMedia(ctx, id)
}

func (s *Storage) ReplaceMedia(ctx context.Context, oldID string, file *MediaFile) (Item, error) {
	return s.local.ReplaceMedia(ctx, oldID, file)
}

// ReadMediaContent writes the binary of a media asset to w.
func (s *Storage) ReadMediaContent(ctx context.Context, id string, w io.Writer) error {
	return s.local.ReadMediaContent(ctx, id, w)
}
