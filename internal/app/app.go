// Package app wires the storage layer together from configuration and
// exposes the operations the CLI runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"cms-go/internal/cms"
	"cms-go/internal/config"
	"cms-go/internal/database"
	"cms-go/internal/database/migrations"
	"cms-go/internal/local"
	"cms-go/internal/notify"
	"cms-go/internal/remote"
	"cms-go/internal/vault"
)

// ModeConfigKey remembers, in the local system config, the storage mode the
// operator last chose.
const ModeConfigKey = "storage.mode"

// Storage modes.
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// ErrRealtimeDisabled is returned by Watch when realtime updates are off.
var ErrRealtimeDisabled = errors.New("realtime updates are not enabled")

// CMSApp is the application layer between the CLI and the storage facade.
// It constructs every dependency from config and releases them on Close.
type CMSApp struct {
	cfg      *config.Config
	clock    cms.Clock
	kv       *database.SQLiteKV
	vault    cms.Vault
	local    *local.Store
	remote   *remote.Store
	notifier cms.Notifier
	storage  *cms.Storage
	logger   cms.Logger
	op       *Operation
	logFile  *os.File

	// workFactor of encrypted exports; zero selects the age default.
	workFactor int
}

// NewCMSApp creates a fully wired CMSApp from the given config.
// operation names the CLI command being run. The caller must call Close.
func NewCMSApp(ctx context.Context, cfg *config.Config, operation string) (*CMSApp, error) {
	return newCMSApp(ctx, cfg, operation, cms.RealClock{}, slog.LevelInfo)
}

func newCMSApp(ctx context.Context, cfg *config.Config, operation string, clock cms.Clock, level slog.Leveler) (*CMSApp, error) {
	op := NewOperation(operation, clock)
	l, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	a := &CMSApp{cfg: cfg, clock: clock, logger: logger, op: op, logFile: logFile}
	if err := a.wire(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	logger.Debug("operation started", "operation", operation)
	return a, nil
}

func (a *CMSApp) wire(ctx context.Context) error {
	kv, err := database.NewKVFromConfig(a.cfg.Local, a.clock)
	if err != nil {
		return fmt.Errorf("creating local database: %w", err)
	}
	a.kv = kv
	if err := kv.CheckMigrations(); err != nil {
		return fmt.Errorf("local database schema out of date: %w", err)
	}

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Media)
	if err != nil {
		return fmt.Errorf("creating media vault: %w", err)
	}
	a.vault = v

	n, err := notify.NewNotifierFromConfig(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	a.notifier = n

	a.local = local.NewStore(kv, v, local.Options{
		MaxStorageBytes: a.cfg.Local.MaxStorageBytes,
		MaxUploadBytes:  a.cfg.Local.MaxUploadBytes,
		Clock:           a.clock,
		Logger:          a.logger,
	})
	a.remote = remote.NewStore(remote.Options{
		URL:                a.cfg.Remote.URL,
		AccessKey:          a.cfg.Remote.AccessKey,
		Offline:            a.cfg.Remote.Offline,
		Realtime:           a.cfg.Remote.Realtime,
		Notifier:           n,
		RetryAttempts:      a.cfg.Remote.RetryAttempts,
		RetryDelay:         a.cfg.Remote.RetryDelay(),
		MaxRecordBytes:     a.cfg.Remote.MaxRecordBytes,
		MaxCollectionBytes: a.cfg.Remote.MaxCollectionBytes,
		Clock:              a.clock,
		Logger:             a.logger,
	})

	cloud, err := a.cloudRequested(ctx)
	if err != nil {
		return err
	}
	a.storage = cms.NewStorage(ctx, cms.StorageOptions{
		Local:          a.local,
		Remote:         a.remote,
		CloudRequested: cloud,
		Clock:          a.clock,
		Logger:         a.logger,
	})
	return nil
}

// cloudRequested is true when remote storage is configured and the operator
// has not pinned local mode.
func (a *CMSApp) cloudRequested(ctx context.Context) (bool, error) {
	if !a.cfg.Remote.Enabled() {
		return false, nil
	}
	mode, ok, err := a.local.ConfigValue(ctx, ModeConfigKey)
	if err != nil {
		return false, fmt.Errorf("reading storage mode: %w", err)
	}
	return !ok || mode != ModeLocal, nil
}

// Storage returns the storage facade.
func (a *CMSApp) Storage() *cms.Storage { return a.storage }

// Operation returns the operation this app was created for.
func (a *CMSApp) Operation() *Operation { return a.op }

// Logger returns the application logger.
func (a *CMSApp) Logger() cms.Logger { return a.logger }

// SetMode switches the storage mode and remembers the choice.
func (a *CMSApp) SetMode(ctx context.Context, mode string) error {
	switch mode {
	case ModeCloud:
		if !a.storage.SwitchToCloudMode(ctx) {
			return fmt.Errorf("switching to cloud mode: %w", cms.ErrNotEnabled)
		}
	case ModeLocal:
		a.storage.SwitchToLocalMode()
	default:
		return fmt.Errorf("unknown storage mode %q: %w", mode, cms.ErrInvalidArgument)
	}
	if err := a.local.SetConfigValue(ctx, ModeConfigKey, mode); err != nil {
		return fmt.Errorf("saving storage mode: %w", err)
	}
	return nil
}

// Status describes the state of the storage layer.
type Status struct {
	Mode               string
	RemoteConfigured   bool
	MigrationCompleted bool
	Collections        []*cms.CollectionMetadata
	Usage              database.Usage
	Schema             migrations.Status
	MediaErr           error
}

// Status gathers per-collection metadata from the active backend, falling
// back to the local backend for collections the active one does not hold.
func (a *CMSApp) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Mode:             ModeLocal,
		RemoteConfigured: a.cfg.Remote.Enabled(),
	}
	if a.storage.IsCloudMode() {
		st.Mode = ModeCloud
	}

	done, _, err := a.local.ConfigValue(ctx, cms.MigrationConfigKey)
	if err != nil {
		return nil, fmt.Errorf("reading migration state: %w", err)
	}
	st.MigrationCompleted = done == true

	extra, err := a.local.Collections(ctx)
	if err != nil {
		return nil, err
	}
	names := slices.Clone(cms.KnownCollections)
	for _, c := range extra {
		if !slices.Contains(names, c) {
			names = append(names, c)
		}
	}

	for _, c := range names {
		md, err := a.storage.Metadata(ctx, c)
		if errors.Is(err, cms.ErrUnsupportedCollection) {
			md, err = a.local.Metadata(ctx, c)
		}
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", c, err)
		}
		st.Collections = append(st.Collections, md)
	}

	if st.Usage, err = a.kv.Usage(ctx); err != nil {
		return nil, err
	}
	if st.Schema, err = a.kv.MigrationStatus(); err != nil {
		return nil, err
	}
	st.MediaErr = a.vault.ValidateSetup(ctx)
	return st, nil
}

// MediaReferences returns a media asset and the records pointing at it.
func (a *CMSApp) MediaReferences(ctx context.Context, id string) (*cms.MediaMetadata, error) {
	md, err := a.storage.References().GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if md.Asset == nil {
		return nil, fmt.Errorf("media/%s: %w", id, cms.ErrNotFound)
	}
	return md, nil
}

// Watch streams realtime change events for the given collections (all when
// none are named) until ctx is done.
func (a *CMSApp) Watch(ctx context.Context, collections ...string) (<-chan cms.ChangeEvent, error) {
	rn, ok := a.notifier.(*notify.RedisNotifier)
	if !ok {
		return nil, ErrRealtimeDisabled
	}
	return rn.Subscribe(ctx, collections...)
}

// BackupDatabase writes a consistent copy of the local database to dest.
func (a *CMSApp) BackupDatabase(dest string) error {
	if err := a.kv.BackupTo(dest); err != nil {
		return fmt.Errorf("backing up local database: %w", err)
	}
	a.logger.Info("local database backed up", "dest", dest)
	return nil
}

// Close logs the outcome of the operation and releases every resource.
func (a *CMSApp) Close() error {
	if a.op.Failed() {
		a.logger.Error("operation failed", "operation", a.op.Name, "error", a.op.Err, "elapsed", a.op.Elapsed(a.clock))
	} else {
		a.logger.Debug("operation finished", "operation", a.op.Name, "elapsed", a.op.Elapsed(a.clock))
	}
	return a.closeAll()
}

func (a *CMSApp) closeAll() error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing local database: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
