package cms

import (
	"context"
	"fmt"
)

// MigrationConfigKey marks, in the local system configuration, that the
// one-time local-to-remote migration has completed.
const MigrationConfigKey = "migration.completed"

// Migrator moves local records into a freshly activated remote backend.
//
// It runs as a sequence of independently retryable steps rather than a
// transaction: inspect counts, then either import local data into the empty
// remote and clear the local copies, or, when the remote already holds data,
// only clear the local copies. A crash between steps can leave local data
// cleared with the remote partially imported; the completion marker is only
// written once every step has succeeded, so the next activation retries.
type Migrator struct {
	local  LocalBackend
	remote RemoteBackend
	clock  Clock
	logger Logger
}

// MigrationReport describes what a migration run did.
type MigrationReport struct {
	Skipped      bool           // already completed earlier
	RemoteHad    bool           // remote held data, so nothing was imported
	Imported     int            // records written to the remote
	Cleared      []string       // local collections cleared
	LocalCounts  map[string]int // per collection, before the run
	RemoteCounts map[string]int // per collection, before the run
}

// NewMigrator creates a Migrator between the two backends.
func NewMigrator(local LocalBackend, remote RemoteBackend, clock Clock, logger Logger) *Migrator {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Migrator{local: local, remote: remote, clock: clock, logger: logger}
}

type migrationStep struct {
	name string
	run  func(ctx context.Context) error
}

// Run performs the migration unless it already completed.
func (m *Migrator) Run(ctx context.Context) (*MigrationReport, error) {
	report := &MigrationReport{
		LocalCounts:  map[string]int{},
		RemoteCounts: map[string]int{},
	}

	done, err := m.completed(ctx)
	if err != nil {
		return report, fmt.Errorf("checking migration marker: %w", err)
	}
	if done {
		report.Skipped = true
		return report, nil
	}

	collections := m.remote.SupportedCollections()
	if err := m.inspect(ctx, collections, report); err != nil {
		return report, fmt.Errorf("migration step inspect: %w", err)
	}

	localHas := false
	for _, c := range collections {
		if report.RemoteCounts[c] > 0 {
			report.RemoteHad = true
		}
		if report.LocalCounts[c] > 0 {
			localHas = true
		}
	}

	var steps []migrationStep
	switch {
	case report.RemoteHad:
		m.logger.Info("remote already holds data, skipping import")
		steps = append(steps, m.clearStep(collections, report))
	case localHas:
		steps = append(steps, m.importStep(collections, report), m.clearStep(collections, report))
	}
	steps = append(steps, migrationStep{name: "mark-complete", run: m.markComplete})

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return report, fmt.Errorf("migration step %s: %w", step.name, err)
		}
		m.logger.Debug("migration step done", "step", step.name)
	}

	m.logger.Info("migration complete", "imported", report.Imported, "cleared", len(report.Cleared))
	return report, nil
}

func (m *Migrator) completed(ctx context.Context) (bool, error) {
	v, ok, err := m.local.ConfigValue(ctx, MigrationConfigKey)
	if err != nil || !ok {
		return false, err
	}
	done, _ := v.(bool)
	return done, nil
}

func (m *Migrator) inspect(ctx context.Context, collections []string, report *MigrationReport) error {
	for _, c := range collections {
		localItems, err := m.local.List(ctx, c, nil)
		if err != nil {
			return fmt.Errorf("counting local %s: %w", c, err)
		}
		remoteItems, err := m.remote.List(ctx, c, nil)
		if err != nil {
			return fmt.Errorf("counting remote %s: %w", c, err)
		}
		report.LocalCounts[c] = len(localItems)
		report.RemoteCounts[c] = len(remoteItems)
	}
	return nil
}

func (m *Migrator) importStep(collections []string, report *MigrationReport) migrationStep {
	return migrationStep{name: "import", run: func(ctx context.Context) error {
		full, err := m.local.Export(ctx)
		if err != nil {
			return fmt.Errorf("exporting local data: %w", err)
		}

		pkg := NewExportPackage(m.clock.Now())
		for _, c := range collections {
			if items, ok := full.Data.Collection(c); ok {
				pkg.Data.SetCollection(c, items)
			}
		}

		result, err := m.remote.Import(ctx, pkg)
		if err != nil {
			return fmt.Errorf("importing into remote: %w", err)
		}
		report.Imported = result.Imported
		if !result.Success {
			return fmt.Errorf("remote import failed: %v", result.Errors)
		}
		return nil
	}}
}

func (m *Migrator) clearStep(collections []string, report *MigrationReport) migrationStep {
	return migrationStep{name: "clear-local", run: func(ctx context.Context) error {
		for _, c := range collections {
			if err := m.local.Clear(ctx, c); err != nil {
				return fmt.Errorf("clearing local %s: %w", c, err)
			}
			report.Cleared = append(report.Cleared, c)
		}
		return nil
	}}
}

func (m *Migrator) markComplete(ctx context.Context) error {
	return m.local.SetConfigValue(ctx, MigrationConfigKey, true)
}
