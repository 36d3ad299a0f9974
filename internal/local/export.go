package local

import (
	"context"
	"fmt"

	"cms-go/internal/cms"
)

// Export snapshots every known collection plus the singleton objects.
func (s *Store) Export(ctx context.Context) (*cms.ExportPackage, error) {
	pkg := cms.NewExportPackage(s.clock.Now())

	for _, c := range cms.KnownCollections {
		items, err := s.load(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("exporting: %w", err)
		}
		pkg.Data.SetCollection(c, items)
	}

	singletons := []struct {
		key string
		dst *map[string]any
	}{
		{statsKey, &pkg.Data.Stats},
		{companyKey, &pkg.Data.Company},
		{systemConfigKey, &pkg.Data.Config},
	}
	for _, sg := range singletons {
		if _, err := s.getJSON(ctx, sg.key, sg.dst); err != nil {
			return nil, fmt.Errorf("exporting %s: %w", sg.key, err)
		}
	}

	s.logger.Info("exported local data")
	return pkg, nil
}

// Import replaces every collection present in pkg wholesale. Each collection
// succeeds or fails on its own; one bad collection does not stop the rest.
func (s *Store) Import(ctx context.Context, pkg *cms.ExportPackage) (*cms.ImportResult, error) {
	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &cms.ImportResult{}
	for _, c := range cms.KnownCollections {
		items, ok := pkg.Data.Collection(c)
		if !ok {
			continue
		}
		if err := s.replace(ctx, c, items); err != nil {
			result.Fail(len(items), "%s: %v", c, err)
			s.logger.Warn("collection import failed", "collection", c, "error", err)
			continue
		}
		result.Imported += len(items)
	}

	singletons := []struct {
		key   string
		value map[string]any
	}{
		{statsKey, pkg.Data.Stats},
		{companyKey, pkg.Data.Company},
		{systemConfigKey, pkg.Data.Config},
	}
	for _, sg := range singletons {
		if sg.value == nil {
			continue
		}
		if err := s.setJSON(ctx, sg.key, sg.value); err != nil {
			result.Fail(0, "%s: %v", sg.key, err)
		}
	}

	result.Finish()
	s.logger.Info("imported local data", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// replace overwrites a collection with items after checking every record
// has a unique id and is serializable.
func (s *Store) replace(ctx context.Context, collection string, items []cms.Item) error {
	seen := make(map[string]bool, len(items))
	normalized := make([]cms.Item, 0, len(items))
	for i, it := range items {
		id := it.ID()
		if id == "" {
			return fmt.Errorf("record %d has no id: %w", i, cms.ErrInvalidArgument)
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %s: %w", id, cms.ErrInvalidArgument)
		}
		seen[id] = true

		n, err := cms.Normalize(it)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		normalized = append(normalized, n)
	}
	return s.save(ctx, collection, normalized)
}
