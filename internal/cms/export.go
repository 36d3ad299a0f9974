package cms

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportVersion is written into every export package.
const ExportVersion = "1.0.0"

// ExportPackage is a versioned snapshot of every collection plus the
// singleton statistics, company and system configuration objects.
type ExportPackage struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	Data       *ExportData `json:"data"`
}

// ExportData holds one array per known collection. A nil slice means the
// collection is absent from the package and is left alone on import; an
// empty slice empties it.
type ExportData struct {
	Jobs         []Item         `json:"jobs"`
	Blog         []Item         `json:"blog"`
	Services     []Item         `json:"services"`
	Testimonials []Item         `json:"testimonials"`
	Team         []Item         `json:"team"`
	Media        []Item         `json:"media"`
	Stats        map[string]any `json:"stats,omitempty"`
	Company      map[string]any `json:"company,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

func (d *ExportData) slot(name string) *[]Item {
	switch name {
	case CollectionJobs:
		return &d.Jobs
	case CollectionBlog:
		return &d.Blog
	case CollectionServices:
		return &d.Services
	case CollectionTestimonials:
		return &d.Testimonials
	case CollectionTeam:
		return &d.Team
	case CollectionMedia:
		return &d.Media
	}
	return nil
}

// Collection returns the records for name and whether the package carries it.
func (d *ExportData) Collection(name string) ([]Item, bool) {
	s := d.slot(name)
	if s == nil || *s == nil {
		return nil, false
	}
	return *s, true
}

// SetCollection stores the records for name. Unknown names are ignored.
func (d *ExportData) SetCollection(name string, items []Item) {
	if s := d.slot(name); s != nil {
		if items == nil {
			items = []Item{}
		}
		*s = items
	}
}

// NewExportPackage returns an empty package stamped with the given instant.
func NewExportPackage(at time.Time) *ExportPackage {
	return &ExportPackage{
		Version:    ExportVersion,
		ExportedAt: at.UTC(),
		Data:       &ExportData{},
	}
}

// Validate checks the top-level fields an import requires.
func (p *ExportPackage) Validate() error {
	if p == nil {
		return fmt.Errorf("package is empty: %w", ErrInvalidFormat)
	}
	if p.Version == "" {
		return fmt.Errorf("package has no version: %w", ErrInvalidFormat)
	}
	if p.ExportedAt.IsZero() {
		return fmt.Errorf("package has no exportedAt: %w", ErrInvalidFormat)
	}
	if p.Data == nil {
		return fmt.Errorf("package has no data: %w", ErrInvalidFormat)
	}
	return nil
}

// ReadExportPackage decodes and validates a package.
func ReadExportPackage(r io.Reader) (*ExportPackage, error) {
	var pkg ExportPackage
	if err := json.NewDecoder(r).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("decoding export package: %v: %w", err, ErrInvalidFormat)
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// WriteExportPackage encodes a package as indented JSON.
func WriteExportPackage(w io.Writer, pkg *ExportPackage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pkg); err != nil {
		return fmt.Errorf("encoding export package: %w", err)
	}
	return nil
}

// ImportResult summarizes an import. Success is true exactly when Errors is empty.
type ImportResult struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Fail records a failing collection or batch.
func (r *ImportResult) Fail(count int, format string, args ...any) {
	r.Skipped += count
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Success = false
}

// Finish sets Success from the accumulated errors.
func (r *ImportResult) Finish() *ImportResult {
	r.Success = len(r.Errors) == 0
	if r.Errors == nil {
		r.Errors = []string{}
	}
	return r
}

// CollectionMetadata is the bookkeeping kept per collection.
type CollectionMetadata struct {
	Name         string    `json:"name"`
	Count        int       `json:"count"`
	LastModified time.Time `json:"lastModified"`
	Size         int64     `json:"size"`
}
