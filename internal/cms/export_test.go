package cms_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"cms-go/internal/cms"
	"cms-go/internal/testutil"
)

func TestExportPackage_WriteRead(t *testing.T) {
	pkg := cms.NewExportPackage(testutil.FixedClock().Now())
	pkg.Data.SetCollection(cms.CollectionJobs, []cms.Item{{"id": "j1", "title": "Welder"}})
	pkg.Data.SetCollection(cms.CollectionBlog, nil)
	pkg.Data.Company = map[string]any{"name": "ACME"}

	var buf bytes.Buffer
	if err := cms.WriteExportPackage(&buf, pkg); err != nil {
		t.Fatalf("WriteExportPackage() error = %v", err)
	}

	got, err := cms.ReadExportPackage(&buf)
	if err != nil {
		t.Fatalf("ReadExportPackage() error = %v", err)
	}
	if got.Version != cms.ExportVersion {
		t.Errorf("Version = %q, want %q", got.Version, cms.ExportVersion)
	}
	if !got.ExportedAt.Equal(pkg.ExportedAt) {
		t.Errorf("ExportedAt = %v, want %v", got.ExportedAt, pkg.ExportedAt)
	}

	jobs, ok := got.Data.Collection(cms.CollectionJobs)
	if !ok || len(jobs) != 1 || jobs[0].ID() != "j1" {
		t.Errorf("jobs = %v (present %v), want one record j1", jobs, ok)
	}
	blog, ok := got.Data.Collection(cms.CollectionBlog)
	if !ok || len(blog) != 0 {
		t.Errorf("blog = %v (present %v), want present and empty", blog, ok)
	}
	if got.Data.Company["name"] != "ACME" {
		t.Errorf("company = %v", got.Data.Company)
	}
}

func TestExportData_AbsentCollections(t *testing.T) {
	pkg, err := cms.ReadExportPackage(strings.NewReader(
		`{"version":"1.0.0","exportedAt":"2024-01-15T10:30:00Z","data":{"jobs":[]}}`))
	if err != nil {
		t.Fatalf("ReadExportPackage() error = %v", err)
	}
	if _, ok := pkg.Data.Collection(cms.CollectionJobs); !ok {
		t.Error("jobs should be present")
	}
	for _, c := range []string{cms.CollectionBlog, cms.CollectionMedia, "unknown"} {
		if _, ok := pkg.Data.Collection(c); ok {
			t.Errorf("%s should be absent", c)
		}
	}
}

func TestReadExportPackage_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "not json"},
		{name: "missing version", input: `{"exportedAt":"2024-01-15T10:30:00Z","data":{}}`},
		{name: "missing exportedAt", input: `{"version":"1.0.0","data":{}}`},
		{name: "missing data", input: `{"version":"1.0.0","exportedAt":"2024-01-15T10:30:00Z"}`},
		{name: "data not an object", input: `{"version":"1.0.0","exportedAt":"2024-01-15T10:30:00Z","data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cms.ReadExportPackage(strings.NewReader(tt.input))
			if !errors.Is(err, cms.ErrInvalidFormat) {
				t.Errorf("ReadExportPackage() error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestImportResult(t *testing.T) {
	r := &cms.ImportResult{}
	r.Imported = 3
	if !r.Finish().Success {
		t.Error("Success = false with no errors")
	}
	if r.Errors == nil {
		t.Error("Errors should be an empty slice, not nil")
	}

	r.Fail(2, "%s: %s", "jobs", "boom")
	r.Finish()
	if r.Success {
		t.Error("Success = true after Fail")
	}
	if r.Skipped != 2 || len(r.Errors) != 1 || r.Errors[0] != "jobs: boom" {
		t.Errorf("result = %+v", r)
	}
}
