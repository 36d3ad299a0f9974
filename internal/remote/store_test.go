package remote_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-go/internal/cms"
	"cms-go/internal/remote"
	"cms-go/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []cms.ChangeEvent
}

func (n *recordingNotifier) Publish(_ context.Context, e cms.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Type+":"+e.Collection)
	}
	return out
}

func TestStore_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("not enabled without url", func(t *testing.T) {
		s := remote.NewStore(remote.Options{})
		assert.ErrorIs(t, s.Initialize(ctx), cms.ErrNotEnabled)
	})

	t.Run("not enabled when offline", func(t *testing.T) {
		s := remote.NewStore(remote.Options{URL: "sqlite:///tmp/never-opened.db", Offline: true})
		assert.ErrorIs(t, s.Initialize(ctx), cms.ErrNotEnabled)
	})

	t.Run("config error for malformed url", func(t *testing.T) {
		for _, u := range []string{"://nope", "mysql://db/cms", "postgres:///cms", "plain-string"} {
			s := remote.NewStore(remote.Options{URL: u})
			assert.ErrorIs(t, s.Initialize(ctx), cms.ErrConfig, "url %q", u)
		}
	})

	t.Run("calls before initialize are not enabled", func(t *testing.T) {
		s := remote.NewStore(remote.Options{URL: "sqlite:///tmp/never-opened.db"})
		_, err := s.Create(ctx, cms.CollectionJobs, testutil.Job("a", "eng", cms.StatusDraft))
		assert.ErrorIs(t, err, cms.ErrNotEnabled)
		_, err = s.Export(ctx)
		assert.ErrorIs(t, err, cms.ErrNotEnabled)
	})

	t.Run("initialize is idempotent", func(t *testing.T) {
		s := testutil.NewTestRemoteStore(t, remote.Options{})
		require.NoError(t, s.Initialize(ctx))
	})
}

func TestStore_Whitelist(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{})

	_, err := s.Create(ctx, cms.CollectionServices, cms.Item{"title": "Consulting"})
	assert.ErrorIs(t, err, cms.ErrUnsupportedCollection)

	created, err := s.Create(ctx, cms.CollectionJobs, testutil.Job("Engineer", "eng", cms.StatusDraft))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID())

	_, err = s.List(ctx, cms.CollectionTeam, nil)
	assert.ErrorIs(t, err, cms.ErrUnsupportedCollection)
	_, err = s.Metadata(ctx, cms.CollectionMedia)
	assert.ErrorIs(t, err, cms.ErrUnsupportedCollection)
	_, err = s.Read(ctx, "  ", "x")
	assert.ErrorIs(t, err, cms.ErrInvalidArgument)

	assert.Equal(t, []string{cms.CollectionJobs, cms.CollectionBlog}, s.SupportedCollections())
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	clock := testutil.TickingClock(time.Second)
	s := testutil.NewTestRemoteStore(t, remote.Options{Clock: clock})

	created, err := s.Create(ctx, cms.CollectionJobs, cms.Item{
		"id":       "caller-id",
		"title":    "Engineer",
		"category": "eng",
		"tags":     []any{"go", "sql"},
	})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", created.ID())
	assert.Equal(t, cms.StatusDraft, created.Status())

	got, err := s.Read(ctx, cms.CollectionJobs, created.ID())
	require.NoError(t, err)
	assert.Equal(t, created, got)

	missing, err := s.Read(ctx, cms.CollectionJobs, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	updated, err := s.Update(ctx, cms.CollectionJobs, created.ID(), cms.Item{
		"id":     "hijack",
		"title":  "Senior Engineer",
		"status": "published",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, "Senior Engineer", updated["title"])
	assert.Equal(t, "eng", updated["category"])
	assert.True(t, updated.UpdatedAt().After(created.UpdatedAt()))

	_, err = s.Update(ctx, cms.CollectionJobs, "nope", cms.Item{"title": "x"})
	assert.ErrorIs(t, err, cms.ErrNotFound)

	_, err = s.Update(ctx, cms.CollectionJobs, created.ID(), cms.Item{"status": "deleted"})
	assert.ErrorIs(t, err, cms.ErrInvalidArgument)

	deleted, err := s.Delete(ctx, cms.CollectionJobs, created.ID())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, cms.CollectionJobs, created.ID())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_UpdateAdvancesWithStalledClock(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{})

	created, err := s.Create(ctx, cms.CollectionBlog, testutil.BlogPost("Hello", "body"))
	require.NoError(t, err)

	prev := created.UpdatedAt()
	for i := 0; i < 3; i++ {
		updated, err := s.Update(ctx, cms.CollectionBlog, created.ID(), cms.Item{"title": "v"})
		require.NoError(t, err)
		assert.True(t, updated.UpdatedAt().After(prev), "update %d did not advance updatedAt", i)
		prev = updated.UpdatedAt()
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{Clock: testutil.TickingClock(time.Minute)})

	draft := testutil.MustCreate(t, s, cms.CollectionJobs, testutil.Job("Draft role", "a", cms.StatusDraft))
	published := testutil.MustCreate(t, s, cms.CollectionJobs, testutil.Job("Published role", "a", cms.StatusPublished))
	other := testutil.MustCreate(t, s, cms.CollectionJobs, testutil.Job("Other role", "b", cms.StatusPublished))

	t.Run("newest first", func(t *testing.T) {
		all, err := s.List(ctx, cms.CollectionJobs, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{other.ID(), published.ID(), draft.ID()},
			[]string{all[0].ID(), all[1].ID(), all[2].ID()})
	})

	t.Run("filter conjunction", func(t *testing.T) {
		got, err := s.List(ctx, cms.CollectionJobs, &cms.Filters{Status: cms.StatusPublished, Category: "a"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, published.ID(), got[0].ID())
	})

	t.Run("search term", func(t *testing.T) {
		got, err := s.List(ctx, cms.CollectionJobs, &cms.Filters{SearchTerm: "OTHER"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, other.ID(), got[0].ID())
	})
}

func TestStore_Metadata(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{})

	meta, err := s.Metadata(ctx, cms.CollectionBlog)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Count)

	testutil.MustCreate(t, s, cms.CollectionBlog, testutil.BlogPost("One", "a"))
	testutil.MustCreate(t, s, cms.CollectionBlog, testutil.BlogPost("Two", "b"))

	meta, err = s.Metadata(ctx, cms.CollectionBlog)
	require.NoError(t, err)
	assert.Equal(t, cms.CollectionBlog, meta.Name)
	assert.Equal(t, 2, meta.Count)
	assert.Positive(t, meta.Size)
	assert.False(t, meta.LastModified.IsZero())

	require.NoError(t, s.Clear(ctx, cms.CollectionBlog))
	meta, err = s.Metadata(ctx, cms.CollectionBlog)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Count)

	items, err := s.List(ctx, cms.CollectionBlog, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_RecordSizeLimit(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{MaxRecordBytes: 256})

	_, err := s.Create(ctx, cms.CollectionBlog, testutil.BlogPost("Big", strings.Repeat("x", 512)))
	assert.ErrorIs(t, err, cms.ErrStorageLimitExceeded)

	items, err := s.List(ctx, cms.CollectionBlog, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_CollectionSizeLimit(t *testing.T) {
	ctx := context.Background()
	// Each post below serializes to roughly 550 bytes.
	s := testutil.NewTestRemoteStore(t, remote.Options{MaxRecordBytes: 2048, MaxCollectionBytes: 1500})

	first := testutil.MustCreate(t, s, cms.CollectionBlog, testutil.BlogPost("P", strings.Repeat("x", 400)))
	second := testutil.MustCreate(t, s, cms.CollectionBlog, testutil.BlogPost("P", strings.Repeat("x", 400)))

	t.Run("create over the limit is rolled back", func(t *testing.T) {
		_, err := s.Create(ctx, cms.CollectionBlog, testutil.BlogPost("P", strings.Repeat("x", 400)))
		assert.ErrorIs(t, err, cms.ErrStorageLimitExceeded)

		meta, err := s.Metadata(ctx, cms.CollectionBlog)
		require.NoError(t, err)
		assert.Equal(t, 2, meta.Count)
	})

	t.Run("growing update over the limit is rolled back", func(t *testing.T) {
		_, err := s.Update(ctx, cms.CollectionBlog, first.ID(), cms.Item{"content": strings.Repeat("y", 1000)})
		assert.ErrorIs(t, err, cms.ErrStorageLimitExceeded)

		got, err := s.Read(ctx, cms.CollectionBlog, first.ID())
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", 400), got["content"])
	})

	t.Run("other collections are counted separately", func(t *testing.T) {
		_, err := s.Create(ctx, cms.CollectionJobs, testutil.Job("Welder", "trades", cms.StatusDraft))
		assert.NoError(t, err)
	})

	t.Run("import over the limit keeps the previous records", func(t *testing.T) {
		pkg := cms.NewExportPackage(testutil.FixedClock().Now())
		var posts []cms.Item
		for _, id := range []string{"a", "b", "c"} {
			p := testutil.BlogPost("P", strings.Repeat("z", 400))
			p["id"] = id
			posts = append(posts, p)
		}
		pkg.Data.SetCollection(cms.CollectionBlog, posts)

		result, err := s.Import(ctx, pkg)
		require.NoError(t, err)
		assert.False(t, result.Success)

		items, err := s.List(ctx, cms.CollectionBlog, nil)
		require.NoError(t, err)
		var got []string
		for _, it := range items {
			got = append(got, it.ID())
		}
		assert.ElementsMatch(t, []string{first.ID(), second.ID()}, got)
	})
}

func TestStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewTestRemoteStore(t, remote.Options{Clock: testutil.TickingClock(time.Second)})

	testutil.MustCreate(t, src, cms.CollectionJobs, testutil.Job("A", "eng", cms.StatusPublished))
	testutil.MustCreate(t, src, cms.CollectionJobs, testutil.Job("B", "ops", cms.StatusDraft))
	testutil.MustCreate(t, src, cms.CollectionBlog, testutil.BlogPost("Post", "text"))
	require.NoError(t, src.SetConfigValue(ctx, "theme", "dark"))

	pkg, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, cms.ExportVersion, pkg.Version)
	assert.Len(t, pkg.Data.Jobs, 2)
	assert.Len(t, pkg.Data.Blog, 1)
	assert.Nil(t, pkg.Data.Services)
	assert.Equal(t, "dark", pkg.Data.Config["theme"])

	// Collections outside the whitelist are ignored on import.
	pkg.Data.Services = []cms.Item{{"id": "s1", "title": "ignored"}}

	dst := testutil.NewTestRemoteStore(t, remote.Options{})
	testutil.MustCreate(t, dst, cms.CollectionJobs, testutil.Job("Stale", "x", cms.StatusDraft))

	result, err := dst.Import(ctx, pkg)
	require.NoError(t, err)
	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	for _, c := range []string{cms.CollectionJobs, cms.CollectionBlog} {
		want, err := src.List(ctx, c, nil)
		require.NoError(t, err)
		got, err := dst.List(ctx, c, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "collection %s", c)
	}

	v, ok, err := dst.ConfigValue(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestStore_ImportReportsBadCollection(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{})

	pkg := cms.NewExportPackage(time.Now())
	pkg.Data.Jobs = []cms.Item{{"id": "j1", "title": "ok"}, {"id": "j1", "title": "dup"}}
	pkg.Data.Blog = []cms.Item{{"id": "b1", "title": "fine", "createdAt": "2024-01-01T00:00:00Z"}}

	result, err := s.Import(ctx, pkg)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "jobs")

	blog, err := s.Read(ctx, cms.CollectionBlog, "b1")
	require.NoError(t, err)
	require.NotNil(t, blog)
	assert.Equal(t, "fine", blog["title"])

	_, err = s.Import(ctx, &cms.ExportPackage{})
	assert.ErrorIs(t, err, cms.ErrInvalidFormat)
}

func TestStore_MediaNotSupported(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestRemoteStore(t, remote.Options{})

	_, err := s.UploadMedia(ctx, testutil.ImageUpload(t, "a.png"))
	assert.ErrorIs(t, err, cms.ErrNotSupported)
	_, err = s.DeleteMedia(ctx, "m1")
	assert.ErrorIs(t, err, cms.ErrNotSupported)
	_, err = s.ReplaceMedia(ctx, "m1", testutil.ImageUpload(t, "b.png"))
	assert.ErrorIs(t, err, cms.ErrNotSupported)
}

func TestStore_Realtime(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes changes when enabled", func(t *testing.T) {
		n := &recordingNotifier{}
		s := testutil.NewTestRemoteStore(t, remote.Options{Realtime: true, Notifier: n})

		job := testutil.MustCreate(t, s, cms.CollectionJobs, testutil.Job("A", "eng", cms.StatusDraft))
		_, err := s.Update(ctx, cms.CollectionJobs, job.ID(), cms.Item{"title": "B"})
		require.NoError(t, err)
		_, err = s.Delete(ctx, cms.CollectionJobs, job.ID())
		require.NoError(t, err)

		assert.Equal(t, []string{"created:jobs", "updated:jobs", "deleted:jobs"}, n.types())
		assert.Equal(t, job.ID(), n.events[0].ItemID)
	})

	t.Run("silent when disabled", func(t *testing.T) {
		n := &recordingNotifier{}
		s := testutil.NewTestRemoteStore(t, remote.Options{Notifier: n})
		testutil.MustCreate(t, s, cms.CollectionJobs, testutil.Job("A", "eng", cms.StatusDraft))
		assert.Empty(t, n.types())
	})

	t.Run("publish failures do not fail writes", func(t *testing.T) {
		s := testutil.NewTestRemoteStore(t, remote.Options{Realtime: true, Notifier: failingNotifier{}})
		_, err := s.Create(ctx, cms.CollectionJobs, testutil.Job("A", "eng", cms.StatusDraft))
		assert.NoError(t, err)
	})
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, cms.ChangeEvent) error { return errors.New("redis down") }
func (failingNotifier) Close() error                                  { return nil }
