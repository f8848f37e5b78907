package watch

import (
	"context"
	"errors"
	"growthwatch/internal/chrono"
	"growthwatch/internal/db"
	"growthwatch/internal/notify"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/source"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/extract"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mutex sync.Mutex
	text  string
	err   error
	// when block is set, Fetch signals started and waits on block
	started chan struct{}
	block   chan struct{}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) set(text string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.text = text
	s.err = err
}

func (s *fakeSource) Fetch(ctx context.Context) ([]source.Blob, error) {
	if s.block != nil {
		s.started <- struct{}{}
		<-s.block
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []source.Blob{{Origin: "fake", Text: s.text}}, nil
}

type fakeNotifier struct {
	reports []notify.Report
	err     error
}

func (n *fakeNotifier) Notify(ctx context.Context, report notify.Report) error {
	n.reports = append(n.reports, report)
	return n.err
}

type fakeCron struct {
	spec     string
	callback func()
}

func (c *fakeCron) Cron(spec string, callback func()) error {
	if err := chrono.ValidateSpec(spec); err != nil {
		return err
	}
	c.spec = spec
	c.callback = callback
	return nil
}

type harness struct {
	watcher  Watcher
	src      *fakeSource
	notifier *fakeNotifier
	store    snapshot.Store
	clock    *chrono.FixedImpl
	tel      *telemetry.Recorder
	file     string
}

func setup(t testing.TB, keep int) harness {
	conn, err := db.Open(context.Background(), db.Config{File: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})

	h := harness{
		src:      &fakeSource{},
		notifier: &fakeNotifier{},
		clock:    &chrono.FixedImpl{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		tel:      &telemetry.Recorder{},
		file:     filepath.Join(t.TempDir(), "latest.json"),
	}
	h.store = snapshot.NewStore(db.New(conn), db.NewMakeTx(conn), h.clock, h.tel)
	h.watcher = NewWatcher(Options{
		Sources:      []source.Source{h.src},
		Engine:       extract.Default(),
		Store:        h.store,
		Notifier:     h.notifier,
		SnapshotFile: h.file,
		Keep:         keep,
	}, h.clock, h.tel)
	return h
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)

	h.src.set(`{"fullName":"Liv Holm","growth":12},{"fullName":"Kai Berg","growth":-3}`, nil)
	first, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)
	require.False(t, first.Skipped)
	require.True(t, first.Notified)
	require.Len(t, first.Changes.Added, 2)
	require.Len(t, h.notifier.reports, 1)

	// same data, nothing to notify
	h.clock.Advance(time.Hour)
	second, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)
	require.False(t, second.Notified)
	require.True(t, second.Changes.Empty())
	require.Greater(t, second.RunID, first.RunID)
	require.Len(t, h.notifier.reports, 1)

	h.clock.Advance(time.Hour)
	h.src.set(`{"fullName":"Liv Holm","growth":15},{"fullName":"Sol Dahl","growth":0}`, nil)
	third, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, third.Notified)
	require.Equal(t, []snapshot.Change{{Name: "Liv Holm", From: 12, To: 15}}, third.Changes.Changed)
	require.Equal(t, []extract.Record{{Name: "Sol Dahl", Growth: 0}}, third.Changes.Added)
	require.Equal(t, []extract.Record{{Name: "Kai Berg", Growth: -3}}, third.Changes.Removed)
	require.Len(t, h.notifier.reports, 2)
	require.Equal(t, third.RunID, h.notifier.reports[1].RunID)

	written, err := snapshot.ReadFile(h.file)
	require.NoError(t, err)
	require.Equal(t, third.RunID, written.ID)
	require.Equal(t, third.Records, written.Records)
	require.Equal(t, []string{"fake"}, written.Sources)

	history, err := h.store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestRunOnceSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)

	h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)
	first, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)

	h.src.set(`<html>maintenance</html>`, nil)
	empty, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, empty.Skipped)
	require.Empty(t, empty.Records)
	require.Len(t, h.tel.Find("warning", "run-once.empty"), 1)

	latest, ok, err := h.store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.RunID, latest.ID)
	require.Len(t, h.notifier.reports, 1)
}

func TestRunOnceFetchFailure(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)

	boom := errors.New("boom")
	h.src.set("", boom)
	_, err := h.watcher.RunOnce(ctx)
	require.ErrorIs(t, err, boom)

	_, ok, err := h.store.Latest(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunOncePartialFailure(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)

	boom := errors.New("boom")
	h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)
	h.watcher.opts.Sources = append(h.watcher.opts.Sources, &fakeSource{err: boom})

	result, err := h.watcher.RunOnce(ctx)
	require.ErrorIs(t, err, boom)
	require.NotZero(t, result.RunID)
	require.Equal(t, []extract.Record{{Name: "Liv Holm", Growth: 12}}, result.Records)
}

func TestRunOnceNotifyFailure(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)
	h.notifier.err = errors.New("smtp down")

	h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)
	result, err := h.watcher.RunOnce(ctx)
	require.NoError(t, err)
	require.False(t, result.Notified)
	require.Len(t, h.tel.Find("broken", "run-once.notify"), 1)
}

func TestRunOncePrunes(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 2)

	for i := 0; i < 4; i++ {
		h.clock.Advance(time.Minute)
		_, err := h.watcher.RunOnce(ctx)
		require.NoError(t, err)
		h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)
	}

	history, err := h.store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestRunOnceOverlap(t *testing.T) {
	ctx := context.Background()
	h := setup(t, 0)
	h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)
	h.src.started = make(chan struct{})
	h.src.block = make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := h.watcher.RunOnce(ctx)
		done <- err
	}()
	<-h.src.started

	_, err := h.watcher.RunOnce(ctx)
	require.ErrorIs(t, err, ErrRunning)

	close(h.src.block)
	require.NoError(t, <-done)
}

func TestSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := setup(t, 0)
	h.src.set(`{"fullName":"Liv Holm","growth":12}`, nil)

	cron := &fakeCron{}
	require.Error(t, h.watcher.Schedule(ctx, cron, "not a spec"))
	require.NoError(t, h.watcher.Schedule(ctx, cron, "*/5 * * * *"))
	require.Equal(t, "*/5 * * * *", cron.spec)

	cron.callback()
	require.Len(t, h.notifier.reports, 1)

	h.src.set("", errors.New("boom"))
	cron.callback()
	require.Len(t, h.tel.Find("broken", "watch: run-once"), 1)

	cancel()
	cron.callback()
	require.Len(t, h.tel.Find("broken", "watch: run-once"), 1)
}
