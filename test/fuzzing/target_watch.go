package fuzzing

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/db"
	"growthwatch/internal/notify"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/source"
	"growthwatch/internal/telemetry"
	"growthwatch/internal/watch"
	"growthwatch/lib/extract"
	"growthwatch/lib/testutil"
	"growthwatch/lib/textutil"
	"math/rand"
	"reflect"
	"strings"
	"time"
)

// steps:
// - mutate the page: add, remove, rename a person, change a growth, shuffle or clear
// - Run()
// - fault inject: the source failing to fetch
// - fault inject: the notifier failing to deliver
// - fault inject: time passing by faster than usual / reversing

// properties of the system:
// - a run over a page with records stores exactly those records in page order
// - a run that fails to fetch or finds nothing leaves the latest run untouched
// - applying the reported changes to the previous run yields the current run
// - the notifier is called if and only if something changed
// - no more than `keep` runs are retained
// - a run should take no more than 50ms (on the p95)

var errInjected = errors.New("injected fault")

type pageSource struct {
	text   string
	broken bool
}

func (s *pageSource) Name() string {
	return "fuzz"
}

func (s *pageSource) Fetch(ctx context.Context) ([]source.Blob, error) {
	if s.broken {
		return nil, errInjected
	}
	return []source.Blob{{Origin: "fuzz", Text: s.text}}, nil
}

type countingNotifier struct {
	calls  int
	broken bool
}

func (n *countingNotifier) Notify(ctx context.Context, report notify.Report) error {
	n.calls++
	if n.broken {
		return errInjected
	}
	return nil
}

type watchTarget struct {
	tel      telemetry.API
	rndm     *rand.Rand
	store    snapshot.Store
	watcher  watch.Watcher
	source   *pageSource
	notifier *countingNotifier
	timeshim *timeShim
	keep     int

	page     []extract.Record
	stored   []extract.Record
	storedId int64

	// 0: wrapped in a person object
	// 1: bare name and growth
	format func(*rand.Rand) int
	// 0: plain
	// 1: backslash escaped quotes
	// 2: html entity quotes
	escape func(*rand.Rand) int

	runCount        int
	runTimeExceeded int
}

type WatchProvider struct{}

func (WatchProvider) CreateTarget(tel telemetry.API, rndm *rand.Rand) (target Target, err error) {
	conn, err := db.Open(context.Background(), db.Config{File: ":memory:"})
	if err != nil {
		return
	}

	timeshim := newTimeShim(rndm)
	store := snapshot.NewStore(db.New(conn), db.NewMakeTx(conn), timeshim, tel)
	src := &pageSource{}
	notifier := &countingNotifier{}
	keep := 1 + rndm.Intn(5)

	watcher := watch.NewWatcher(watch.Options{
		Sources:  []source.Source{src},
		Engine:   extract.Default(),
		Store:    store,
		Notifier: notifier,
		Keep:     keep,
	}, timeshim, tel)

	return &watchTarget{
		tel:      tel,
		rndm:     rndm,
		store:    store,
		watcher:  watcher,
		source:   src,
		notifier: notifier,
		timeshim: timeshim,
		keep:     keep,
		format:   testutil.RandomSwitch(1, 1),
		escape:   testutil.RandomSwitch(2, 1, 1),
	}, nil
}

func (t *watchTarget) render() {
	parts := make([]string, len(t.page))
	wrapped := t.format(t.rndm) == 0
	for i, r := range t.page {
		if wrapped {
			parts[i] = fmt.Sprintf(`{"person":{"fullName":"%s"},"growth":%d}`, r.Name, r.Growth)
		} else {
			parts[i] = fmt.Sprintf(`{"fullName":"%s","growth":%d}`, r.Name, r.Growth)
		}
	}
	text := fmt.Sprintf(`{"rows":[%s]}`, strings.Join(parts, ","))

	switch t.escape(t.rndm) {
	case 1:
		text = strings.ReplaceAll(text, `"`, `\"`)
	case 2:
		text = strings.ReplaceAll(text, `"`, "&quot;")
	}
	t.source.text = text
}

func (t *watchTarget) hasName(name string) bool {
	key := textutil.Key(name)
	for _, r := range t.page {
		if textutil.Key(r.Name) == key {
			return true
		}
	}
	return false
}

func (t *watchTarget) newName() string {
	for {
		name := testutil.RandomName(t.rndm)
		if !t.hasName(name) {
			return name
		}
	}
}

func (t *watchTarget) randomGrowth() int64 {
	return t.rndm.Int63n(2001) - 1000
}

func (t *watchTarget) StepAddPerson(ctx context.Context, res *Results) error {
	record := extract.Record{Name: t.newName(), Growth: t.randomGrowth()}
	i := t.rndm.Intn(len(t.page) + 1)
	t.page = append(t.page[:i], append([]extract.Record{record}, t.page[i:]...)...)
	t.tel.ReportDebug("+ person", record.Name, record.Growth)
	t.render()
	return nil
}

func (t *watchTarget) StepRemovePerson(ctx context.Context, res *Results) error {
	if len(t.page) == 0 {
		return nil
	}
	i := t.rndm.Intn(len(t.page))
	t.tel.ReportDebug("- person", t.page[i].Name)
	t.page = append(t.page[:i], t.page[i+1:]...)
	t.render()
	return nil
}

func (t *watchTarget) StepRenamePerson(ctx context.Context, res *Results) error {
	if len(t.page) == 0 {
		return nil
	}
	i := t.rndm.Intn(len(t.page))
	name := t.newName()
	t.tel.ReportDebug("~ name", t.page[i].Name, name)
	t.page[i].Name = name
	t.render()
	return nil
}

func (t *watchTarget) StepChangeGrowth(ctx context.Context, res *Results) error {
	if len(t.page) == 0 {
		return nil
	}
	i := t.rndm.Intn(len(t.page))
	t.page[i].Growth = t.randomGrowth()
	t.tel.ReportDebug("~ growth", t.page[i].Name, t.page[i].Growth)
	t.render()
	return nil
}

func (t *watchTarget) StepShuffle(ctx context.Context, res *Results) error {
	t.rndm.Shuffle(len(t.page), func(i, j int) {
		t.page[i], t.page[j] = t.page[j], t.page[i]
	})
	t.render()
	return nil
}

func (t *watchTarget) StepClearPage(ctx context.Context, res *Results) error {
	// clearing is rare on a real page
	if t.rndm.Intn(5) > 0 {
		return nil
	}
	t.tel.ReportDebug("- page")
	t.page = nil
	t.render()
	return nil
}

func (t *watchTarget) StepBreakSource(ctx context.Context, res *Results) error {
	t.source.broken = t.rndm.Intn(4) == 0
	return nil
}

func (t *watchTarget) StepBreakNotifier(ctx context.Context, res *Results) error {
	t.notifier.broken = t.rndm.Intn(4) == 0
	return nil
}

func (t *watchTarget) StepAddTime(ctx context.Context, res *Results) error {
	duration := t.timeshim.randDuration()
	t.timeshim.current = t.timeshim.current.Add(duration)
	t.tel.ReportDebug(
		"+ time",
		telemetry.KV{Key: "current_time", Value: t.timeshim.current.Format(time.DateTime)},
		telemetry.KV{Key: "added", Value: duration.String()},
	)
	return nil
}

func (t *watchTarget) StepSubTime(ctx context.Context, res *Results) error {
	duration := t.timeshim.randDuration()
	t.timeshim.current = t.timeshim.current.Add(-duration)
	t.tel.ReportDebug(
		"- time",
		telemetry.KV{Key: "current_time", Value: t.timeshim.current.Format(time.DateTime)},
		telemetry.KV{Key: "subtracted", Value: duration.String()},
	)
	return nil
}

// applyChanges replays the changes on top of prev, keyed by name.
func applyChanges(prev []extract.Record, changes snapshot.Changes) map[string]int64 {
	out := map[string]int64{}
	for _, r := range prev {
		out[textutil.Key(r.Name)] = r.Growth
	}
	for _, r := range changes.Removed {
		delete(out, textutil.Key(r.Name))
	}
	for _, r := range changes.Renamed {
		delete(out, textutil.Key(r.From.Name))
		out[textutil.Key(r.To.Name)] = r.To.Growth
	}
	for _, r := range changes.Added {
		out[textutil.Key(r.Name)] = r.Growth
	}
	for _, c := range changes.Changed {
		out[textutil.Key(c.Name)] = c.To
	}
	return out
}

func (t *watchTarget) StepRun(ctx context.Context, res *Results) error {
	callsBefore := t.notifier.calls

	t.runCount++
	t1 := time.Now()
	result, err := t.watcher.RunOnce(ctx)
	if time.Since(t1) > 50*time.Millisecond {
		t.runTimeExceeded++
	}

	latest, hasLatest, latestErr := t.store.Latest(ctx)
	if latestErr != nil {
		return latestErr
	}
	t.tel.ReportDebug("run", result.RunID, len(result.Records), err)

	if t.source.broken || len(t.page) == 0 {
		if t.source.broken && !errors.Is(err, errInjected) {
			res.Fail(fmt.Errorf("run.fetch-error: expected the injected fault to be returned, got %v", err))
		}
		if !t.source.broken && !result.Skipped {
			res.Fail(fmt.Errorf("run.skip-empty: a run over an empty page was not skipped"))
		}
		if hasLatest && latest.ID != t.storedId {
			res.Fail(fmt.Errorf("run.keep-latest: latest run changed from %d to %d without records", t.storedId, latest.ID))
		}
		if t.notifier.calls != callsBefore {
			res.Fail(fmt.Errorf("run.notify: notified without a stored run"))
		}
		return nil
	}

	if err != nil {
		res.Fail(fmt.Errorf("run.error: unexpected error %w", err))
		return nil
	}
	if !hasLatest || latest.ID != result.RunID {
		res.Fail(fmt.Errorf("run.stored: run %d is not the latest run", result.RunID))
		return nil
	}
	if !reflect.DeepEqual(latest.Records, t.page) {
		res.Fail(fmt.Errorf("run.records: stored %v, page had %v", latest.Records, t.page))
	}

	expected := applyChanges(t.stored, result.Changes)
	actual := applyChanges(latest.Records, snapshot.Changes{})
	if !reflect.DeepEqual(expected, actual) {
		res.Fail(fmt.Errorf("run.changes: replaying %+v on the previous run does not yield the current run", result.Changes))
	}

	notified := t.notifier.calls != callsBefore
	if notified == result.Changes.Empty() {
		res.Fail(fmt.Errorf("run.notify: notified=%v with changes %+v", notified, result.Changes))
	}
	if result.Notified != (notified && !t.notifier.broken) {
		res.Fail(fmt.Errorf("run.notified-flag: result says %v", result.Notified))
	}

	history, err := t.store.History(ctx, t.keep+10)
	if err != nil {
		return err
	}
	if len(history) > t.keep {
		res.Fail(fmt.Errorf("run.prune: %d runs retained, keep is %d", len(history), t.keep))
	}

	t.stored = append([]extract.Record{}, t.page...)
	t.storedId = result.RunID
	return nil
}

func (t *watchTarget) OnEnd(ctx context.Context, res *Results) {
	if t.runCount == 0 {
		return
	}
	if float64(t.runTimeExceeded)/float64(t.runCount) > 0.05 {
		res.Fail(fmt.Errorf(
			"run.time: more than 5%% of runs took longer than 50ms",
		))
	}
}
