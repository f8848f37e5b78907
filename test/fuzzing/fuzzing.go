package fuzzing

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/telemetry"
	"math/rand"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Target is a stateful object under test. Its mutations are exposed as methods
// named `Step*` with the signature:
//
//	func(ctx context.Context, res *Results) error
//
// A step returns an error only for violated invariants or a broken test
// setup. Faults injected into dependencies are expected and must not be
// returned. Checks that span the whole path (latency) belong in an optional
// `OnEnd(ctx context.Context, res *Results)` method.
type Target interface{}

type TargetProvider interface {
	CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error)
}

var (
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	resultsType = reflect.TypeOf(&Results{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

type boundStep struct {
	name string
	fn   reflect.Value
}

func (s boundStep) call(ctx context.Context, res *Results) error {
	out := s.fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(res)})
	if len(out) == 0 || out[0].IsNil() {
		return nil
	}
	return out[0].Interface().(error)
}

// bind returns the target's steps sorted by name and its OnEnd hook, if any.
func bind(target Target) (steps []boundStep, onEnd *boundStep) {
	value := reflect.ValueOf(target)
	typ := value.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		fnType := method.Func.Type()
		if fnType.NumIn() != 3 || fnType.In(1) != ctxType || fnType.In(2) != resultsType {
			continue
		}
		bound := boundStep{name: method.Name, fn: value.Method(i)}

		switch {
		case method.Name == "OnEnd" && fnType.NumOut() == 0:
			onEnd = &bound
		case strings.HasPrefix(method.Name, "Step") && fnType.NumOut() == 1 && fnType.Out(0) == errorType:
			steps = append(steps, bound)
		}
	}
	return steps, onEnd
}

// Results collects the check failures of a single path.
type Results struct {
	failures []error
}

func (r *Results) Fail(err error) {
	r.failures = append(r.failures, err)
}

func (r *Results) Failures() []error {
	return r.failures
}

// F runs paths against the targets of a provider.
type F struct {
	tel      telemetry.API
	provider TargetProvider
	stepName []string

	minSteps int64
	maxSteps int64
}

func New(tel telemetry.API, provider TargetProvider, minSteps, maxSteps uint64) (F, error) {
	target, err := provider.CreateTarget(telemetry.NoopAPI{}, rand.New(rand.NewSource(0)))
	if err != nil {
		return F{}, err
	}
	steps, _ := bind(target)
	if len(steps) == 0 {
		return F{}, fmt.Errorf("target %T has no steps", target)
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}

	return F{
		tel:      telemetry.NewScopedAPI("fuzzer", tel),
		provider: provider,
		stepName: names,
		minSteps: int64(minSteps),
		maxSteps: int64(maxSteps),
	}, nil
}

// Steps lists the step names of the target in the order paths index them.
func (f F) Steps() []string {
	return f.stepName
}

// RunPath replays a path (seed and step count) and returns the check failures
// it produced. A non-nil error means a step found a violated invariant or
// the target could not be set up.
func (f F) RunPath(ctx context.Context, path Path) ([]error, error) {
	return f.run(ctx, f.tel, path)
}

func (f F) run(ctx context.Context, tel telemetry.API, path Path) ([]error, error) {
	rndm := rand.New(rand.NewSource(path.Seed))
	target, err := f.provider.CreateTarget(tel, rndm)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	steps, onEnd := bind(target)

	res := &Results{}
	for i := int64(0); i < path.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := steps[rndm.Intn(len(steps))]
		if err := step.call(ctx, res); err != nil {
			return nil, fmt.Errorf("step %d %s: %w", i, step.name, err)
		}
	}
	if onEnd != nil {
		onEnd.call(ctx, res)
	}
	return res.Failures(), nil
}

func (f F) randomPath() Path {
	seed := rand.Int63()
	steps := f.minSteps
	if f.maxSteps > f.minSteps {
		steps += rand.New(rand.NewSource(seed)).Int63n(f.maxSteps - f.minSteps)
	}
	return Path{Seed: seed, Steps: steps}
}

// Explore runs random paths on every cpu until one of them fails or ctx is
// done. It returns the failing path so it can be replayed with RunPath.
func (f F) Explore(ctx context.Context) (Path, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once    sync.Once
		failed  Path
		failure error
		count   atomic.Uint64
		wg      sync.WaitGroup
	)
	report := func(path Path, err error) {
		once.Do(func() {
			failed = path
			failure = err
			cancel()
		})
	}

	workers := runtime.NumCPU()
	f.tel.ReportDebug("exploring", "workers", workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				path := f.randomPath()
				failures, err := f.run(ctx, telemetry.NoopAPI{}, path)
				if errors.Is(err, context.Canceled) {
					return
				}
				if err == nil && len(failures) > 0 {
					err = errors.Join(failures...)
				}
				if err != nil {
					report(path, err)
					return
				}
				count.Add(1)
			}
		}()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			if failure != nil {
				f.tel.ReportBroken("path failed", telemetry.KV{Key: "path", Value: failed.String()}, failure)
			}
			return failed, failure
		case <-ticker.C:
			f.tel.ReportDebug("paths explored", "count", count.Load())
		}
	}
}

// Path identifies a reproducible run: the seed of the step choices and the
// number of steps taken.
type Path struct {
	Seed  int64
	Steps int64
}

func (p *Path) String() string {
	return fmt.Sprintf("%d:%d", p.Seed, p.Steps)
}

// Set parses a path in the form `seed:steps`.
func (p *Path) Set(text string) error {
	seedText, stepsText, ok := strings.Cut(text, ":")
	if !ok || strings.Contains(stepsText, ":") {
		return fmt.Errorf("parse fuzz path: expected seed:steps, got '%s'", text)
	}
	seed, err := strconv.ParseInt(seedText, 10, 64)
	if err != nil {
		return fmt.Errorf("parse fuzz path: %w", err)
	}
	steps, err := strconv.ParseInt(stepsText, 10, 64)
	if err != nil {
		return fmt.Errorf("parse fuzz path: %w", err)
	}
	*p = Path{Seed: seed, Steps: steps}
	return nil
}

func (p *Path) Type() string {
	return "path"
}
