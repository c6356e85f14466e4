package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kilianp07/depotcharge/config"
	"github.com/kilianp07/depotcharge/core/lpmodel"
	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/optimiser"
	"github.com/kilianp07/depotcharge/core/report"
	"github.com/kilianp07/depotcharge/core/runlog"
	"github.com/kilianp07/depotcharge/core/schedule"
	"github.com/kilianp07/depotcharge/infra/logger"
	"github.com/kilianp07/depotcharge/infra/metrics"
	"github.com/kilianp07/depotcharge/infra/mqtt"
	"github.com/kilianp07/depotcharge/internal/eventbus"
)

// Inputs are the parsed CSV inputs of a planning run.
type Inputs struct {
	Journeys []model.Journey
	Prices   []model.PricePoint
	// Capacity is the site capacity series, or the constant site limit.
	Capacity model.Capacity
}

// Scenario is the result of one category of a planning run.
type Scenario struct {
	Result  *optimiser.RangeResult
	Summary *report.Summary
	// Capacity is the site capacity the category was planned against.
	Capacity model.Capacity
	Elapsed  time.Duration
}

// Plan is the output of a planning run.
type Plan struct {
	RunID string
	// Name identifies the sweep scenario, empty for a plain run.
	Name      string
	Config    config.Config
	Rows      []model.Row
	Fleet     model.Fleet
	Initial   optimiser.State
	Scenarios map[model.Category]*Scenario
}

// Categories returns the planned categories in declaration order.
func (p *Plan) Categories() []model.Category {
	out := make([]model.Category, 0, len(p.Scenarios))
	for c := range p.Scenarios {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Service wires the planner with its sinks, stores and publishers.
type Service struct {
	cfg       config.Config
	log       logger.Logger
	sink      coremetrics.MetricsSink
	store     runlog.Store
	client    *mqtt.PahoClient
	publisher *mqtt.PlanPublisher
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, err
	}
	store, err := runlog.New(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	svc := &Service{cfg: *cfg, log: logg, sink: sink, store: store}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.publisher = mqtt.NewPlanPublisher(client, cfg.MQTT.TopicPrefix, cfg.Site.Name)
	}
	return svc, nil
}

// NewWith creates a Service around explicit collaborators. Nil values fall
// back to no-op implementations.
func NewWith(cfg config.Config, sink coremetrics.MetricsSink, store runlog.Store, pub mqtt.Publisher) *Service {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if store == nil {
		store = runlog.NopStore{}
	}
	svc := &Service{cfg: cfg, log: logger.New("service"), sink: sink, store: store}
	if pub != nil {
		svc.publisher = mqtt.NewPlanPublisher(pub, cfg.MQTT.TopicPrefix, cfg.Site.Name)
	}
	return svc
}

// Config returns the service configuration.
func (s *Service) Config() config.Config { return s.cfg }

// ServeMetrics exposes /metrics until ctx is done when a listen address is
// configured.
func (s *Service) ServeMetrics(ctx context.Context) {
	if s.cfg.Metrics.ListenAddr == "" {
		return
	}
	go func() {
		if err := metrics.StartPromServer(ctx, s.cfg.Metrics.ListenAddr, nil); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	return s.store.Close()
}

// LoadInputs reads the journeys, prices and capacity files.
func LoadInputs(cfg config.Config) (*Inputs, error) {
	loc := cfg.Inputs.Location()
	in := &Inputs{Capacity: model.ConstantCapacity(cfg.Site.CapacityKW)}

	read := func(path string, fn func(f *os.File) error) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if err := fn(f); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}
	if err := read(cfg.Inputs.Journeys, func(f *os.File) (err error) {
		in.Journeys, err = schedule.ReadJourneys(f, loc)
		return err
	}); err != nil {
		return nil, err
	}
	if err := read(cfg.Inputs.Prices, func(f *os.File) (err error) {
		in.Prices, err = schedule.ReadPrices(f, loc)
		return err
	}); err != nil {
		return nil, err
	}
	if cfg.Inputs.Capacity != "" {
		if err := read(cfg.Inputs.Capacity, func(f *os.File) (err error) {
			in.Capacity, err = schedule.ReadCapacity(f, loc, cfg.Site.CapacityKW)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Plan runs every configured category over the inputs.
func (s *Service) Plan(ctx context.Context, in *Inputs) (*Plan, error) {
	return s.plan(ctx, s.cfg, "", in)
}

// setup is the part of a run shared by planning and formulation.
type setup struct {
	rows     []model.Row
	fleet    model.Fleet
	cats     []model.Category
	params   optimiser.Params
	engine   *optimiser.Engine
	capacity model.Capacity
}

func (s *Service) prepare(cfg config.Config, scenario string, in *Inputs, log logger.Logger) (*setup, error) {
	rows, err := schedule.Build(in.Journeys, in.Prices, cfg.Schedule.Builder())
	if err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}
	ids := make([]model.VehicleID, 0, len(in.Journeys))
	for _, j := range in.Journeys {
		ids = append(ids, j.VehicleID)
	}
	fleet, err := cfg.Vehicles.BuildFleet(ids)
	if err != nil {
		return nil, err
	}
	cats, err := cfg.Optimiser.ParsedCategories()
	if err != nil {
		return nil, err
	}
	params := cfg.Optimiser.Params(cfg.Schedule)
	engine, err := optimiser.NewEngine(params, log)
	if err != nil {
		return nil, err
	}
	capacity := in.Capacity
	if scenario != "" && cfg.Site.CapacityKW != s.cfg.Site.CapacityKW {
		capacity = model.ConstantCapacity(cfg.Site.CapacityKW)
	}
	return &setup{rows: rows, fleet: fleet, cats: cats, params: params, engine: engine, capacity: capacity}, nil
}

func (s *Service) plan(ctx context.Context, cfg config.Config, name string, in *Inputs) (*Plan, error) {
	runID := uuid.NewString()
	log := logger.New("planner")
	st, err := s.prepare(cfg, name, in, log)
	if err != nil {
		return nil, err
	}
	rows, fleet, cats, params, engine, capacity := st.rows, st.fleet, st.cats, st.params, st.engine, st.capacity

	bus := eventbus.New()
	collectorCtx, stop := context.WithCancel(ctx)
	done := metrics.StartEventCollector(collectorCtx, bus, s.sink, log)
	defer func() {
		bus.Close()
		<-done
		stop()
	}()

	plan := &Plan{
		RunID:     runID,
		Name:      name,
		Config:    cfg,
		Rows:      rows,
		Fleet:     fleet,
		Initial:   cfg.Optimiser.Initial(fleet),
		Scenarios: make(map[model.Category]*Scenario, len(cats)),
	}
	log.Infof("run %s: %d rows, %d vehicles, categories %v", runID, len(rows), len(fleet), cats)
	for _, cat := range cats {
		start := time.Now()
		driver := optimiser.NewDriver(engine,
			optimiser.WithLogger(log),
			optimiser.WithBus(bus),
			optimiser.WithMetrics(s.sink),
			optimiser.WithRunID(runID),
		)
		scen := optimiser.NewScenario(cat, capacity)
		res, err := driver.OptimiseRange(ctx, optimiser.RangeInput{Rows: rows, Fleet: fleet, Scenario: scen, Initial: plan.Initial})
		elapsed := time.Since(start)
		if err != nil {
			s.appendRun(ctx, plan, cat, nil, elapsed, err)
			return nil, fmt.Errorf("%s: %w", cat, err)
		}
		sum, err := report.Summarise(report.Input{
			Rows:        rows,
			Result:      res,
			Fleet:       fleet,
			Scenario:    scen,
			SlotHours:   params.SlotHours(),
			WindowStart: params.WindowStart,
			Initial:     plan.Initial,
		})
		if err != nil {
			return nil, err
		}
		sc := &Scenario{Result: res, Summary: sum, Capacity: scen.Capacity, Elapsed: elapsed}
		plan.Scenarios[cat] = sc
		s.appendRun(ctx, plan, cat, sc, elapsed, nil)
	}
	return plan, nil
}

func (s *Service) appendRun(ctx context.Context, plan *Plan, cat model.Category, sc *Scenario, elapsed time.Duration, runErr error) {
	cfg := plan.Config
	rec := runlog.Record{
		RunID:        plan.RunID,
		Timestamp:    time.Now().UTC(),
		Scenario:     plan.Name,
		Category:     cat,
		SlowKW:       cfg.Optimiser.SlowKW,
		FastKW:       cfg.Optimiser.FastKW,
		FastChargers: cfg.Optimiser.FastChargers,
		CapacityKW:   cfg.Site.CapacityKW,
		DurationMS:   elapsed.Milliseconds(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if sc != nil {
		rec.Days = len(sc.Result.Days)
		rec.Levels = make(map[string]int, len(sc.Summary.Levels))
		for l, n := range sc.Summary.Levels {
			rec.Levels[l.String()] = n
		}
		rec.EnergyKWh = sc.Summary.EnergyKWh
		rec.Cost = sc.Summary.Cost
		rec.BadDays = sc.Result.BadDays
	}
	if err := s.store.Append(ctx, rec); err != nil {
		s.log.Warnf("run log append: %v", err)
	}
}

// Publish sends the optimised plan of every vehicle over MQTT. It is a no-op
// when no broker is configured.
func (s *Service) Publish(ctx context.Context, plan *Plan) error {
	if s.publisher == nil {
		return nil
	}
	sc, ok := plan.Scenarios[model.CategoryOpt]
	if !ok {
		return errors.New("publish: no optimised plan")
	}
	n, err := s.publisher.PublishPlan(ctx, plan.RunID, sc.Result.Rows)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	s.log.Infof("published %d vehicle plans", n)
	return nil
}

// Formulate plans cat up to the day before date and returns the linear
// program of date under formulation f, unsolved. A zero date selects the
// last day of the horizon.
func (s *Service) Formulate(ctx context.Context, in *Inputs, cat model.Category, date time.Time, f optimiser.Formulation) (*lpmodel.Model, error) {
	log := logger.New("planner")
	st, err := s.prepare(s.cfg, "", in, log)
	if err != nil {
		return nil, err
	}
	windowStart := st.params.WindowStart
	dates := schedule.Dates(st.rows, windowStart)
	if len(dates) == 0 {
		return nil, errors.New("formulate: no rows")
	}
	if date.IsZero() {
		date = dates[len(dates)-1]
	}
	want := schedule.DayOf(date.Add(windowStart), windowStart)
	idx := slices.IndexFunc(dates, func(d time.Time) bool { return d.Equal(want) })
	if idx < 0 {
		return nil, fmt.Errorf("formulate: no rows on %s", want.Format(time.DateOnly))
	}
	date = dates[idx]

	driver := optimiser.NewDriver(st.engine, optimiser.WithLogger(log))
	scen := optimiser.NewScenario(cat, st.capacity)
	initial := s.cfg.Optimiser.Initial(st.fleet)
	before := lo.Filter(st.rows, func(r model.Row, _ int) bool {
		return schedule.DayOf(r.Slot, windowStart).Before(date)
	})
	entering := initial
	if len(before) > 0 {
		res, err := driver.OptimiseRange(ctx, optimiser.RangeInput{Rows: before, Fleet: st.fleet, Scenario: scen, Initial: initial})
		if err != nil {
			return nil, err
		}
		entering = res.State
	}
	day := driver.PrepareDay(optimiser.RangeInput{Rows: st.rows, Fleet: st.fleet, Scenario: scen}, date, entering)
	return st.engine.Formulate(day, f)
}
