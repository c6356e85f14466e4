package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// Publisher sends raw payloads to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PlanSlot is one slot of a published vehicle plan.
type PlanSlot struct {
	Slot      time.Time   `json:"slot"`
	EnergyKWh float64     `json:"energy_kwh"`
	PowerKW   float64     `json:"power_kw"`
	FastTier  bool        `json:"fast_tier,omitempty"`
	Level     model.Level `json:"level"`
}

// PlanMessage is the retained payload of depot/<site>/plan/<vehicle>.
type PlanMessage struct {
	RunID       string          `json:"run_id"`
	Site        string          `json:"site"`
	VehicleID   model.VehicleID `json:"vehicle_id"`
	Category    model.Category  `json:"category"`
	GeneratedAt time.Time       `json:"generated_at"`
	Slots       []PlanSlot      `json:"slots"`
}

// PlanPublisher publishes one plan message per vehicle.
type PlanPublisher struct {
	pub    Publisher
	prefix string
	site   string
	now    func() time.Time
}

// NewPlanPublisher creates a PlanPublisher writing below prefix/site.
func NewPlanPublisher(pub Publisher, prefix, site string) *PlanPublisher {
	if prefix == "" {
		prefix = "depot"
	}
	return &PlanPublisher{pub: pub, prefix: prefix, site: site, now: time.Now}
}

// Topic returns the plan topic of a vehicle.
func (p *PlanPublisher) Topic(id model.VehicleID) string {
	return fmt.Sprintf("%s/%s/plan/%s", p.prefix, p.site, id)
}

// PublishPlan groups rows per vehicle and publishes each plan in vehicle
// order. It stops at the first failure or when ctx is done.
func (p *PlanPublisher) PublishPlan(ctx context.Context, runID string, rows []model.OutputRow) (int, error) {
	byVehicle := make(map[model.VehicleID][]model.OutputRow)
	for _, r := range rows {
		byVehicle[r.VehicleID] = append(byVehicle[r.VehicleID], r)
	}
	ids := make([]model.VehicleID, 0, len(byVehicle))
	for id := range byVehicle {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		vr := byVehicle[id]
		msg := PlanMessage{
			RunID:       runID,
			Site:        p.site,
			VehicleID:   id,
			Category:    vr[0].Category,
			GeneratedAt: p.now().UTC(),
			Slots:       make([]PlanSlot, 0, len(vr)),
		}
		for _, r := range vr {
			msg.Slots = append(msg.Slots, PlanSlot{Slot: r.Slot, EnergyKWh: r.EnergyKWh, PowerKW: r.PowerKW, FastTier: r.FastTier, Level: r.Level})
		}
		sort.Slice(msg.Slots, func(i, j int) bool { return msg.Slots[i].Slot.Before(msg.Slots[j].Slot) })
		payload, err := json.Marshal(msg)
		if err != nil {
			return sent, err
		}
		if err := p.pub.Publish(p.Topic(id), payload); err != nil {
			return sent, fmt.Errorf("vehicle %s: %w", id, err)
		}
		sent++
	}
	return sent, nil
}

// MockPublisher records payloads by topic. It is used in tests.
type MockPublisher struct {
	Messages map[string][]byte
	Fail     map[string]error
	mu       sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make(map[string][]byte), Fail: make(map[string]error)}
}

// Publish records the payload or returns the configured failure.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[topic]; err != nil {
		return err
	}
	m.Messages[topic] = append([]byte(nil), payload...)
	return nil
}
