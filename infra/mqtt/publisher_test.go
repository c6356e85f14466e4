package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/depotcharge/core/model"
)

func planRows() []model.OutputRow {
	t0 := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	return []model.OutputRow{
		{Slot: t0.Add(30 * time.Minute), VehicleID: "v2", Category: model.CategoryOpt, EnergyKWh: 3.5, PowerKW: 7, Level: model.LevelMain},
		{Slot: t0, VehicleID: "v1", Category: model.CategoryOpt, EnergyKWh: 1, PowerKW: 2, Level: model.LevelMain},
		{Slot: t0, VehicleID: "v2", Category: model.CategoryOpt, EnergyKWh: 0, Level: model.LevelMain},
	}
}

func TestPlanPublisher_PublishPlan(t *testing.T) {
	mock := NewMockPublisher()
	pp := NewPlanPublisher(mock, "", "north")
	pp.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }

	n, err := pp.PublishPlan(context.Background(), "run-1", planRows())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Contains(t, mock.Messages, "depot/north/plan/v1")
	require.Contains(t, mock.Messages, "depot/north/plan/v2")

	var msg PlanMessage
	require.NoError(t, json.Unmarshal(mock.Messages["depot/north/plan/v2"], &msg))
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, model.VehicleID("v2"), msg.VehicleID)
	assert.Equal(t, model.CategoryOpt, msg.Category)
	require.Len(t, msg.Slots, 2)
	assert.True(t, msg.Slots[0].Slot.Before(msg.Slots[1].Slot))
	assert.InDelta(t, 7, msg.Slots[1].PowerKW, 1e-9)
}

func TestPlanPublisher_StopsOnFailure(t *testing.T) {
	mock := NewMockPublisher()
	boom := errors.New("broker down")
	mock.Fail["site/a/plan/v1"] = boom
	pp := NewPlanPublisher(mock, "site", "a")

	n, err := pp.PublishPlan(context.Background(), "r", planRows())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
	assert.Empty(t, mock.Messages)
}

func TestPlanPublisher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := NewPlanPublisher(NewMockPublisher(), "depot", "a").PublishPlan(ctx, "r", planRows())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
