package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// SamplePlant returns a fully populated identification.
func SamplePlant() core.PlantInfo {
	return core.PlantInfo{
		CommonName:     "Swiss Cheese Plant",
		ScientificName: "Monstera deliciosa",
		Family:         "Araceae",
		Characteristics: core.Characteristics{
			Appearance:  "Large glossy leaves with natural holes",
			GrowthHabit: "Climbing evergreen vine",
			Toxicity:    "Toxic to cats and dogs if ingested",
		},
		Care: core.Care{
			Light: "Bright indirect light",
			Water: "Water when the top 5cm of soil is dry",
			Soil:  "Chunky, well-draining aroid mix",
		},
		Facts: []string{
			"Native to tropical forests of southern Mexico",
			"The fruit is edible when fully ripe",
		},
	}
}

// SamplePlantJSON returns SamplePlant encoded the way the model answers.
func SamplePlantJSON() string {
	data, _ := json.Marshal(SamplePlant())
	return string(data)
}

// FakeModel is a scriptable core.PlantModel.
type FakeModel struct {
	mu       sync.Mutex
	ModelID  string
	Response string
	Err      error
	calls    int
	last     core.Image
}

// NewFakeModel returns a model that answers with SamplePlantJSON.
func NewFakeModel() *FakeModel {
	return &FakeModel{ModelID: "fake-model", Response: SamplePlantJSON()}
}

func (m *FakeModel) Name() string { return m.ModelID }

func (m *FakeModel) Generate(ctx context.Context, _ string, img core.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = img
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Response, m.Err
}

// Calls returns how many times Generate ran.
func (m *FakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastImage returns the image passed to the most recent Generate.
func (m *FakeModel) LastImage() core.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// FakeSender records feedback instead of delivering it.
type FakeSender struct {
	mu   sync.Mutex
	Err  error
	sent []core.Feedback
}

func (s *FakeSender) Name() string { return "fake" }

func (s *FakeSender) Send(_ context.Context, fb core.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, fb)
	return nil
}

// Sent returns a copy of delivered feedback.
func (s *FakeSender) Sent() []core.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Feedback(nil), s.sent...)
}
