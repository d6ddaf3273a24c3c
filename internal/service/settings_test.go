package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/model"
)

type mockSettingsRepo struct {
	values map[string][]byte
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{values: make(map[string][]byte)}
}

func (m *mockSettingsRepo) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mockSettingsRepo) Put(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func TestSettingsService_PromoBanner_Default(t *testing.T) {
	svc := NewSettingsService(newMockSettingsRepo())

	resp, err := svc.PromoBanner(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Enabled)
	assert.False(t, resp.Active)
	assert.Equal(t, "#000000", resp.BackgroundColor)
}

func TestSettingsService_UpdatePromoBanner(t *testing.T) {
	repo := newMockSettingsRepo()
	svc := NewSettingsService(repo)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	start, end := now.Add(-time.Hour), now.Add(time.Hour)

	resp, err := svc.UpdatePromoBanner(context.Background(), model.PromoBanner{
		Enabled: true, Text: " Summer sale ", BackgroundColor: "#f00", TextColor: "#FFFFFF",
		StartsAt: &start, EndsAt: &end,
	})
	require.NoError(t, err)
	assert.True(t, resp.Active)
	assert.Equal(t, "Summer sale", resp.Text)

	stored, err := svc.PromoBanner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Summer sale", stored.Text)
	assert.True(t, stored.Active)
}

func TestSettingsService_UpdatePromoBanner_Validation(t *testing.T) {
	svc := NewSettingsService(newMockSettingsRepo())
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		banner model.PromoBanner
	}{
		{"enabled without text", model.PromoBanner{Enabled: true}},
		{"bad color", model.PromoBanner{Text: "x", BackgroundColor: "red"}},
		{"window reversed", model.PromoBanner{Text: "x", StartsAt: &now, EndsAt: &earlier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdatePromoBanner(context.Background(), tt.banner)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
