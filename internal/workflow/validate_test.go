package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateSlots(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name    string
		times   []time.Time
		wantErr bool
	}{
		{"three future slots", []time.Time{now.Add(day), now.Add(2 * day), now.Add(3 * day)}, false},
		{"two slots", []time.Time{now.Add(day), now.Add(2 * day)}, true},
		{"no slots", nil, true},
		{"four slots", []time.Time{now.Add(day), now.Add(2 * day), now.Add(3 * day), now.Add(4 * day)}, true},
		{"past slot", []time.Time{now.Add(-time.Minute), now.Add(2 * day), now.Add(3 * day)}, true},
		{"slot equal to now", []time.Time{now, now.Add(2 * day), now.Add(3 * day)}, true},
		{"duplicate slot", []time.Time{now.Add(day), now.Add(day), now.Add(3 * day)}, true},
		{"zero slot", []time.Time{{}, now.Add(2 * day), now.Add(3 * day)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlots(tt.times, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCheckin(t *testing.T) {
	assert.ErrorIs(t, ValidateCheckin("too short"), ErrValidation)
	assert.ErrorIs(t, ValidateCheckin("   "+strings.Repeat("a", 19)+"   "), ErrValidation)
	assert.NoError(t, ValidateCheckin(strings.Repeat("a", 20)))
	// 文字数はバイト数ではなく文字単位で数える
	assert.ErrorIs(t, ValidateCheckin(strings.Repeat("資", 19)), ErrValidation)
	assert.NoError(t, ValidateCheckin(strings.Repeat("資", 20)))
}
