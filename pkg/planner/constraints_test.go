package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLimits(t *testing.T) {
	tests := []struct {
		name        string
		constraints map[string]string
		want        Limits
	}{
		{
			name: "defaults when unset",
			want: DefaultLimits(),
		},
		{
			name: "configured values",
			constraints: map[string]string{
				KeyMaxShiftsPerWeek:     "3",
				KeyMaxSameTitlePerMonth: " 1 ",
			},
			want: Limits{MaxShiftsPerWeek: 3, MaxSameTitlePerMonth: 1},
		},
		{
			name:        "legacy monthly key",
			constraints: map[string]string{"max_same_film_per_month": "4"},
			want:        Limits{MaxShiftsPerWeek: 2, MaxSameTitlePerMonth: 4},
		},
		{
			name: "current key wins over legacy",
			constraints: map[string]string{
				KeyMaxSameTitlePerMonth:   "1",
				"max_same_film_per_month": "4",
			},
			want: Limits{MaxShiftsPerWeek: 2, MaxSameTitlePerMonth: 1},
		},
		{
			name: "invalid values fall back",
			constraints: map[string]string{
				KeyMaxShiftsPerWeek:       "many",
				KeyMaxSameTitlePerMonth:   "-1",
				"max_same_film_per_month": "5",
			},
			want: Limits{MaxShiftsPerWeek: 2, MaxSameTitlePerMonth: 5},
		},
		{
			name:        "zero is a valid limit",
			constraints: map[string]string{KeyMaxShiftsPerWeek: "0"},
			want:        Limits{MaxShiftsPerWeek: 0, MaxSameTitlePerMonth: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStore()
			for k, v := range tt.constraints {
				m.constraints[k] = v
			}
			got, err := LoadLimits(context.Background(), m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadLimits_Error(t *testing.T) {
	m := newMemStore()
	m.failures["GetConstraint"] = []error{errBoom}

	_, err := LoadLimits(context.Background(), m)
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), KeyMaxShiftsPerWeek)
}
