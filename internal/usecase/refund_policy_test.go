package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTieredRefundPolicy(t *testing.T) {
	policy := TieredRefundPolicy{}

	tests := []struct {
		name string
		in   RefundInput
		want int64
	}{
		{"nothing paid", RefundInput{AmountPaid: 0, DaysBeforeEvent: 30, Cause: CauseClient}, 0},
		{"client 14 days out", RefundInput{AmountPaid: 1_000, DaysBeforeEvent: 14, Cause: CauseClient}, 1_000},
		{"client 13 days out", RefundInput{AmountPaid: 1_000, DaysBeforeEvent: 13, Cause: CauseClient}, 500},
		{"client 7 days out", RefundInput{AmountPaid: 1_001, DaysBeforeEvent: 7, Cause: CauseClient}, 500},
		{"client 6 days out", RefundInput{AmountPaid: 1_000, DaysBeforeEvent: 6, Cause: CauseClient}, 0},
		{"artist on the day", RefundInput{AmountPaid: 1_000, DaysBeforeEvent: 0, Cause: CauseArtist}, 1_000},
		{"platform on the day", RefundInput{AmountPaid: 1_000, DaysBeforeEvent: 0, Cause: CausePlatform}, 1_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.RefundFor(tt.in))
		})
	}
}

func TestDaysBefore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, daysBefore(now.Add(-time.Hour), now))
	assert.Equal(t, 0, daysBefore(now.Add(23*time.Hour), now))
	assert.Equal(t, 1, daysBefore(now.Add(25*time.Hour), now))
	assert.Equal(t, 14, daysBefore(now.AddDate(0, 0, 14), now))
}
