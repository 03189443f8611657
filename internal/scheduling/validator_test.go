package scheduling

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonths(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		from time.Time
		want time.Time
	}{
		{day(2025, 1, 6), day(2025, 7, 6)},
		{day(2025, 8, 31), day(2026, 2, 28)},
		{day(2023, 8, 31), day(2024, 2, 29)},
		{day(2025, 12, 31), day(2026, 6, 30)},
		{day(2025, 7, 31), day(2026, 1, 31)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, addMonths(tt.from, 6), "from %s", FormatDate(tt.from))
	}
}

func TestValidateReason(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   error
	}{
		{"empty", "", ErrInvalidReason},
		{"blank", "            ", ErrInvalidReason},
		{"nine characters", "Checkup!!", ErrInvalidReason},
		{"ten characters", "Check-up!!", nil},
		{"padding counts toward length", "  Checkup  ", nil},
		{"multibyte counted as characters", "Revisión médica", nil},
		{"five hundred", strings.Repeat("a", 500), nil},
		{"five hundred and one", strings.Repeat("a", 501), ErrInvalidReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReason(tt.reason)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
