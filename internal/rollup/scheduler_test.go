package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before today's run",
			now:  time.Date(2026, 8, 27, 3, 30, 0, 0, time.UTC),
			want: time.Date(2026, 8, 27, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "after today's run",
			now:  time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at run time rolls to tomorrow",
			now:  time.Date(2026, 8, 27, 7, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC),
			want: time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextRun(tt.now, 7, 0))
		})
	}
}
