package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{in: "2025-03", want: Month{Year: 2025, Month: time.March}},
		{in: "1999-12", want: Month{Year: 1999, Month: time.December}},
		{in: "2025-13", wantErr: true},
		{in: "2025-3", wantErr: true},
		{in: "03-2025", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMonth(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, got.String())
		})
	}
}

func TestMonth_LastDay(t *testing.T) {
	assert.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), Month{2025, time.March}.LastDay())
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), Month{2024, time.February}.LastDay())
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), Month{2025, time.February}.LastDay())
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), Month{2025, time.December}.LastDay())
}

func TestMonth_Key(t *testing.T) {
	assert.Equal(t, "202503", Month{2025, time.March}.Key())
}

func TestMonth_Text(t *testing.T) {
	var m Month
	require.NoError(t, m.UnmarshalText([]byte("2025-11")))
	assert.Equal(t, Month{2025, time.November}, m)
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-11", string(b))
	assert.Error(t, m.UnmarshalText([]byte("nope")))
}
