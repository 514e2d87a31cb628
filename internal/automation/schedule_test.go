package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentd/internal/store"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"5m":  5 * time.Minute,
		"2h":  2 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseInterval_RejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "5", "5x", "-5m", "0m"} {
		_, err := parseInterval(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCronSchedule_AcceptsFiveAndSixField(t *testing.T) {
	_, err := parseCronSchedule("*/5 * * * *")
	assert.NoError(t, err)

	_, err = parseCronSchedule("0 */5 * * * *")
	assert.NoError(t, err)
}

func TestParseCronSchedule_RejectsGarbage(t *testing.T) {
	_, err := parseCronSchedule("not a cron expression")
	assert.Error(t, err)
}

func TestParseOnce_RoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	got, err := parseOnce(at.Format(time.RFC3339))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestValidateSchedule_Dispatches(t *testing.T) {
	assert.NoError(t, ValidateSchedule(store.ScheduleConfig{Type: store.ScheduleCron, Value: "* * * * *"}))
	assert.NoError(t, ValidateSchedule(store.ScheduleConfig{Type: store.ScheduleInterval, Value: "10m"}))
	assert.NoError(t, ValidateSchedule(store.ScheduleConfig{Type: store.ScheduleOnce, Value: time.Now().Format(time.RFC3339)}))
	assert.Error(t, ValidateSchedule(store.ScheduleConfig{Type: "bogus", Value: "x"}))
}
