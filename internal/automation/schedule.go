package automation

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/store"
)

// cronParser accepts both the standard 5-field expression and robfig's
// 6-field-with-seconds form, mirroring the teacher's addEntryLocked
// detection so operators can use either.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// parseCronSchedule normalizes a 5 or 6 field cron expression and returns
// the parsed cron.Schedule used to compute next-fire times.
func parseCronSchedule(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	normalized := expr
	if len(fields) == 5 {
		normalized = "0 " + expr
	}
	sched, err := cronParser.Parse(normalized)
	if err != nil {
		return nil, apperr.Validation("invalid cron expression %q: %v", expr, err)
	}
	return sched, nil
}

// parseInterval parses spec §4.7's "N{s,m,h,d}" interval value.
func parseInterval(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, apperr.Validation("interval value must not be empty")
	}
	unit := value[len(value)-1]
	numPart := value[:len(value)-1]
	var mult time.Duration
	switch unit {
	case 's':
		mult = time.Second
	case 'm':
		mult = time.Minute
	case 'h':
		mult = time.Hour
	case 'd':
		mult = 24 * time.Hour
	default:
		return 0, apperr.Validation("interval value %q must end in one of s,m,h,d", value)
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("interval value %q must start with a positive integer", value)
	}
	return time.Duration(n) * mult, nil
}

// parseOnce parses spec §4.7's once-trigger instant, an RFC3339 timestamp.
func parseOnce(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.Validation("invalid once timestamp %q: %v", value, err)
	}
	return t, nil
}

// ValidateSchedule checks a ScheduleConfig's value is well formed for its
// declared type, without registering anything. Used by the automation
// CRUD surface (C9) to reject malformed schedules at create/update time.
func ValidateSchedule(cfg store.ScheduleConfig) error {
	switch cfg.Type {
	case store.ScheduleCron:
		_, err := parseCronSchedule(cfg.Value)
		return err
	case store.ScheduleInterval:
		_, err := parseInterval(cfg.Value)
		return err
	case store.ScheduleOnce:
		_, err := parseOnce(cfg.Value)
		return err
	default:
		return apperr.Validation("unknown schedule type %q", cfg.Type)
	}
}
