package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidbz/hearth/internal/observability"
)

const timeLayout = "2006-01-02 15:04:05"

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid tools timezone %q: %w", name, err)
	}
	return loc, nil
}

// CurrentTime reports the current date and time.
type CurrentTime struct {
	loc *time.Location
	now func() time.Time
}

// NewCurrentTime creates the tool. A nil now uses time.Now.
func NewCurrentTime(loc *time.Location, now func() time.Time) *CurrentTime {
	if now == nil {
		now = time.Now
	}
	return &CurrentTime{loc: loc, now: now}
}

func (t *CurrentTime) Name() string { return "get_current_time" }

func (t *CurrentTime) Description() string {
	return "Get the current date and time in the user's timezone"
}

func (t *CurrentTime) Parameters() map[string]any { return map[string]any{} }

func (t *CurrentTime) Execute(context.Context, json.RawMessage) (string, error) {
	return t.now().In(t.loc).Format(timeLayout), nil
}

// Alarm is one alarm requested by the assistant.
type Alarm struct {
	At    time.Time
	SetAt time.Time
}

// AlarmBook records alarms in process memory.
type AlarmBook struct {
	mu     sync.Mutex
	alarms []Alarm
}

// NewAlarmBook creates an empty book.
func NewAlarmBook() *AlarmBook {
	return &AlarmBook{}
}

func (b *AlarmBook) add(a Alarm) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alarms = append(b.alarms, a)
}

// List returns the recorded alarms in the order they were set.
func (b *AlarmBook) List() []Alarm {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Alarm(nil), b.alarms...)
}

// SetAlarm records an alarm at an ISO-8601 time.
type SetAlarm struct {
	loc    *time.Location
	alarms *AlarmBook
}

// NewSetAlarm creates the tool. Times without an offset are read in loc.
func NewSetAlarm(loc *time.Location, alarms *AlarmBook) *SetAlarm {
	if alarms == nil {
		alarms = NewAlarmBook()
	}
	return &SetAlarm{loc: loc, alarms: alarms}
}

func (t *SetAlarm) Name() string { return "set_alarm" }

func (t *SetAlarm) Description() string {
	return "Set a user alarm for the given time, provided in ISO-8601 format"
}

func (t *SetAlarm) Parameters() map[string]any {
	return map[string]any{
		"time": map[string]any{
			"type":        "string",
			"description": "Alarm time in ISO-8601 format, e.g. 2025-06-01T07:30:00",
		},
	}
}

func (t *SetAlarm) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if params.Time == "" {
		return "", errors.New("time is required")
	}

	at, err := t.parse(params.Time)
	if err != nil {
		return "", err
	}

	t.alarms.add(Alarm{At: at, SetAt: time.Now()})
	observability.FromContext(ctx).Info("alarm set", observability.String("at", at.Format(time.RFC3339)))
	return "Alarm set for " + at.Format(timeLayout), nil
}

func (t *SetAlarm) parse(value string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, value); err == nil {
		return at.In(t.loc), nil
	}
	at, err := time.ParseInLocation("2006-01-02T15:04:05", value, t.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q is not ISO-8601", value)
	}
	return at, nil
}
