package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSpec checks a standard 5-field expression or a descriptor such as
// "@daily" or "@every 1h".
func ParseSpec(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", spec, err)
	}
	return s, nil
}

// RobfigCronEngine adapts robfig/cron/v3 to the CronEngine interface.
type RobfigCronEngine struct {
	c *cron.Cron
}

// NewRobfigCronEngine creates a cron engine evaluating schedules in loc.
// A nil loc means time.Local.
func NewRobfigCronEngine(loc *time.Location) *RobfigCronEngine {
	if loc == nil {
		loc = time.Local
	}
	return &RobfigCronEngine{c: cron.New(cron.WithLocation(loc))}
}

func (r *RobfigCronEngine) AddFunc(spec string, cmd func()) (int, error) {
	id, err := r.c.AddFunc(spec, cmd)
	return int(id), err
}

func (r *RobfigCronEngine) Remove(id int) {
	r.c.Remove(cron.EntryID(id))
}

// Next returns the next activation of entry id, or the zero time when the
// engine is not running or the entry is unknown.
func (r *RobfigCronEngine) Next(id int) time.Time {
	return r.c.Entry(cron.EntryID(id)).Next
}

func (r *RobfigCronEngine) Start() {
	r.c.Start()
}

// Stop halts the scheduler and waits for running jobs to return.
func (r *RobfigCronEngine) Stop() {
	<-r.c.Stop().Done()
}
