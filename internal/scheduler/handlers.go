package scheduler

import (
	"context"
	"sort"
	"strconv"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"

	"github.com/robfig/cron/v3"
)

// Operation names for schedule management.
const (
	MethodListSchedules  = "list_schedules"
	MethodAddSchedule    = "add_schedule"
	MethodRemoveSchedule = "remove_schedule"
)

// Handlers returns the schedule management operations.
func (s *Scheduler) Handlers() map[string]api.Handler {
	return map[string]api.Handler{
		MethodListSchedules: api.HandlerFunc(func(context.Context, core.Params) (core.Params, error) {
			return s.listParams(), nil
		}),
		MethodAddSchedule: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			spec, ok := params.TextAt(0)
			command, cmdOK := params.TextAt(1)
			if !ok || !cmdOK {
				return api.MissingParameter(MethodAddSchedule), nil
			}
			id, err := s.Add(spec, command)
			if err != nil {
				return api.Failure(err), nil
			}
			return core.Values(core.Number(float64(id))), nil
		}),
		MethodRemoveSchedule: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			id, ok := params.NumberAt(0)
			if !ok {
				return api.MissingParameter(MethodRemoveSchedule), nil
			}
			s.Remove(int(id))
			return api.Accepted(), nil
		}),
	}
}

// listParams flattens the schedules into "id spec|command" Text values,
// ordered by id.
func (s *Scheduler) listParams() core.Params {
	all := s.GetAll()
	ids := make([]int, 0, len(all))
	for id := range all {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	out := make(core.Params, 0, len(ids))
	for _, id := range ids {
		entry := all[cron.EntryID(id)]
		out = append(out, core.Text(strconv.Itoa(id)+" "+entry.Spec+"|"+entry.Command))
	}
	return out
}
