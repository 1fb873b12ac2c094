package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"

	"github.com/robfig/cron/v3"
)

// ErrEmptyCommand is returned for a schedule without an operation.
var ErrEmptyCommand = errors.New("empty schedule command")

// ScheduleEntry defines the structure for a saved schedule. Command is an
// operation call line such as "set_charge_rate 40".
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler runs operation calls on cron schedules.
type Scheduler struct {
	cron          *cron.Cron
	store         map[cron.EntryID]ScheduleEntry
	caller        api.Caller
	eventBus      *core.EventBus
	mu            sync.RWMutex
	schedulesFile string
}

// NewScheduler creates a scheduler and loads saved schedules.
func NewScheduler(caller api.Caller, schedulesFile string, eb *core.EventBus) *Scheduler {
	s := &Scheduler{
		cron:          cron.New(),
		store:         make(map[cron.EntryID]ScheduleEntry),
		caller:        caller,
		eventBus:      eb,
		schedulesFile: schedulesFile,
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Cron scheduler started.")
}

// Stop halts the cron job ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Cron scheduler stopped.")
}

// Add creates a new cron job.
func (s *Scheduler) Add(spec, command string) (int, error) {
	if _, _, err := ParseCommand(command); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.store[id] = ScheduleEntry{Spec: spec, Command: command}
	s.save()
	log.Printf("[Scheduler] Added schedule (ID %d): %s -> %s", id, spec, command)
	s.publish()
	return int(id), nil
}

// Remove deletes a cron job.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	s.save()
	log.Printf("[Scheduler] Removed schedule (ID %d)", id)
	s.publish()
}

// GetAll returns a copy of the current schedules.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	newMap := make(map[cron.EntryID]ScheduleEntry, len(s.store))
	for k, v := range s.store {
		newMap[k] = v
	}
	return newMap
}

// ParseCommand splits a call line into the operation name and its arguments.
// Arguments that parse as numbers become Number, true/false become Boolean,
// anything else is Text.
func ParseCommand(command string) (string, core.Params, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil, ErrEmptyCommand
	}
	params := make(core.Params, 0, len(parts)-1)
	for _, arg := range parts[1:] {
		params = append(params, parseArg(arg))
	}
	return parts[0], params, nil
}

func parseArg(arg string) core.Primitive {
	if v, err := strconv.ParseFloat(arg, 64); err == nil {
		return core.Number(v)
	}
	if b, err := strconv.ParseBool(arg); err == nil && (arg == "true" || arg == "false") {
		return core.Bool(b)
	}
	return core.Text(arg)
}

func (s *Scheduler) execute(command string) {
	log.Printf("[Scheduler] Executing scheduled command: %s", command)
	method, params, err := ParseCommand(command)
	if err != nil {
		log.Printf("[Scheduler] Skipping schedule: %v", err)
		return
	}
	out, err := s.caller.Call(context.Background(), method, params)
	if err != nil {
		log.Printf("[Scheduler] Scheduled command '%s' failed: %v", command, err)
		return
	}
	log.Printf("[Scheduler] Scheduled command '%s' returned %v", command, out)
}

func (s *Scheduler) publish() {
	if s.eventBus != nil {
		s.eventBus.Publish(core.Event{Type: core.ScheduleChangedEvent})
	}
}

func (s *Scheduler) save() {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		log.Printf("[Scheduler] Error marshalling schedules: %v", err)
		return
	}
	if err := os.WriteFile(s.schedulesFile, data, 0644); err != nil {
		log.Printf("[Scheduler] Error writing schedule file: %v", err)
	}
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.schedulesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Scheduler] Error reading schedule file: %v", err)
		}
		return
	}

	tempStore := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &tempStore); err != nil {
		log.Printf("[Scheduler] Error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("[Scheduler] Loading %d schedules from file '%s'...", len(tempStore), s.schedulesFile)
	for _, entry := range tempStore {
		jobEntry := entry
		newID, err := s.cron.AddFunc(jobEntry.Spec, func() { s.execute(jobEntry.Command) })
		if err != nil {
			log.Printf("[Scheduler] Error re-adding schedule from file: %v", err)
			continue
		}
		s.store[newID] = jobEntry
	}
}
