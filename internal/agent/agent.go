package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"powertools-agent/internal/api"
	"powertools-agent/internal/battery"
	"powertools-agent/internal/config"
	"powertools-agent/internal/core"
	"powertools-agent/internal/lua"
	"powertools-agent/internal/mqtt"
	"powertools-agent/internal/scheduler"
	"powertools-agent/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Agent wires the owner, its operations and every transport together.
type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup

	eventBus *core.EventBus
	driver   battery.Driver
	writer   *battery.Writer
	owner    *Owner
	registry *api.Registry

	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	driver, err := buildDriver(cfg.Battery)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:      ctx,
		cancel:   cancel,
		config:   cfg,
		eventBus: core.NewEventBus(),
		driver:   driver,
	}

	a.writer = battery.NewWriter(ctx, driver, cfg.Battery.WriteRateLimit, cfg.Battery.WriteBurst)
	a.owner = NewOwner(cfg.QueueSize, a.writer, a.eventBus)
	a.registry = api.NewRegistry(a.owner.Sender(), driver)

	a.luaEngine = lua.NewEngine(ctx, a.registry, cfg.ScriptsDir, a.eventBus)
	a.scheduler = scheduler.NewScheduler(a.registry, cfg.SchedulesFile, a.eventBus)
	register(a.registry, a.luaEngine.Handlers())
	register(a.registry, a.scheduler.Handlers())

	a.server = server.NewServer(
		ctx,
		a.registry,
		a.eventBus,
		cfg.Server.Port,
		cfg.Server.WebFilesDir,
		cfg.Server.AllowedOrigins,
	)

	// Optional; nil when disabled.
	a.mqttClient = mqtt.NewClient(cfg, a.registry, a.eventBus)

	log.Printf("[Agent] Registered operations: %v", a.registry.Names())
	return a, nil
}

// Registry returns the operation registry.
func (a *Agent) Registry() *api.Registry { return a.registry }

// Run starts every component and blocks while the owner is running.
func (a *Agent) Run() {
	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT Setup Error: %v", err)
			}
		}()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.mqttClient.Run(a.ctx)
		}()
	}

	a.scheduler.Start()

	log.Printf("Agent running on http://localhost:%s", a.config.Server.Port)
	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			log.Printf("[Agent] Server error: %v", err)
		}
	}()

	a.wg.Add(1)
	defer a.wg.Done()
	a.owner.Run(a.ctx)
}

// Shutdown stops the inputs first so no new commands arrive, then the owner.
// Callers still waiting on the owner get core.ErrChannelClosed.
func (a *Agent) Shutdown() {
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("[Agent] Server shutdown error: %v", err)
	}

	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}

	a.cancel()
	a.wg.Wait()
	<-a.writer.Done()
	<-a.luaEngine.Done()
}

func register(r *api.Registry, handlers map[string]api.Handler) {
	for name, h := range handlers {
		r.Register(name, h)
	}
}

func buildDriver(cfg config.BatteryConfig) (battery.Driver, error) {
	switch cfg.Driver {
	case "sysfs":
		return battery.NewSysfs(battery.SysfsPaths{
			CurrentNow:   cfg.CurrentNowPath,
			ChargeNow:    cfg.ChargeNowPath,
			ChargeFull:   cfg.ChargeFullPath,
			ChargeDesign: cfg.ChargeDesignPath,
			ChargeRate:   cfg.ChargeRatePath,
			ChargeMode:   cfg.ChargeModePath,
		}, cfg.Scale, cfg.DefaultRate, cfg.DefaultMode), nil
	case "dummy":
		return battery.NewDummy(), nil
	}
	return nil, fmt.Errorf("unknown battery driver '%s'", cfg.Driver)
}
