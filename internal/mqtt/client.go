// Package mqtt bridges the charge operations to an MQTT broker with optional
// Home Assistant discovery.
package mqtt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"powertools-agent/internal/api"
	"powertools-agent/internal/config"
	"powertools-agent/internal/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const callTimeout = 5 * time.Second

// Readings published on every poll, each to "<name>/state".
var telemetryMethods = []string{
	api.MethodCurrentNow,
	api.MethodChargeNow,
	api.MethodChargeFull,
	api.MethodChargeDesign,
}

type Client struct {
	client       mqtt.Client
	cfg          config.MQTTConfig
	caller       api.Caller
	eventBus     *core.EventBus
	prefix       string
	pollInterval time.Duration
}

// NewClient returns nil when MQTT is disabled.
func NewClient(cfg *config.Config, caller api.Caller, eb *core.EventBus) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep retrying at startup so a broker that comes up later is still reached.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)

	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:          cfg.MQTT,
		caller:       caller,
		eventBus:     eb,
		prefix:       prefix,
		pollInterval: cfg.PollInterval(),
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect starts the connection loop and waits for the first attempt.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.Broker)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Disconnect publishes the offline status, then closes the connection.
func (c *Client) Disconnect() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] Disconnecting...")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
		}
	} else {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected.")
}

// Run publishes charge setting changes and polls telemetry until ctx is done.
func (c *Client) Run(ctx context.Context) {
	var events core.Subscriber
	if c.eventBus != nil {
		events = c.eventBus.Subscribe(core.ChargeRateChangedEvent, core.ChargeModeChangedEvent)
		defer c.eventBus.Unsubscribe(events, core.ChargeRateChangedEvent, core.ChargeModeChangedEvent)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch p := ev.Payload.(type) {
			case core.ChargeRatePayload:
				c.Publish("charge_rate/state", statePayload(core.OptionalUint(p.Rate)), true)
			case core.ChargeModePayload:
				c.Publish("charge_mode/state", statePayload(core.OptionalText(p.Mode)), true)
			}
		case <-ticker.C:
			c.pollTelemetry(ctx)
		}
	}
}

func (c *Client) Publish(subtopic string, payload any, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	token := c.client.Publish(topic, 0, retained, fmt.Sprintf("%v", payload))

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

// onConnect runs on the paho event goroutine.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	topics := map[string]mqtt.MessageHandler{
		"charge_rate/set": c.handleChargeRate,
		"charge_mode/set": c.handleChargeMode,
	}
	for sub, handler := range topics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	// Discovery and state lookups go through the owner queue; keep them off
	// the paho goroutine.
	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
		c.publishChargeState()
		c.pollTelemetry(context.Background())
	}()
}

// PublishHADiscovery sends a sensor config per charge setting and reading.
func (c *Client) PublishHADiscovery() {
	for topic, payload := range discoveryConfigs(c.cfg.HADiscoveryPrefix, c.cfg.ClientID, c.prefix) {
		c.client.Publish(topic, 0, true, payload)
	}
	log.Printf("[MQTT] HA Discovery sent under %s", c.cfg.HADiscoveryPrefix)
}

func (c *Client) handleChargeRate(_ mqtt.Client, msg mqtt.Message) {
	method, params, ok := rateCommand(msg.Payload())
	if !ok {
		log.Printf("[MQTT] Ignoring charge rate payload %q", msg.Payload())
		return
	}
	c.dispatch(method, params)
}

func (c *Client) handleChargeMode(_ mqtt.Client, msg mqtt.Message) {
	method, params, _ := modeCommand(msg.Payload())
	c.dispatch(method, params)
}

func (c *Client) dispatch(method string, params core.Params) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	out, err := c.caller.Call(ctx, method, params)
	if err != nil {
		log.Printf("[MQTT] %s failed: %v", method, err)
		return
	}
	if s, ok := out.At(0).AsText(); ok && strings.HasSuffix(s, "missing parameter") {
		log.Printf("[MQTT] %s rejected: %s", method, s)
	}
}

// publishChargeState publishes the current settings so retained topics match
// the owner after a reconnect.
func (c *Client) publishChargeState() {
	for method, topic := range map[string]string{
		api.MethodGetChargeRate: "charge_rate/state",
		api.MethodGetChargeMode: "charge_mode/state",
	} {
		if v, ok := c.query(context.Background(), method); ok {
			c.Publish(topic, statePayload(v), true)
		}
	}
}

func (c *Client) pollTelemetry(ctx context.Context) {
	for _, method := range telemetryMethods {
		if v, ok := c.query(ctx, method); ok {
			c.Publish(method+"/state", statePayload(v), false)
		}
	}
}

func (c *Client) query(ctx context.Context, method string) (core.Primitive, bool) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	out, err := c.caller.Call(ctx, method, nil)
	if err != nil {
		log.Printf("[MQTT] %s failed: %v", method, err)
		return core.Primitive{}, false
	}
	return out.At(0), true
}
