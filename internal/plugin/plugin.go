package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/render"
)

// Options are the values the host passes on the command line.
type Options struct {
	Port          int
	UUID          string
	RegisterEvent string

	// Info is the host's JSON description of itself and its devices.
	Info string

	// Host defaults to 127.0.0.1.
	Host string

	HandshakeTimeout time.Duration
}

// Plugin is a connected plugin session.
type Plugin struct {
	opts     Options
	registry *Registry
	log      *zerolog.Logger

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
	conn    *websocket.Conn

	mu        sync.Mutex
	ctx       context.Context
	instances map[action.ContextID]*instance
	global    action.Settings
}

// instance is one tile on the host.
type instance struct {
	uuid   string
	action action.Action
}

// Dial connects to the host and registers the plugin.
func Dial(ctx context.Context, opts Options, registry *Registry) (*Plugin, error) {
	if opts.Port <= 0 {
		return nil, fmt.Errorf("invalid port %d", opts.Port)
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))}
	d := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to host: %w", err)
	}

	p := &Plugin{
		opts:      opts,
		registry:  registry,
		log:       logger.WithComponent("plugin"),
		conn:      conn,
		ctx:       ctx,
		instances: make(map[action.ContextID]*instance),
	}

	if err := p.send(outbound{Event: opts.RegisterEvent, UUID: opts.UUID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register plugin: %w", err)
	}
	if err := p.GetGlobalSettings(); err != nil {
		p.log.Warn().Err(err).Msg("request global settings")
	}

	p.log.Info().Str("url", u.String()).Str("uuid", opts.UUID).Msg("registered with host")
	return p, nil
}

// Run processes host events until the connection closes or ctx is done.
// Every live action is torn down before it returns.
func (p *Plugin) Run(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		for {
			_, data, err := p.conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					p.log.Info().Msg("host closed the connection")
					return nil
				}
				return fmt.Errorf("read from host: %w", err)
			}
			p.handle(data)
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		return p.conn.Close()
	})

	err := g.Wait()
	p.teardownAll()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// handle decodes and dispatches one host message. A failing action is
// logged and never stops the loop.
func (p *Plugin) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		p.log.Warn().Err(err).Msg("undecodable message from host")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("event", msg.Event).Str("context", msg.Context).Msg("action panicked")
		}
	}()

	if err := p.dispatch(msg); err != nil {
		p.log.Error().Err(err).Str("event", msg.Event).Str("context", msg.Context).Msg("handle event")
	}
}

func (p *Plugin) dispatch(msg Message) error {
	id := action.ContextID(msg.Context)

	switch msg.Event {
	case EventWillAppear:
		return p.appear(msg)

	case EventWillDisappear:
		inst := p.remove(id)
		if inst == nil {
			return nil
		}
		return inst.action.Teardown()

	case EventDidReceiveSettings:
		inst := p.lookup(id)
		if inst == nil {
			return nil
		}
		settings, err := decodeSettings(msg.Payload)
		if err != nil {
			return fmt.Errorf("decode settings: %w", err)
		}
		return inst.action.HandleSettings(settings)

	case EventKeyDown, EventKeyUp, EventDialDown, EventDialUp, EventDialRotate:
		inst := p.lookup(id)
		if inst == nil {
			return nil
		}
		ev := action.InputEvent{Kind: inputKinds[msg.Event]}
		if msg.Event == EventDialRotate {
			var dp dialPayload
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &dp); err != nil {
					return fmt.Errorf("decode dial payload: %w", err)
				}
			}
			ev.Ticks = dp.Ticks
		}
		return inst.action.HandleInput(ev)

	case EventPropertyInspectorDidAppear:
		inst := p.lookup(id)
		if inst == nil {
			return nil
		}
		return inst.action.PropertyInspectorAppeared()

	case EventSendToPlugin:
		inst := p.lookup(id)
		if inst == nil {
			return nil
		}
		payload, err := decodeObject(msg.Payload)
		if err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		return inst.action.HandleMessage(payload)

	case EventDidReceiveGlobalSettings:
		settings, err := decodeSettings(msg.Payload)
		if err != nil {
			return fmt.Errorf("decode global settings: %w", err)
		}
		p.mu.Lock()
		p.global = settings
		p.mu.Unlock()
		p.log.Debug().Int("keys", len(settings)).Msg("global settings received")
		return nil

	case EventSystemDidWakeUp:
		p.log.Info().Msg("system woke up, refreshing tiles")
		var errs []error
		for _, inst := range p.snapshot() {
			if err := inst.action.Refresh(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case EventPropertyInspectorDidDisappear, EventTitleParametersDidChange,
		EventDeviceDidConnect, EventDeviceDidDisconnect,
		EventApplicationDidLaunch, EventApplicationDidTerminate:
		p.log.Debug().Str("event", msg.Event).Str("context", msg.Context).Str("device", msg.Device).Msg("host event")
		return nil

	default:
		p.log.Debug().Str("event", msg.Event).Msg("unhandled host event")
		return nil
	}
}

func (p *Plugin) appear(msg Message) error {
	id := action.ContextID(msg.Context)
	if id == "" {
		return errors.New("willAppear without context")
	}

	p.mu.Lock()
	_, exists := p.instances[id]
	ctx := p.ctx
	p.mu.Unlock()
	if exists {
		return nil
	}

	settings, err := decodeSettings(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}

	a, err := p.registry.Create(msg.Action)
	if err != nil {
		_ = p.LogMessage(err.Error())
		return err
	}

	tile := &tile{p: p, context: msg.Context, action: msg.Action}
	if err := a.Init(ctx, id, tile, settings); err != nil {
		_ = a.Teardown()
		return fmt.Errorf("init %s: %w", Suffix(msg.Action), err)
	}

	p.mu.Lock()
	p.instances[id] = &instance{uuid: msg.Action, action: a}
	p.mu.Unlock()

	p.log.Info().Str("action", Suffix(msg.Action)).Str("context", msg.Context).Msg("tile appeared")
	return nil
}

func (p *Plugin) lookup(id action.ContextID) *instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances[id]
}

func (p *Plugin) remove(id action.ContextID) *instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst := p.instances[id]
	delete(p.instances, id)
	return inst
}

func (p *Plugin) snapshot() []*instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*instance, 0, len(p.instances))
	for _, inst := range p.instances {
		out = append(out, inst)
	}
	return out
}

func (p *Plugin) teardownAll() {
	p.mu.Lock()
	instances := p.instances
	p.instances = make(map[action.ContextID]*instance)
	p.mu.Unlock()

	for id, inst := range instances {
		if err := inst.action.Teardown(); err != nil {
			p.log.Error().Err(err).Str("context", string(id)).Msg("teardown")
		}
	}
}

// Len returns the number of live tiles.
func (p *Plugin) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instances)
}

// GlobalSettings returns the last global settings received.
func (p *Plugin) GlobalSettings() action.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.global.Clone()
}

// GetGlobalSettings asks the host to send didReceiveGlobalSettings.
func (p *Plugin) GetGlobalSettings() error {
	return p.send(outbound{Event: EventGetGlobalSettings, Context: p.opts.UUID})
}

// SetGlobalSettings stores plugin-wide settings on the host.
func (p *Plugin) SetGlobalSettings(settings action.Settings) error {
	if err := p.send(outbound{Event: EventSetGlobalSettings, Context: p.opts.UUID, Payload: settings}); err != nil {
		return err
	}
	p.mu.Lock()
	p.global = settings.Clone()
	p.mu.Unlock()
	return nil
}

// LogMessage writes a line to the host's own log.
func (p *Plugin) LogMessage(message string) error {
	return p.send(outbound{Event: EventLogMessage, Payload: logPayload{Message: message}})
}

func (p *Plugin) send(v outbound) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", v.Event, err)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", v.Event, err)
	}
	return nil
}

// tile sends one context's output to the host.
type tile struct {
	p       *Plugin
	context string
	action  string
}

func (t *tile) SetImage(b *render.Bitmap) error {
	dataURL, err := b.DataURL()
	if err != nil {
		return err
	}
	return t.p.send(outbound{
		Event:   EventSetImage,
		Context: t.context,
		Payload: imagePayload{Target: 0, Image: dataURL},
	})
}

func (t *tile) SetTitle(title string) error {
	return t.p.send(outbound{
		Event:   EventSetTitle,
		Context: t.context,
		Payload: titlePayload{Title: title, Target: 0},
	})
}

func (t *tile) SendToPropertyInspector(payload any) error {
	return t.p.send(outbound{
		Event:   EventSendToPropertyInspector,
		Action:  t.action,
		Context: t.context,
		Payload: payload,
	})
}
