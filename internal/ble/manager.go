package ble

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/model"
)

// Session holds the handles of an established connection.
type Session struct {
	Device    Device
	Server    Server
	Service   Service
	Connected bool
}

// Request describes what to connect to.
type Request struct {
	ServiceUUID string
	NamePrefix  string
}

// Manager runs the connection flow and owns the active session.
type Manager struct {
	adapter Adapter
	logger  zerolog.Logger

	mu        sync.Mutex
	state     State
	device    Device
	session   *Session
	listeners []func()
}

// NewManager creates a connection manager for adapter.
func NewManager(adapter Adapter, logger zerolog.Logger) *Manager {
	return &Manager{
		adapter: adapter,
		logger:  logger.With().Str("component", "connection").Logger(),
	}
}

// OnDisconnected registers fn to run once each time a connected session ends,
// whether the user disconnected or the link dropped.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Device returns the remembered device, or nil if none was picked yet.
func (m *Manager) Device() Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Session returns the active session, or nil when disconnected.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// ActiveService returns the bound service of the active session.
func (m *Manager) ActiveService() (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.Service == nil {
		return nil, ErrNoService
	}
	return m.session.Service, nil
}

// Connect runs the connection flow. With reuse set the device picker is
// skipped and the previously selected device is used. Any failure returns the
// flow to Disconnected.
func (m *Manager) Connect(ctx context.Context, req Request, reuse bool) (*Session, error) {
	svcUUID := model.SanitizeUUID(req.ServiceUUID)
	if svcUUID == "" {
		return nil, fmt.Errorf("connect: service uuid is empty")
	}

	m.mu.Lock()
	next := StateRequesting
	if reuse {
		next = StateConnecting
	}
	if err := transition(m.state, next); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("connect: %w", err)
	}
	device := m.device
	if reuse && device == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("reconnect: %w", ErrNoDevice)
	}
	m.state = next
	m.mu.Unlock()

	if !reuse {
		m.logger.Info().Str("name_prefix", req.NamePrefix).Str("service", svcUUID).Msg("Requesting device")
		picked, err := m.adapter.RequestDevice(ctx, Filter{NamePrefix: req.NamePrefix, Services: []string{svcUUID}})
		if err != nil {
			m.abort()
			return nil, fmt.Errorf("request device: %w", err)
		}
		picked.OnDisconnect(func() { m.linkLost(picked) })
		device = picked

		m.mu.Lock()
		m.device = picked
		m.state = StateConnecting
		m.mu.Unlock()
	}

	m.logger.Info().Str("device", deviceLabel(device)).Msg("Connecting")
	server, err := device.Connect(ctx)
	if err != nil {
		m.abort()
		return nil, fmt.Errorf("connect: %w", err)
	}
	service, err := server.PrimaryService(ctx, svcUUID)
	if err != nil {
		if derr := server.Disconnect(); derr != nil {
			m.logger.Debug().Err(derr).Msg("Disconnect after failed service lookup")
		}
		m.abort()
		return nil, fmt.Errorf("primary service %s: %w", svcUUID, err)
	}

	session := &Session{Device: device, Server: server, Service: service, Connected: true}
	m.mu.Lock()
	m.session = session
	m.state = StateConnected
	m.mu.Unlock()

	m.logger.Info().Str("device", deviceLabel(device)).Str("id", device.ID()).Msg("Connected")
	return session, nil
}

// Disconnect tears down the active connection. It is a no-op when nothing is connected.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil
	}
	var err error
	if session.Server.Connected() {
		if derr := session.Server.Disconnect(); derr != nil {
			err = fmt.Errorf("disconnect: %w", derr)
		}
	}
	m.finish(session)
	return err
}

func (m *Manager) linkLost(device Device) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil || session.Device != device {
		return
	}
	m.logger.Warn().Str("device", deviceLabel(device)).Msg("Device disconnected")
	m.finish(session)
}

// finish ends session exactly once and notifies listeners.
func (m *Manager) finish(session *Session) {
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return
	}
	session.Connected = false
	m.session = nil
	m.state = StateDisconnected
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (m *Manager) abort() {
	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
}

func deviceLabel(d Device) string {
	if name := d.Name(); name != "" {
		return name
	}
	return "device"
}
