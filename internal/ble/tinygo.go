package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// maxValueLen is the largest attribute value the ATT protocol allows.
const maxValueLen = 512

// HostAdapter drives the host Bluetooth stack.
type HostAdapter struct {
	adapter *bluetooth.Adapter
	logger  zerolog.Logger

	enableOnce sync.Once
	enableErr  error

	mu       sync.Mutex
	scanning bool
	handlers map[string]func()
	servers  map[string]*hostServer
}

// NewHostAdapter wraps the default system adapter.
func NewHostAdapter(logger zerolog.Logger) *HostAdapter {
	return &HostAdapter{
		adapter:  bluetooth.DefaultAdapter,
		logger:   logger.With().Str("component", "adapter").Logger(),
		handlers: map[string]func(){},
		servers:  map[string]*hostServer{},
	}
}

func (a *HostAdapter) enable() error {
	a.enableOnce.Do(func() {
		a.adapter.SetConnectHandler(a.connectHandler)
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("failed to enable BLE stack: %w", err)
			return
		}
		a.logger.Debug().Msg("Adapter enabled")
	})
	return a.enableErr
}

func (a *HostAdapter) connectHandler(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	id := device.Address.String()
	a.mu.Lock()
	fn := a.handlers[id]
	if srv := a.servers[id]; srv != nil {
		srv.connected.Store(false)
		delete(a.servers, id)
	}
	a.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// Scan reports advertisements matching filter until ctx is done.
func (a *HostAdapter) Scan(ctx context.Context, filter Filter, found func(Advertisement)) error {
	return a.scan(ctx, filter, func(r bluetooth.ScanResult, adv Advertisement) {
		found(adv)
	})
}

// RequestDevice returns the first device matching filter.
func (a *HostAdapter) RequestDevice(ctx context.Context, filter Filter) (Device, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var picked *hostDevice
	var once sync.Once
	err := a.scan(scanCtx, filter, func(r bluetooth.ScanResult, adv Advertisement) {
		once.Do(func() {
			picked = &hostDevice{adapter: a, address: r.Address, id: adv.ID, name: adv.Name}
			cancel()
		})
	})
	if err != nil {
		return nil, err
	}
	if picked == nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, ctx.Err())
	}
	a.logger.Info().Str("name", picked.name).Str("id", picked.id).Msg("Device selected")
	return picked, nil
}

func (a *HostAdapter) scan(ctx context.Context, filter Filter, fn func(bluetooth.ScanResult, Advertisement)) error {
	if err := a.enable(); err != nil {
		return err
	}
	services := make([]bluetooth.UUID, 0, len(filter.Services))
	for _, s := range filter.Services {
		if s == "" {
			continue
		}
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return fmt.Errorf("invalid service uuid %q: %w", s, err)
		}
		services = append(services, u)
	}

	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	a.scanning = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			adv, ok := matchAdvertisement(r, filter.NamePrefix, services)
			if !ok || ctx.Err() != nil {
				return
			}
			fn(r, adv)
		})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := a.adapter.StopScan(); err != nil {
			a.logger.Debug().Err(err).Msg("Failed to stop scan")
		}
		<-errCh
		return nil
	}
}

func matchAdvertisement(r bluetooth.ScanResult, prefix string, services []bluetooth.UUID) (Advertisement, bool) {
	adv := Advertisement{
		ID:   r.Address.String(),
		Name: r.LocalName(),
		RSSI: r.RSSI,
	}
	matched := prefix == "" && len(services) == 0
	if prefix != "" && strings.HasPrefix(adv.Name, prefix) {
		matched = true
	}
	for _, u := range services {
		if r.HasServiceUUID(u) {
			adv.Services = append(adv.Services, u.String())
			matched = true
		}
	}
	return adv, matched
}

type hostDevice struct {
	adapter *HostAdapter
	address bluetooth.Address
	id      string
	name    string
}

func (d *hostDevice) ID() string   { return d.id }
func (d *hostDevice) Name() string { return d.name }

func (d *hostDevice) OnDisconnect(fn func()) {
	d.adapter.mu.Lock()
	d.adapter.handlers[d.id] = fn
	d.adapter.mu.Unlock()
}

func (d *hostDevice) Connect(ctx context.Context) (Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev, err := d.adapter.adapter.Connect(d.address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	srv := &hostServer{device: dev}
	srv.connected.Store(true)
	d.adapter.mu.Lock()
	d.adapter.servers[d.id] = srv
	d.adapter.mu.Unlock()
	return srv, nil
}

type hostServer struct {
	device    bluetooth.Device
	connected atomic.Bool
}

func (s *hostServer) Connected() bool { return s.connected.Load() }

func (s *hostServer) Disconnect() error {
	s.connected.Store(false)
	return s.device.Disconnect()
}

func (s *hostServer) PrimaryService(_ context.Context, uuid string) (Service, error) {
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid service uuid %q: %w", uuid, err)
	}
	services, err := s.device.DiscoverServices([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not offered by device", uuid)
	}
	return &hostService{service: services[0], chars: map[string]*hostCharacteristic{}}, nil
}

type hostService struct {
	service bluetooth.DeviceService

	mu    sync.Mutex
	chars map[string]*hostCharacteristic
}

func (s *hostService) UUID() string { return s.service.UUID().String() }

func (s *hostService) Characteristic(_ context.Context, uuid string) (Characteristic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chars[uuid]; ok {
		return ch, nil
	}
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic uuid %q: %w", uuid, err)
	}
	chars, err := s.service.DiscoverCharacteristics([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, ErrUnknownUUID
	}
	ch := &hostCharacteristic{char: chars[0]}
	s.chars[uuid] = ch
	return ch, nil
}

type hostCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *hostCharacteristic) UUID() string { return c.char.UUID().String() }

func (c *hostCharacteristic) Read(_ context.Context) ([]byte, error) {
	buf := make([]byte, maxValueLen)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *hostCharacteristic) EnableNotifications(fn func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		fn(append([]byte(nil), buf...))
	})
}
