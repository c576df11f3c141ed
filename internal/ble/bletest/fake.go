// Package bletest provides an in-memory BLE transport for tests.
package bletest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/verte-zerg/fanpanel/internal/ble"
)

// Adapter is a fake host adapter offering a fixed set of devices.
type Adapter struct {
	mu       sync.Mutex
	devices  []*Device
	requests int
}

// NewAdapter creates an adapter that discovers devices.
func NewAdapter(devices ...*Device) *Adapter {
	return &Adapter{devices: devices}
}

// Requests returns how many times the device picker was shown.
func (a *Adapter) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Scan reports every matching device once.
func (a *Adapter) Scan(_ context.Context, filter ble.Filter, found func(ble.Advertisement)) error {
	a.mu.Lock()
	devices := append([]*Device(nil), a.devices...)
	a.mu.Unlock()
	for _, d := range devices {
		if d.matches(filter) {
			found(ble.Advertisement{ID: d.id, Name: d.name, Services: d.serviceUUIDs()})
		}
	}
	return nil
}

// RequestDevice returns the first matching device.
func (a *Adapter) RequestDevice(_ context.Context, filter ble.Filter) (ble.Device, error) {
	a.mu.Lock()
	a.requests++
	devices := append([]*Device(nil), a.devices...)
	a.mu.Unlock()
	for _, d := range devices {
		if d.matches(filter) {
			return d, nil
		}
	}
	return nil, ble.ErrDeviceNotFound
}

// Device is a fake peripheral.
type Device struct {
	id   string
	name string

	mu           sync.Mutex
	services     map[string]*Service
	onDisconnect []func()
	connected    bool
	connectErr   error
	connects     int
}

// NewDevice creates a device exposing services.
func NewDevice(id, name string, services ...*Service) *Device {
	d := &Device{id: id, name: name, services: map[string]*Service{}}
	for _, s := range services {
		d.services[s.uuid] = s
	}
	return d
}

// ID implements ble.Device.
func (d *Device) ID() string { return d.id }

// Name implements ble.Device.
func (d *Device) Name() string { return d.name }

// FailConnect makes the next connects fail with err.
func (d *Device) FailConnect(err error) {
	d.mu.Lock()
	d.connectErr = err
	d.mu.Unlock()
}

// Connects returns the number of successful connects.
func (d *Device) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// OnDisconnect implements ble.Device.
func (d *Device) OnDisconnect(fn func()) {
	d.mu.Lock()
	d.onDisconnect = append(d.onDisconnect, fn)
	d.mu.Unlock()
}

// Connect implements ble.Device.
func (d *Device) Connect(_ context.Context) (ble.Server, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.connected = true
	d.connects++
	return &server{device: d}, nil
}

// DropLink simulates the peripheral going away.
func (d *Device) DropLink() {
	d.mu.Lock()
	d.connected = false
	fns := append([]func(){}, d.onDisconnect...)
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (d *Device) matches(f ble.Filter) bool {
	if f.NamePrefix == "" && len(f.Services) == 0 {
		return true
	}
	if f.NamePrefix != "" && strings.HasPrefix(d.name, f.NamePrefix) {
		return true
	}
	for _, s := range f.Services {
		if _, ok := d.services[s]; ok {
			return true
		}
	}
	return false
}

func (d *Device) serviceUUIDs() []string {
	out := make([]string, 0, len(d.services))
	for id := range d.services {
		out = append(out, id)
	}
	return out
}

type server struct {
	device *Device
}

func (s *server) Connected() bool {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.device.connected
}

func (s *server) Disconnect() error {
	s.device.DropLink()
	return nil
}

func (s *server) PrimaryService(_ context.Context, uuid string) (ble.Service, error) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	svc, ok := s.device.services[uuid]
	if !ok {
		return nil, fmt.Errorf("service %s not offered by device", uuid)
	}
	return svc, nil
}

// Service is a fake primary service.
type Service struct {
	uuid  string
	chars map[string]*Characteristic
}

// NewService creates a service holding chars.
func NewService(uuid string, chars ...*Characteristic) *Service {
	s := &Service{uuid: uuid, chars: map[string]*Characteristic{}}
	for _, c := range chars {
		s.chars[c.uuid] = c
	}
	return s
}

// UUID implements ble.Service.
func (s *Service) UUID() string { return s.uuid }

// Characteristic implements ble.Service.
func (s *Service) Characteristic(_ context.Context, uuid string) (ble.Characteristic, error) {
	c, ok := s.chars[uuid]
	if !ok {
		return nil, ble.ErrUnknownUUID
	}
	return c, nil
}

// ErrRead is returned by reads after FailReads.
var ErrRead = errors.New("read failed")

// Characteristic is a fake characteristic with a settable value.
type Characteristic struct {
	uuid  string
	props ble.Properties

	mu        sync.Mutex
	value     []byte
	reads     int
	failAfter int
	writes    [][]byte
	listeners []func([]byte)
}

// NewCharacteristic creates a characteristic with an initial value.
func NewCharacteristic(uuid string, props ble.Properties, value []byte) *Characteristic {
	return &Characteristic{uuid: uuid, props: props, value: value, failAfter: -1}
}

// UUID implements ble.Characteristic.
func (c *Characteristic) UUID() string { return c.uuid }

// Properties implements ble.Characteristic.
func (c *Characteristic) Properties() ble.Properties { return c.props }

// FailReadsAfter makes every read after n successful ones fail.
func (c *Characteristic) FailReadsAfter(n int) {
	c.mu.Lock()
	c.failAfter = n
	c.mu.Unlock()
}

// Read implements ble.Characteristic.
func (c *Characteristic) Read(_ context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter >= 0 && c.reads >= c.failAfter {
		return nil, ErrRead
	}
	c.reads++
	return append([]byte(nil), c.value...), nil
}

// Reads returns the number of successful reads.
func (c *Characteristic) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Write implements ble.Characteristic.
func (c *Characteristic) Write(_ context.Context, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), value...))
	return nil
}

// Writes returns every value written so far.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// EnableNotifications implements ble.Characteristic.
func (c *Characteristic) EnableNotifications(fn func([]byte)) error {
	if !c.props.CanNotify() {
		return ble.ErrNotificationsUnsup
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
	return nil
}

// Notify sets the value and pushes it to subscribers.
func (c *Characteristic) Notify(value []byte) {
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	fns := append([]func([]byte){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(append([]byte(nil), value...))
	}
}

// Subscribers returns the number of notification listeners.
func (c *Characteristic) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}
