// Package ble manages the connection to the device and access to its
// GATT characteristics.
package ble

import (
	"context"
	"errors"
)

// Properties is the set of operations a characteristic supports.
type Properties uint8

// Characteristic properties.
const (
	PropRead Properties = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
	PropIndicate
)

// CanNotify reports whether the characteristic pushes value changes.
func (p Properties) CanNotify() bool {
	return p&(PropNotify|PropIndicate) != 0
}

// CanWrite reports whether the characteristic accepts writes.
func (p Properties) CanWrite() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

// Errors reported by transports and the connection flow.
var (
	ErrNoService          = errors.New("no active service")
	ErrNoDevice           = errors.New("no device selected")
	ErrDeviceNotFound     = errors.New("no matching device found")
	ErrUnknownUUID        = errors.New("characteristic not found")
	ErrNotificationsUnsup = errors.New("notifications not supported")
)

// Filter selects devices during discovery. A device matches when its name
// starts with NamePrefix or it advertises one of Services.
type Filter struct {
	NamePrefix string
	Services   []string
}

// Advertisement describes a device seen while scanning.
type Advertisement struct {
	ID       string
	Name     string
	RSSI     int16
	Services []string
}

// Adapter is the host BLE stack.
type Adapter interface {
	// Scan reports matching advertisements until ctx is done.
	Scan(ctx context.Context, filter Filter, found func(Advertisement)) error
	// RequestDevice picks the first device matching filter.
	RequestDevice(ctx context.Context, filter Filter) (Device, error)
}

// Device is a handle to a discovered peripheral.
type Device interface {
	ID() string
	Name() string
	// Connect opens a transport connection.
	Connect(ctx context.Context) (Server, error)
	// OnDisconnect registers fn to run when the link drops.
	OnDisconnect(fn func())
}

// Server is an open GATT connection.
type Server interface {
	PrimaryService(ctx context.Context, uuid string) (Service, error)
	Connected() bool
	Disconnect() error
}

// Service is a bound primary service.
type Service interface {
	UUID() string
	Characteristic(ctx context.Context, uuid string) (Characteristic, error)
}

// Characteristic is a readable, writable or subscribable value.
type Characteristic interface {
	UUID() string
	Properties() Properties
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, value []byte) error
	EnableNotifications(fn func([]byte)) error
}
