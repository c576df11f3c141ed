//go:build !windows && !darwin

package ble

import "context"

// Properties reports read, write without response and notify. BlueZ does not
// hand the declaration flags to the stack, so unsupported operations fail in the call.
func (c *hostCharacteristic) Properties() Properties {
	return PropRead | PropWriteWithoutResponse | PropNotify
}

// Write uses write without response, the only write the BlueZ backend offers.
func (c *hostCharacteristic) Write(_ context.Context, value []byte) error {
	_, err := c.char.WriteWithoutResponse(value)
	return err
}
