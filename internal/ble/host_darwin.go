package ble

import "context"

// Properties reports every operation as available. CoreBluetooth property
// flags are not exposed by the stack, so unsupported operations fail in the call.
func (c *hostCharacteristic) Properties() Properties {
	return PropRead | PropWrite | PropNotify
}

func (c *hostCharacteristic) Write(_ context.Context, value []byte) error {
	_, err := c.char.Write(value)
	return err
}
