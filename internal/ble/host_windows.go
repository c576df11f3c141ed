package ble

import "context"

func (c *hostCharacteristic) Properties() Properties {
	return propertiesFromGATT(c.char.Properties())
}

func (c *hostCharacteristic) Write(_ context.Context, value []byte) error {
	props := c.Properties()
	if props&PropWrite == 0 && props&PropWriteWithoutResponse != 0 {
		_, err := c.char.WriteWithoutResponse(value)
		return err
	}
	_, err := c.char.Write(value)
	return err
}
