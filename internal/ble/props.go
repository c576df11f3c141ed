package ble

// GATT characteristic property bits as carried in the characteristic declaration.
const (
	gattRead                 = 0x02
	gattWriteWithoutResponse = 0x04
	gattWrite                = 0x08
	gattNotify               = 0x10
	gattIndicate             = 0x20
)

// propertiesFromGATT maps declaration property bits to Properties.
func propertiesFromGATT(bits uint32) Properties {
	var p Properties
	for gatt, prop := range map[uint32]Properties{
		gattRead:                 PropRead,
		gattWriteWithoutResponse: PropWriteWithoutResponse,
		gattWrite:                PropWrite,
		gattNotify:               PropNotify,
		gattIndicate:             PropIndicate,
	} {
		if bits&gatt != 0 {
			p |= prop
		}
	}
	return p
}
