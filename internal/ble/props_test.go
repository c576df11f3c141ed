package ble

import "testing"

func TestPropertiesFromGATT(t *testing.T) {
	cases := []struct {
		bits   uint32
		want   Properties
		write  bool
		notify bool
	}{
		{0x02, PropRead, false, false},
		{0x0a, PropRead | PropWrite, true, false},
		{0x14, PropWriteWithoutResponse | PropNotify, true, true},
		{0x22, PropRead | PropIndicate, false, true},
		{0x01, 0, false, false},
	}
	for _, tc := range cases {
		got := propertiesFromGATT(tc.bits)
		if got != tc.want {
			t.Fatalf("bits %#x: expected %b, got %b", tc.bits, tc.want, got)
		}
		if got.CanWrite() != tc.write || got.CanNotify() != tc.notify {
			t.Fatalf("bits %#x: unexpected capabilities %b", tc.bits, got)
		}
	}
}

func TestHostCharacteristicSatisfiesCharacteristic(t *testing.T) {
	var _ Characteristic = (*hostCharacteristic)(nil)
}
