package platform

import (
	"context"
	"testing"
)

func TestSimKVStoreProvisioned(t *testing.T) {
	kv := NewSimKVStore()
	if kv.Provisioned() {
		t.Error("Provisioned() true before any ssid set")
	}
	kv.Set("ssid", "")
	if kv.Provisioned() {
		t.Error("Provisioned() true with empty ssid")
	}
	kv.Set("ssid", "home-network")
	if !kv.Provisioned() {
		t.Error("Provisioned() false after non-empty ssid set")
	}
}

func TestSimArenaOutstanding(t *testing.T) {
	a := NewSimArena(ArenaFastSRAM)
	buf, err := a.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc() error: %v", err)
	}
	if len(buf) != 1024 {
		t.Errorf("Alloc() len = %d, want 1024", len(buf))
	}
	if got := a.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
	a.Free(buf)
	if got := a.Outstanding(); got != 0 {
		t.Errorf("Outstanding() after Free = %d, want 0", got)
	}
}

func TestSimSPIReserverFailsAfterWifi(t *testing.T) {
	r := NewSimSPIReserver()
	if err := r.ReserveDMABuffer(9 * 1024); err != nil {
		t.Fatalf("ReserveDMABuffer() before wifi: %v", err)
	}
	w := NewSimWifiStation(r)
	if err := w.Connect(context.Background(), "ssid", "pw"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := r.ReserveDMABuffer(1024); err == nil {
		t.Error("ReserveDMABuffer() after Wi-Fi connect succeeded, want error")
	}
}

func TestSimAccelerometerRepeatsLastSample(t *testing.T) {
	a := NewSimAccelerometer([][3]float64{{0, 0, 9.8}, {0, 0, 20.0}})
	x, y, z, err := a.ReadAccel()
	if err != nil || x != 0 || y != 0 || z != 9.8 {
		t.Fatalf("first sample = (%v,%v,%v,%v)", x, y, z, err)
	}
	_, _, z2, _ := a.ReadAccel()
	if z2 != 20.0 {
		t.Errorf("second sample z = %v, want 20.0", z2)
	}
	_, _, z3, _ := a.ReadAccel()
	if z3 != 20.0 {
		t.Errorf("third sample (repeat) z = %v, want 20.0", z3)
	}
}

func TestArenaKindString(t *testing.T) {
	if ArenaFastSRAM.String() != "fast_sram" {
		t.Errorf("ArenaFastSRAM.String() = %q", ArenaFastSRAM.String())
	}
	if ArenaDefault.String() != "default" {
		t.Errorf("ArenaDefault.String() = %q", ArenaDefault.String())
	}
}
