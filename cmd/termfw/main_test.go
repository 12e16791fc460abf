package main

import (
	"testing"

	"github.com/nugget/sdui-termfw/internal/platform"
)

func TestSimulatedDepsPopulatesEveryPort(t *testing.T) {
	deps := simulatedDeps(platform.NewSimKVStore())

	checks := map[string]bool{
		"Display":      deps.Display != nil,
		"SPI":          deps.SPI != nil,
		"Wifi":         deps.Wifi != nil,
		"Provisioner":  deps.Provisioner != nil,
		"KV":           deps.KV != nil,
		"Codec":        deps.Codec != nil,
		"Accel":        deps.Accel != nil,
		"Temp":         deps.Temp != nil,
		"MAC":          deps.MAC != nil,
		"FastArena":    deps.FastArena != nil,
		"DefaultArena": deps.DefaultArena != nil,
	}
	for name, ok := range checks {
		if !ok {
			t.Errorf("simulatedDeps(): %s is nil", name)
		}
	}
}
