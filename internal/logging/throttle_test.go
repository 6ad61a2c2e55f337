package logging

import (
	"testing"
	"time"

	"okx-spread-bot/internal/config"
)

func TestThrottleLimitsPerInstrument(t *testing.T) {
	throttle := NewThrottle(config.ThrottleConfig{Enabled: true, Interval: time.Hour})
	if !throttle.Allow("DOGE-USDT") {
		t.Fatal("first emission blocked")
	}
	if throttle.Allow("DOGE-USDT") {
		t.Fatal("second emission inside interval admitted")
	}
	if !throttle.Allow("SHIB-USDT") {
		t.Fatal("different instrument blocked by another instrument's limiter")
	}
}

func TestThrottleDisabledAdmitsEverything(t *testing.T) {
	throttle := NewThrottle(config.ThrottleConfig{})
	for i := 0; i < 10; i++ {
		if !throttle.Allow("DOGE-USDT") {
			t.Fatal("disabled throttle blocked an emission")
		}
	}
}

func TestThrottleNilAdmitsEverything(t *testing.T) {
	var throttle *Throttle
	if !throttle.Allow("DOGE-USDT") {
		t.Fatal("nil throttle blocked an emission")
	}
}
