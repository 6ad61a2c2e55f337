package engine

import (
	"testing"
	"time"
)

func TestFreezeGateClaimBlocksUntilExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	gate := NewFreezeGate()
	gate.now = func() time.Time { return now }

	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, 5*time.Second) {
		t.Fatal("first claim rejected")
	}
	if gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, 5*time.Second) {
		t.Fatal("second claim admitted inside the window")
	}

	now = now.Add(4 * time.Second)
	if gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, 5*time.Second) {
		t.Fatal("claim admitted one second before expiry")
	}

	now = now.Add(time.Second)
	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, 5*time.Second) {
		t.Fatal("claim rejected at expiry")
	}
}

func TestFreezeGateScopedByDirection(t *testing.T) {
	gate := NewFreezeGate()
	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, time.Hour) {
		t.Fatal("open claim rejected")
	}
	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionClose, time.Hour) {
		t.Fatal("close claim blocked by open freeze")
	}
}

func TestFreezeGateScopedByPair(t *testing.T) {
	gate := NewFreezeGate()
	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, time.Hour) {
		t.Fatal("first pair claim rejected")
	}
	if !gate.Claim("SHIB-USDT", "SHIB-USDT-SWAP", DirectionOpen, time.Hour) {
		t.Fatal("second pair blocked by first pair's freeze")
	}
}

func TestFreezeGateRelease(t *testing.T) {
	gate := NewFreezeGate()
	gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, time.Hour)
	gate.Release("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen)
	if gate.Active("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen) {
		t.Fatal("freeze still active after release")
	}
	if !gate.Claim("DOGE-USDT", "DOGE-USDT-SWAP", DirectionOpen, time.Hour) {
		t.Fatal("claim rejected after release")
	}
}
