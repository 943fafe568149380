package entities

import (
	"fmt"
	"time"
)

// ScanStatus is the state of one reader activation.
type ScanStatus string

const (
	ScanIdle     ScanStatus = "idle"
	ScanScanning ScanStatus = "scanning"
	ScanSuccess  ScanStatus = "success"
	ScanError    ScanStatus = "error"
)

// Channel is the proximity transport a reader drives.
type Channel string

const (
	ChannelOptical Channel = "optical"
	ChannelRadio   Channel = "radio"
	// ChannelManual marks a payload entered by hand rather than read.
	ChannelManual Channel = "manual"
)

// ParseChannel accepts the configured channel names, including "qr" and "nfc".
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "optical", "qr":
		return ChannelOptical, nil
	case "radio", "nfc":
		return ChannelRadio, nil
	default:
		return "", fmt.Errorf("unknown scan channel %q", s)
	}
}

// ScanSession is the ephemeral state of the current reader activation. It is
// never persisted.
type ScanSession struct {
	Status    ScanStatus `json:"status"`
	LastError string     `json:"lastError,omitempty"`
	Channel   Channel    `json:"channel"`
	Simulated bool       `json:"simulated"`
	StartedAt time.Time  `json:"startedAt,omitempty"`
}
