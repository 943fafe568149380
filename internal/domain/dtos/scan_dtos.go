package dtos

import (
	"time"

	"medical-record-exchange/internal/domain/entities"
)

// SubmitPayloadRequest carries a payload typed or pasted by hand instead of
// read through a proximity channel.
type SubmitPayloadRequest struct {
	Payload string `json:"payload" validate:"required"`
}

// ScanOutcomeDTO is what presentation code receives after a scan.
type ScanOutcomeDTO struct {
	Record    entities.Record  `json:"record"`
	Known     bool             `json:"known"`
	Channel   entities.Channel `json:"channel"`
	Simulated bool             `json:"simulated"`
}

// ScanStatusResponse is returned by the scan status endpoint.
type ScanStatusResponse struct {
	Session     entities.ScanSession `json:"session"`
	LastOutcome *ScanOutcomeDTO      `json:"lastOutcome,omitempty"`
}

// ScanEventType tells scan-complete and scan-error events apart on the queue.
type ScanEventType string

const (
	ScanEventComplete ScanEventType = "scan_complete"
	ScanEventError    ScanEventType = "scan_error"
)

// ScanEvent is the message published on the scan events queue.
type ScanEvent struct {
	EventID    string          `json:"eventId"`
	Type       ScanEventType   `json:"type"`
	Outcome    *ScanOutcomeDTO `json:"outcome,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
