package services

import (
	"context"
	"encoding/json"

	"medical-record-exchange/internal/domain/dtos"
)

// ExchangeServiceContract defines the record exchange operations: driving the
// scan machine, manual payload entry and exporting a record for the peer
// device.
type ExchangeServiceContract interface {
	Start(ctx context.Context) error // starts the scan event consumer
	Stop(ctx context.Context) error  // closes the scan machine and the consumer

	// StartScan activates the configured reader. scan.ErrScanInProgress is
	// returned while a scan is running.
	StartScan(ctx context.Context) error
	CancelScan(ctx context.Context)
	ScanStatus(ctx context.Context) dtos.ScanStatusResponse
	LastOutcome(ctx context.Context) *dtos.ScanOutcomeDTO

	// SubmitPayload decodes and reconciles a payload entered by hand.
	SubmitPayload(ctx context.Context, payload string) (*dtos.ScanOutcomeDTO, error)

	// ExportPayload returns the transfer text of a stored record.
	ExportPayload(ctx context.Context, id string) (string, error)
	// ExportQR returns the transfer text rendered as a PNG QR code.
	ExportQR(ctx context.Context, id string, size int) ([]byte, error)
	// ExportFHIR maps a stored record to a FHIR Patient resource.
	ExportFHIR(ctx context.Context, id string, fhirVersion string) (json.RawMessage, error)

	// Subscribe receives every scan event published after the call. The
	// returned func unsubscribes.
	Subscribe() (<-chan dtos.ScanEvent, func())
}
