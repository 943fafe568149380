// Package codec converts records to and from the transfer payload carried over
// the optical and radio channels: a flat UTF-8 JSON object.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/entities"
)

// MaxPayloadSize is the largest payload accepted, roughly what a dense QR code
// or a large NDEF text record can hold.
const MaxPayloadSize = 4096

// Kind classifies why a payload was refused.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindNotObject
	KindForeign
	KindMissingName
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindNotObject:
		return "not_object"
	case KindForeign:
		return "foreign"
	case KindMissingName:
		return "missing_name"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode. errors.Is matches it against
// domain.ErrDecodeRejected or domain.ErrDecodeIncomplete depending on Kind.
type DecodeError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode payload: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode payload: %s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	switch target {
	case domain.ErrDecodeIncomplete:
		return e.Kind == KindMissingName
	case domain.ErrDecodeRejected:
		return e.Kind != KindMissingName
	}
	return false
}

// KindOf returns the decode error kind carried by err, or 0.
func KindOf(err error) Kind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

var uriScheme = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// foreignReason reports why text is not a record at all: URLs, data: documents
// and markup scanned by accident.
func foreignReason(text string) (string, bool) {
	t := strings.TrimLeft(text, " \t\r\n\uFEFF")
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return "embedded document", true
	case uriScheme.MatchString(t):
		return "uri scheme", true
	case strings.HasPrefix(t, "<"):
		return "markup", true
	case strings.Contains(lower, "<script"):
		return "script tag", true
	}
	return "", false
}

// Encode serializes a record into its transfer text. Keys follow the Record
// field order. Empty optional fields are completed with the same defaults
// Decode applies, so the receiver always sees a complete record; a record
// without a name cannot be encoded.
//
// An empty ID is sent as the "unknown" sentinel: the receiver treats the
// record as unresolved and assigns a fresh id when it inserts it. Text that
// would exceed MaxPayloadSize is refused, since Decode would reject it.
func Encode(r entities.Record) (string, error) {
	if strings.TrimSpace(r.Name) == "" {
		return "", fmt.Errorf("encode payload: %w: name is required", domain.ErrInvalidRecord)
	}
	b, err := json.Marshal(withDefaults(r))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if len(b) > MaxPayloadSize {
		return "", fmt.Errorf("encode payload: %w: %d bytes exceeds %d", domain.ErrInvalidRecord, len(b), MaxPayloadSize)
	}
	return string(b), nil
}

// DecodeBytes is Decode for raw channel bytes; invalid UTF-8 is malformed.
func DecodeBytes(b []byte) (entities.Record, error) {
	if !utf8.Valid(b) {
		return entities.Record{}, &DecodeError{Kind: KindMalformed, Reason: "payload is not valid UTF-8"}
	}
	return Decode(string(b))
}

// Decode parses transfer text into a record. Foreign content is refused
// before any structural parsing. Everything but the name is completed with
// defaults when missing.
func Decode(text string) (entities.Record, error) {
	if reason, ok := foreignReason(text); ok {
		return entities.Record{}, &DecodeError{Kind: KindForeign, Reason: reason}
	}
	if len(text) > MaxPayloadSize {
		return entities.Record{}, &DecodeError{Kind: KindMalformed, Reason: fmt.Sprintf("payload exceeds %d bytes", MaxPayloadSize)}
	}
	raw := []byte(strings.TrimSpace(text))
	if !json.Valid(raw) {
		return entities.Record{}, &DecodeError{Kind: KindMalformed, Reason: "payload is not well-formed JSON"}
	}
	if len(raw) == 0 || raw[0] != '{' {
		return entities.Record{}, &DecodeError{Kind: KindNotObject, Reason: "payload is not a JSON object"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return entities.Record{}, &DecodeError{Kind: KindNotObject, Reason: "payload is not a JSON object", Err: err}
	}

	name := scalarText(fields["name"])
	if strings.TrimSpace(name) == "" {
		return entities.Record{}, &DecodeError{Kind: KindMissingName, Reason: "payload has no patient name"}
	}

	r := entities.Record{
		ID:          scalarText(fields["id"]),
		Name:        name,
		Age:         ageValue(fields["age"]),
		Gender:      scalarText(fields["gender"]),
		Phone:       scalarText(fields["phone"]),
		Address:     scalarText(fields["address"]),
		LastVisit:   scalarText(fields["lastVisit"]),
		Condition:   scalarText(fields["condition"]),
		Medications: scalarText(fields["medications"]),
		Treatments:  scalarText(fields["treatments"]),
		Symptoms:    scalarText(fields["symptoms"]),
		Notes:       scalarText(fields["notes"]),
		FollowUp:    scalarText(fields["followUp"]),
		Avatar:      scalarText(fields["avatar"]),
	}
	return withDefaults(r), nil
}

func withDefaults(r entities.Record) entities.Record {
	r.ID = orDefault(r.ID, entities.UnresolvedID)
	r.Name = orDefault(r.Name, entities.DefaultName)
	r.Gender = orDefault(r.Gender, entities.DefaultGender)
	r.Phone = orDefault(r.Phone, entities.NotAvailable)
	r.Address = orDefault(r.Address, entities.NotAvailable)
	r.LastVisit = orDefault(r.LastVisit, entities.NotAvailable)
	r.Condition = orDefault(r.Condition, entities.NotAvailable)
	if r.Age < 0 {
		r.Age = 0
	}
	return r
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// scalarText renders a JSON value as field text. Falsy values (null, false,
// 0, "") read as empty so the caller's default applies.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', 'f':
		return ""
	case 't':
		return "true"
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		return buf.String()
	default:
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil && f == 0 {
			return ""
		}
		return string(raw)
	}
}

// ageValue accepts a number or a numeric string. Fractions are truncated,
// negative and unparseable values become 0.
func ageValue(raw json.RawMessage) int {
	text := scalarText(raw)
	if text == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
