package reader

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"medical-record-exchange/internal/domain"
)

// DeviceTagListener reads NDEF records forwarded line by line by the NFC
// bridge on a character device or serial port. A line is either
// "<type>;<encoding>;<base64 data>" or bare UTF-8 text.
type DeviceTagListener struct {
	path string

	mu    sync.Mutex
	file  io.ReadCloser
	lines chan string
	errc  chan error
}

func NewDeviceTagListener(path string) *DeviceTagListener {
	return &DeviceTagListener{path: path}
}

func (l *DeviceTagListener) Open(_ context.Context) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("%w: nfc device %s: %v", domain.ErrReaderUnavailable, l.path, err)
	}
	l.attach(f)
	return nil
}

func (l *DeviceTagListener) attach(rc io.ReadCloser) {
	lines := make(chan string)
	errc := make(chan error, 1)

	l.mu.Lock()
	l.file, l.lines, l.errc = rc, lines, errc
	l.mu.Unlock()

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(rc)
		for sc.Scan() {
			lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			errc <- err
		}
	}()
}

func (l *DeviceTagListener) Next(ctx context.Context) (NDEFMessage, error) {
	l.mu.Lock()
	lines, errc := l.lines, l.errc
	l.mu.Unlock()
	if lines == nil {
		return NDEFMessage{}, errors.New("nfc listener not open")
	}

	for {
		select {
		case <-ctx.Done():
			return NDEFMessage{}, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return NDEFMessage{}, err
				default:
					return NDEFMessage{}, io.EOF
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			return ParseRecordLine(line), nil
		}
	}
}

// Close releases the device; the pending reader goroutine ends with it.
func (l *DeviceTagListener) Close() error {
	l.mu.Lock()
	f := l.file
	lines := l.lines
	l.file, l.lines, l.errc = nil, nil, nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	err := f.Close()
	if lines != nil {
		go func() {
			for range lines {
			}
		}()
	}
	return err
}

// ParseRecordLine parses one bridge line into a single-record message.
func ParseRecordLine(line string) NDEFMessage {
	line = strings.TrimRight(line, "\r")
	if parts := strings.SplitN(line, ";", 3); len(parts) == 3 {
		if data, err := base64.StdEncoding.DecodeString(parts[2]); err == nil {
			return NDEFMessage{Records: []NDEFRecord{{
				RecordType: strings.ToLower(strings.TrimSpace(parts[0])),
				Encoding:   strings.TrimSpace(parts[1]),
				Data:       data,
			}}}
		}
	}
	return NDEFMessage{Records: []NDEFRecord{{RecordType: "text", Encoding: "utf-8", Data: []byte(line)}}}
}
