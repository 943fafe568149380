package reader

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"medical-record-exchange/internal/domain"
)

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// DirFrameSource reads frames the camera bridge drops into a capture
// directory. Frames are consumed in name order and removed once read; names
// starting with a dot are in-flight writes and are skipped.
type DirFrameSource struct {
	dir string
}

func NewDirFrameSource(dir string) *DirFrameSource {
	return &DirFrameSource{dir: dir}
}

func (s *DirFrameSource) Open(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("%w: capture dir %s: %v", domain.ErrReaderUnavailable, s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: capture path %s is not a directory", domain.ErrReaderUnavailable, s.dir)
	}
	return nil
}

func (s *DirFrameSource) Next(_ context.Context) (image.Image, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !frameExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	path := filepath.Join(s.dir, names[0])
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	img, _, decErr := image.Decode(f)
	f.Close()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if decErr != nil {
		// unreadable frame, same as a frame without a code
		return nil, nil
	}
	return img, nil
}

func (s *DirFrameSource) Close() error { return nil }
