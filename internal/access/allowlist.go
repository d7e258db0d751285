package access

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// AllowList is an immutable set of identities permitted to issue relay commands.
// Comparison is exact; no phone-number normalization is applied.
type AllowList struct {
	identities map[string]struct{}
}

// New builds an allow-list from the given identities.
func New(identities []string) *AllowList {
	set := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return &AllowList{identities: set}
}

// Contains reports whether identity is authorized.
func (a *AllowList) Contains(identity string) bool {
	if a == nil || identity == "" {
		return false
	}
	_, ok := a.identities[identity]
	return ok
}

// Len returns the number of authorized identities.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.identities)
}

// ReadFile parses a newline-delimited identity file. Surrounding whitespace is trimmed,
// blank lines and lines starting with '#' are skipped.
func ReadFile(path string) (*AllowList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list %s: %w", path, err)
	}

	var identities []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identities = append(identities, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan allow-list %s: %w", path, err)
	}

	return New(identities), nil
}

// Load reads the allow-list at startup. When failClosed is set an unreadable file
// yields an empty list and a warning; otherwise the error is returned so startup aborts.
func Load(path string, failClosed bool, logger *zap.Logger) (*AllowList, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	list, err := ReadFile(path)
	if err != nil {
		if !failClosed {
			return nil, err
		}
		logger.Warn("allow-list unavailable, no identity will be authorized",
			zap.String("path", path), zap.Error(err))
		return New(nil), nil
	}

	if list.Len() == 0 {
		logger.Warn("allow-list is empty, no identity will be authorized", zap.String("path", path))
	} else {
		logger.Info("allow-list loaded", zap.String("path", path), zap.Int("identities", list.Len()))
	}
	return list, nil
}

// Holder publishes the current allow-list and lets a background job swap it for a
// freshly read one. Readers never observe a partially built list.
type Holder struct {
	path    string
	current atomic.Pointer[AllowList]
	logger  *zap.Logger
}

// NewHolder wraps an initial list loaded from path.
func NewHolder(path string, initial *AllowList, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initial == nil {
		initial = New(nil)
	}
	h := &Holder{path: path, logger: logger}
	h.current.Store(initial)
	return h
}

// Contains checks identity against the current list.
func (h *Holder) Contains(identity string) bool {
	return h.current.Load().Contains(identity)
}

// Len returns the size of the current list.
func (h *Holder) Len() int {
	return h.current.Load().Len()
}

// Reload re-reads the source file. On failure the previous list stays in place.
func (h *Holder) Reload() error {
	list, err := ReadFile(h.path)
	if err != nil {
		h.logger.Warn("allow-list reload failed, keeping previous list", zap.String("path", h.path), zap.Error(err))
		return err
	}

	prev := h.current.Swap(list)
	h.logger.Info("allow-list reloaded",
		zap.String("path", h.path),
		zap.Int("previous", prev.Len()),
		zap.Int("identities", list.Len()))
	return nil
}
