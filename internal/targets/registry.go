package targets

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrEmptySource indicates the mapping source parsed but held no entries.
var ErrEmptySource = errors.New("target mapping source is empty")

// ConfigurationError reports a mapping source that could not be used.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("target mapping %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DefaultMapping is used whenever the configured source is missing, empty or malformed.
func DefaultMapping() map[string]string {
	return map[string]string{"8": "0", "13": "1"}
}

// Registry is an immutable label -> relay id lookup.
type Registry struct {
	relays map[string]string
	labels []string
}

// New builds a registry from already-parsed pairs. An empty input yields the default mapping.
func New(mapping map[string]string) *Registry {
	if len(mapping) == 0 {
		mapping = DefaultMapping()
	}

	relays := make(map[string]string, len(mapping))
	labels := make([]string, 0, len(mapping))
	for label, relay := range mapping {
		relays[label] = relay
		labels = append(labels, label)
	}
	SortLabels(labels)

	return &Registry{relays: relays, labels: labels}
}

// Load reads the mapping file at path and falls back to the default mapping with a
// warning when it cannot be used. Startup never fails because of the registry.
func Load(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	mapping, err := ReadFile(path)
	if err != nil {
		logger.Warn("target mapping unavailable, using default",
			zap.String("path", path),
			zap.Error(err),
			zap.Any("default", DefaultMapping()))
		return New(nil)
	}

	reg := New(mapping)
	logger.Info("target mapping loaded", zap.String("path", path), zap.Strings("labels", reg.Labels()))
	return reg
}

// ReadFile parses a mapping file. Files ending in .yaml/.yml are read as a flat YAML map,
// everything else as a properties file (key=value or key: value per line).
func ReadFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	var mapping map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		mapping, err = parseYAML(raw)
	default:
		mapping, err = parseProperties(raw)
	}
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	if len(mapping) == 0 {
		return nil, &ConfigurationError{Path: path, Err: ErrEmptySource}
	}
	return mapping, nil
}

func parseProperties(raw []byte) (map[string]string, error) {
	props, err := properties.Load(raw, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}
	return props.Map(), nil
}

func parseYAML(raw []byte) (map[string]string, error) {
	var mapping map[string]string
	if err := yaml.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return mapping, nil
}

// RelayFor returns the relay id mapped to label.
func (r *Registry) RelayFor(label string) (string, bool) {
	relay, ok := r.relays[label]
	return relay, ok
}

// Labels returns the target labels in menu order.
func (r *Registry) Labels() []string {
	return append([]string(nil), r.labels...)
}

// Len reports the number of configured targets.
func (r *Registry) Len() int {
	return len(r.relays)
}

// SortLabels orders numeric labels ascending by value, followed by the remaining labels
// in lexical order. Only finite numbers count as numeric.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, aNum := numericLabel(labels[i])
		b, bNum := numericLabel(labels[j])
		switch {
		case aNum && bNum:
			if a != b {
				return a < b
			}
			return labels[i] < labels[j]
		case aNum:
			return true
		case bNum:
			return false
		default:
			return labels[i] < labels[j]
		}
	})
}

func numericLabel(label string) (float64, bool) {
	v, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
