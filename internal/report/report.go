// Package report defines the Reporter contract, the events an analysis
// session emits and the registry reporters are looked up in by name.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ErrReporterNotFound is returned by New for an unregistered name.
var ErrReporterNotFound = errors.New("report: reporter not found")

// Reporter receives session events. Report is called from a single goroutine.
type Reporter interface {
	Name() string
	Init(cfg map[string]any) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Report(ctx context.Context, ev *Event) error
	Flush(ctx context.Context) error
}

// Factory creates an uninitialized Reporter.
type Factory func() Reporter

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a reporter available under name.
func Register(name string, f Factory) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		return fmt.Errorf("report: reporter '%s' already registered", name)
	}
	factories[name] = f
	return nil
}

// New creates the reporter registered under name.
func New(name string) (Reporter, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReporterNotFound, name)
	}
	return f(), nil
}

// Names lists the registered reporters in lexical order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeConfig decodes a reporter's config map into out. Strings are
// converted to numbers, durations and slices where out asks for them.
func DecodeConfig(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
