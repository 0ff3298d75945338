package scrape

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Constructor builds a Scraper from its station settings map.
type Constructor func(settings map[string]any) (Scraper, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a scraper constructor available under stationType.
// Registering the same type twice panics; that is a wiring mistake.
func Register(stationType string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[stationType]; dup {
		panic("scrape: Register called twice for type " + stationType)
	}
	registry[stationType] = c
}

// New builds the scraper for stationType from its settings.
func New(stationType string, settings map[string]any) (Scraper, error) {
	registryMu.RLock()
	c, ok := registry[stationType]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Newf("no scraper registered for station type %q", stationType)
	}
	s, err := c(settings)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create scraper (type %s)", stationType)
	}
	return s, nil
}

// Types returns the registered station types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DecodeSettings decodes a settings map into a typed settings struct,
// applying defaults and validating the result. Constructors use it so every
// scraper gets the same settings handling.
func DecodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}
	return nil
}
