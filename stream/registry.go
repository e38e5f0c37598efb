// Package stream drives one agent stream end to end: it reads the framing
// header, selects the parser for the announced or detected format, strips
// the trailer and exposes the current tree.
package stream

import (
	"fmt"
	"sync"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/parsers/envelope"
	"github.com/aurosoni/agentstream/parsers/rawevent"
	"github.com/aurosoni/agentstream/parsers/tagged"
)

// Factory creates a fresh parser for one stream.
type Factory func() agentstream.Parser

var (
	factoriesMu sync.RWMutex
	factories   = defaultFactories()
)

func defaultFactories() map[agentstream.Format]Factory {
	return map[agentstream.Format]Factory{
		agentstream.FormatRaw:  func() agentstream.Parser { return rawevent.New() },
		agentstream.FormatXML:  func() agentstream.Parser { return tagged.New() },
		agentstream.FormatJSON: func() agentstream.Parser { return envelope.New() },
	}
}

// NewParser returns a new parser for format.
func NewParser(format agentstream.Format) (agentstream.Parser, error) {
	factoriesMu.RLock()
	factory, ok := factories[format]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", agentstream.ErrUnknownFormat, format)
	}
	return factory(), nil
}

// RegisterParser replaces the factory used for format. Only the known
// formats can be registered.
func RegisterParser(format agentstream.Format, factory Factory) error {
	if !format.IsValid() {
		return fmt.Errorf("%w: '%s'", agentstream.ErrUnknownFormat, format)
	}
	if factory == nil {
		return fmt.Errorf("nil parser factory for format '%s'", format)
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[format] = factory
	return nil
}

// ResetParsers restores the built-in factories.
func ResetParsers() {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories = defaultFactories()
}
