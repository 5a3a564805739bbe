package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind identifies one of the two telemetry feeds.
type Kind string

const (
	Functional  Kind = "functional"
	Performance Kind = "performance"
)

// Kinds lists every feed in display order.
var Kinds = []Kind{Functional, Performance}

// Payload is a raw, untyped feed document as decoded from JSON.
type Payload map[string]any

// Strategy retrieves one feed from its physical source.
type Strategy interface {
	Fetch(ctx context.Context) (Payload, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context) (Payload, error)

func (f StrategyFunc) Fetch(ctx context.Context) (Payload, error) {
	return f(ctx)
}

const maxDocumentBytes = 32 << 20

var errEmptyDocument = errors.New("document is empty")

// decodePayload reads a single JSON object. When requiredKey is set the
// object must carry it as a nested object.
func decodePayload(r io.Reader, requiredKey string) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(io.LimitReader(r, maxDocumentBytes)).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if p == nil {
		return nil, errEmptyDocument
	}
	if err := requireObject(p, requiredKey); err != nil {
		return nil, err
	}
	return p, nil
}

func requireObject(p Payload, key string) error {
	if key == "" {
		return nil
	}
	if _, ok := p[key].(map[string]any); !ok {
		return fmt.Errorf("document has no %q object", key)
	}
	return nil
}
