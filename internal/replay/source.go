package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eventstate/internal/protocol"
)

// Events is an in-memory Source. Events must be in position order.
type Events []protocol.Event

// Each implements Source.
func (es Events) Each(ctx context.Context, after int64, fn func(protocol.Event) error) error {
	for _, e := range es {
		if e.Position <= after {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// YAMLEvent is one event as written in YAML event files and scenarios.
// Value holds the record fields under their JSON names.
type YAMLEvent struct {
	Position  int64          `yaml:"position,omitempty"`
	Key       int64          `yaml:"key"`
	Intent    string         `yaml:"intent"`
	Version   int32          `yaml:"version"`
	Timestamp int64          `yaml:"timestamp,omitempty"`
	Value     map[string]any `yaml:"value,omitempty"`
}

// yamlFile is the top-level structure of an event file.
type yamlFile struct {
	Events []YAMLEvent `yaml:"events"`
}

// DecodeYAMLEvents converts YAML events into protocol events. Events
// without a position are numbered after the previous one, starting at 1.
func DecodeYAMLEvents(in []YAMLEvent) (Events, error) {
	out := make(Events, 0, len(in))
	var last int64
	for i, ye := range in {
		intent, err := protocol.ParseIntent(ye.Intent)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		pos := ye.Position
		if pos == 0 {
			pos = last + 1
		}
		if pos <= last {
			return nil, fmt.Errorf("event %d: position %d is not after %d", i, pos, last)
		}
		last = pos

		// Record values are defined by their JSON encoding; YAML maps are
		// converted rather than decoded directly.
		var raw []byte
		if ye.Value != nil {
			raw, err = json.Marshal(ye.Value)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
		}
		value, err := protocol.DecodeRecordValue(intent, raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		out = append(out, protocol.Event{
			Position:      pos,
			Key:           ye.Key,
			Intent:        intent,
			RecordVersion: ye.Version,
			Timestamp:     ye.Timestamp,
			Value:         value,
		})
	}
	return out, nil
}

// ReadYAML parses an event file:
//
//	events:
//	  - key: 1
//	    intent: FORM:CREATED
//	    version: 2
//	    value: {form_id: invoice, form_key: 1, version: 1}
func ReadYAML(r io.Reader) (Events, error) {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return DecodeYAMLEvents(f.Events)
}

// LoadYAML reads an event file from disk.
func LoadYAML(path string) (Events, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	events, err := ReadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}
