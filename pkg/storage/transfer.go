package storage

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Export dumps every key of the store as one indented JSON object.
func Export(ctx context.Context, s Store) ([]byte, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}

	data := make(map[string]jsoniter.RawMessage, len(keys))
	for _, key := range keys {
		value, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !json.Valid(value) {
			return nil, fmt.Errorf("export %s: stored value is not valid JSON", key)
		}
		data[key] = value
	}
	return json.MarshalIndent(data, "", "  ")
}

// Import writes every top-level entry of an exported document back to the store.
func Import(ctx context.Context, s Store, payload []byte) (int, error) {
	var data map[string]jsoniter.RawMessage
	if err := json.Unmarshal(payload, &data); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}

	values := make(map[string][]byte, len(data))
	for key, raw := range data {
		values[key] = raw
	}

	if b, ok := s.(Batcher); ok {
		if err := b.SetMany(ctx, values); err != nil {
			return 0, err
		}
		return len(values), nil
	}
	for key, value := range values {
		if err := s.Set(ctx, key, value); err != nil {
			return 0, err
		}
	}
	return len(values), nil
}

// Clear removes every key of the store's scope.
func Clear(ctx context.Context, s Store) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
