package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeStatus parses a status response body. All three fields are required;
// a payload missing any of them is rejected so a stale Status is never
// partially overwritten with zero values.
func DecodeStatus(body []byte) (Status, error) {
	var wire statusWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return Status{}, fmt.Errorf("could not parse status response: %w", err)
	}
	if wire.StoredKeyCount == nil {
		return Status{}, errors.New("status response is missing stored_key_count")
	}
	if wire.MaxKeyCount == nil {
		return Status{}, errors.New("status response is missing max_key_count")
	}
	if wire.KeySize == nil {
		return Status{}, errors.New("status response is missing key_size")
	}
	return Status{
		StoredKeyCount: *wire.StoredKeyCount,
		MaxKeyCount:    *wire.MaxKeyCount,
		KeySize:        *wire.KeySize,
	}, nil
}

// DecodeKeyContainer parses and validates a key container response body.
func DecodeKeyContainer(body []byte) (KeyContainer, error) {
	var container KeyContainer
	if err := json.Unmarshal(body, &container); err != nil {
		return KeyContainer{}, fmt.Errorf("could not parse key container: %w", err)
	}
	if err := container.Validate(); err != nil {
		return KeyContainer{}, err
	}
	return container, nil
}
