package util

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oneshare/signal-server-go/internal/model"
)

// FieldError names the first field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}

const (
	reasonBoolean        = "must be boolean"
	reasonPositiveNumber = "must be positive number"
	reasonObject         = "must be object"
)

// ValidateTransferConfig checks the shape of a transfer config document and
// returns the typed config. An empty or null document is a valid empty config.
// Groups are checked independently; unknown keys are ignored.
func ValidateTransferConfig(raw json.RawMessage) (*model.TransferConfig, error) {
	cfg := &model.TransferConfig{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &FieldError{Field: "config", Reason: reasonObject}
	}

	if group, ok, err := objectGroup(doc, "iceHints"); err != nil {
		return nil, err
	} else if ok {
		preferHost, err := optionalBool(group, "iceHints.preferHost", "preferHost")
		if err != nil {
			return nil, err
		}
		cfg.ICEHints = &model.ICEHints{PreferHost: preferHost}
	}

	if group, ok, err := objectGroup(doc, "erasure"); err != nil {
		return nil, err
	} else if ok {
		enabled, isBool := group["enabled"].(bool)
		if !isBool {
			return nil, &FieldError{Field: "erasure.enabled", Reason: reasonBoolean}
		}
		hints := &model.ErasureHints{Enabled: enabled}
		if enabled {
			k, err := requiredPositive(group, "erasure.k", "k")
			if err != nil {
				return nil, err
			}
			m, err := requiredPositive(group, "erasure.m", "m")
			if err != nil {
				return nil, err
			}
			hints.K, hints.M = &k, &m
		}
		cfg.Erasure = hints
	}

	if group, ok, err := objectGroup(doc, "multiplexing"); err != nil {
		return nil, err
	} else if ok {
		hints := &model.MultiplexingHints{}
		if _, present := group["maxInFlight"]; present {
			v, err := requiredPositive(group, "multiplexing.maxInFlight", "maxInFlight")
			if err != nil {
				return nil, err
			}
			hints.MaxInFlight = &v
		}
		cfg.Multiplexing = hints
	}

	if group, ok, err := objectGroup(doc, "transportHints"); err != nil {
		return nil, err
	} else if ok {
		allowQUIC, err := optionalBool(group, "transportHints.allowQUIC", "allowQUIC")
		if err != nil {
			return nil, err
		}
		cfg.TransportHints = &model.TransportHints{AllowQUIC: allowQUIC}
	}

	return cfg, nil
}

// ValidateFiles checks the advertised file list of a new room.
func ValidateFiles(files []model.FileMeta) error {
	if len(files) == 0 {
		return &FieldError{Field: "files", Reason: "must be non-empty array"}
	}
	for i, f := range files {
		if f.Name == "" {
			return &FieldError{Field: fmt.Sprintf("files[%d].name", i), Reason: "must be non-empty string"}
		}
		if f.Size < 0 {
			return &FieldError{Field: fmt.Sprintf("files[%d].size", i), Reason: "must be non-negative number"}
		}
	}
	return nil
}

func objectGroup(doc map[string]any, name string) (map[string]any, bool, error) {
	v, present := doc[name]
	if !present || v == nil {
		return nil, false, nil
	}
	group, ok := v.(map[string]any)
	if !ok {
		return nil, false, &FieldError{Field: name, Reason: reasonObject}
	}
	return group, true, nil
}

func optionalBool(group map[string]any, field, key string) (*bool, error) {
	v, present := group[key]
	if !present {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, &FieldError{Field: field, Reason: reasonBoolean}
	}
	return &b, nil
}

func requiredPositive(group map[string]any, field, key string) (float64, error) {
	n, ok := group[key].(float64)
	if !ok || n <= 0 {
		return 0, &FieldError{Field: field, Reason: reasonPositiveNumber}
	}
	return n, nil
}
