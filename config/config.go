// Package config reads component configuration for framepipe processes from TOML files. A file
// holds any number of tables; a process selects its own by key.
package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Validator is implemented by every component config. path names the config in error messages.
type Validator interface {
	Validate(path string) error
}

// DecodeAttributes decodes a config table into out, which must be a pointer. Field names come
// from json tags. Keys that match no field are an error.
func DecodeAttributes(attributes map[string]interface{}, out interface{}) error {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attributes); err != nil {
		return err
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return errors.Errorf("unknown config keys %q", md.Unused)
	}
	return nil
}

// ParseIntPair parses a "MIN,MAX" command line value.
func ParseIntPair(s string) ([2]int, error) {
	var out [2]int
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return out, errors.Errorf("expected MIN,MAX but got %q", s)
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return out, errors.Wrapf(err, "parsing %q", s)
		}
		out[i] = v
	}
	return out, nil
}

// ParseFloatPair parses a "MIN,MAX" command line value.
func ParseFloatPair(s string) ([2]float64, error) {
	var out [2]float64
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return out, errors.Errorf("expected MIN,MAX but got %q", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return out, errors.Wrapf(err, "parsing %q", s)
		}
		out[i] = v
	}
	return out, nil
}
