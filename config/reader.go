package config

import (
	"bytes"
	"context"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/utils"
)

// Read decodes the table named key of the TOML file at filePath into out and validates it.
// Environment variables in the file are expanded first.
func Read(ctx context.Context, filePath, key string, out Validator, logger logging.Logger) error {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return err
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), key, out, logger)
}

// FromReader is like Read, but takes the file contents from r. originalPath is used in errors.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	key string,
	out Validator,
	logger logging.Logger,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var doc map[string]interface{}
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return errors.Wrapf(err, "failed to decode %q as TOML", originalPath)
	}
	raw, ok := doc[key]
	if !ok {
		return errors.Errorf("no table %q in config file %q", key, originalPath)
	}
	attributes, err := utils.AssertType[map[string]interface{}](raw)
	if err != nil {
		return errors.Wrapf(err, "%q in config file %q is not a table", key, originalPath)
	}
	if err := DecodeAttributes(attributes, out); err != nil {
		return errors.Wrapf(err, "config %q in %q", key, originalPath)
	}
	logger.Debugw("read config", "file", originalPath, "key", key, "config", out)
	return out.Validate(key)
}
