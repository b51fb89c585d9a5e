package main

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

func parseKey(name, value string) (ed25519.PublicKey, error) {
	if value == "" {
		return nil, errors.Errorf("-%s is required", name)
	}

	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("-%s must be a base58 public key, got %q", name, value)
	}
	return decoded, nil
}

func parseOptionalKey(name, value string) (ed25519.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	return parseKey(name, value)
}

// parseTimestamp accepts unix seconds or an RFC 3339 time.
func parseTimestamp(name, value string) (int64, error) {
	if value == "" {
		return 0, errors.Errorf("-%s is required", name)
	}

	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return unix, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, errors.Errorf("-%s must be unix seconds or RFC 3339, got %q", name, value)
	}
	return t.Unix(), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
