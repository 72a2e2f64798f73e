package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/Polqt/bolodb/internal/errs"
)

// defaultKeySize is the key length in octets generated when no --key-hex
// is supplied, per the spec's default random key size.
const defaultKeySize = 64

// resolveKey decodes hexKey if non-empty, otherwise mints a fresh random
// key of defaultKeySize octets and prints its hex encoding to stdout so
// the caller can record it for future mounts of the same database.
func resolveKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		key := make([]byte, defaultKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("bolodb: generate key: %w", err)
		}
		fmt.Printf("generated database key: %s\n", hex.EncodeToString(key))
		return key, nil
	}

	return decodeKey(hexKey)
}

// requireKey decodes hexKey and errors if it's empty: mounting an
// existing database needs the key it was created with, never a freshly
// generated one.
func requireKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, errs.New(errs.Invalid, "bolodb: --key-hex is required to mount an existing database")
	}
	return decodeKey(hexKey)
}

func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errs.New(errs.Invalid, "bolodb: --key-hex is not valid hex: %v", err)
	}
	return key, nil
}
