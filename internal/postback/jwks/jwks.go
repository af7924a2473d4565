// Package jwks loads the consent system's pinned signing keys.
//
// Keys are provisioned as a JWKS file next to the service configuration and
// parsed once at startup. There is deliberately no remote JWKS fetch: the
// postback trust anchor is pinned, not discovered.
package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// KeySet holds RSA public keys by key ID.
type KeySet struct {
	keys map[string]*rsa.PublicKey
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// LoadFile reads and parses a JWKS file.
func LoadFile(path string) (*KeySet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JWKS file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a KeySet from raw JWKS JSON. Non-RSA entries are skipped; a
// document yielding no usable keys is an error because a service without
// postback keys cannot accept any artifact.
func Parse(raw []byte) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse JWKS document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			return nil, fmt.Errorf("parse JWK %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS document contains no usable RSA keys")
	}
	return &KeySet{keys: keys}, nil
}

// Lookup returns the key for the given key ID.
func (ks *KeySet) Lookup(kid string) (*rsa.PublicKey, bool) {
	key, ok := ks.keys[kid]
	return key, ok
}

// Len returns the number of pinned keys.
func (ks *KeySet) Len() int { return len(ks.keys) }

func rsaKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("exponent out of range")
	}
	if n.BitLen() < 2048 {
		return nil, fmt.Errorf("modulus below 2048 bits")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
