package core

// Identity wraps an RSA key pair and exposes the raw and structured
// sign/verify operations every other package builds on. Signing requires
// the private component; verification only ever needs the public one.
//
// Import hygiene: identity depends only on the standard library crypto
// primitives and canonicalJSON, so it sits at the same low tier the
// teacher's wallet package occupies relative to ledger/consensus/network.

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
)

// DefaultKeyBits is the RSA modulus size used by GenerateIdentity. The
// reference implementation this system is modeled on used 1024 bits; 2048
// is used here instead. That only changes PEM wire bytes, never the
// signing/verification semantics.
const DefaultKeyBits = 2048

const (
	pemBlockPrivate = "RSA PRIVATE KEY"
	pemBlockPublic  = "RSA PUBLIC KEY"
)

// Identity is either a full key pair (can sign and verify) or a
// public-only key pair (can only verify).
type Identity struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// GenerateIdentity creates a new full identity with a fresh RSA key pair.
func GenerateIdentity() (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, DefaultKeyBits)
	if err != nil {
		return nil, err
	}
	return &Identity{public: &key.PublicKey, private: key}, nil
}

// IdentityFromPEM parses a PEM-encoded RSA key. If the PEM block holds a
// private key the resulting Identity can sign; otherwise it is
// public-only.
func IdentityFromPEM(text string) (*Identity, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, ErrInvalidSignature
	}

	switch block.Type {
	case pemBlockPrivate:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return &Identity{public: &key.PublicKey, private: key}, nil

	case pemBlockPublic:
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return &Identity{public: key}, nil

	default:
		// Accept either block label transparently: some callers only ever
		// saw "RSA PRIVATE KEY"/"RSA PUBLIC KEY" but PKIX-wrapped keys are
		// also common in the wild.
		if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
			if pub, ok := key.(*rsa.PublicKey); ok {
				return &Identity{public: pub}, nil
			}
		}
		return nil, ErrInvalidSignature
	}
}

// PublicPEM returns the PEM encoding of the public key. Two identities are
// the same author iff their PublicPEM values are byte-equal.
func (id *Identity) PublicPEM() string {
	der := x509.MarshalPKCS1PublicKey(id.public)
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockPublic, Bytes: der}))
}

// PrivatePEM returns the PEM encoding of the private key, or
// ErrNoPrivateKey if this identity is public-only.
func (id *Identity) PrivatePEM() (string, error) {
	if id.private == nil {
		return "", ErrNoPrivateKey
	}
	der := x509.MarshalPKCS1PrivateKey(id.private)
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockPrivate, Bytes: der})), nil
}

// SignRaw signs the given bytes with SHA-256 + RSA-PSS. It fails with
// ErrNoPrivateKey if this identity holds no private key.
func (id *Identity) SignRaw(data []byte) ([]byte, error) {
	if id.private == nil {
		return nil, ErrNoPrivateKey
	}
	digest := sha256.Sum256(data)
	return rsa.SignPSS(rand.Reader, id.private, crypto.SHA256, digest[:], nil)
}

// VerifyRaw checks an RSA-PSS/SHA-256 signature over data against this
// identity's public key.
func (id *Identity) VerifyRaw(data, signature []byte) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(id.public, crypto.SHA256, digest[:], signature, nil) == nil
}

// Sign serializes value to canonical JSON and signs the result.
func (id *Identity) Sign(value any) ([]byte, error) {
	data, err := canonicalJSON(value)
	if err != nil {
		return nil, err
	}
	return id.SignRaw(data)
}

// Verify serializes value to canonical JSON and checks signature against
// it.
func (id *Identity) Verify(value any, signature []byte) bool {
	data, err := canonicalJSON(value)
	if err != nil {
		return false
	}
	return id.VerifyRaw(data, signature)
}

// HasPrivateKey reports whether this identity can sign.
func (id *Identity) HasPrivateKey() bool {
	return id.private != nil
}

// SamePublicKey reports whether two identities share the same public key,
// which is the system's definition of "same author".
func (id *Identity) SamePublicKey(other *Identity) bool {
	if id == nil || other == nil {
		return false
	}
	return id.PublicPEM() == other.PublicPEM()
}
