package integrity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateKeyPair generates a new Ed25519 key pair for signing items.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}
	return pub, priv, nil
}

// Sign signs data with priv and returns the base64url (unpadded) signature
// the spec's signature line embeds.
func Sign(data []byte, priv ed25519.PrivateKey) string {
	sig := ed25519.Sign(priv, data)
	return base64.RawURLEncoding.EncodeToString(sig)
}

// VerifySignature verifies a base64url-encoded Ed25519 signature over data.
func VerifySignature(pub ed25519.PublicKey, data []byte, sigB64URL string) error {
	sig, err := base64.RawURLEncoding.DecodeString(sigB64URL)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}
	if !ed25519.Verify(pub, data, sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// Fingerprint returns the 16-hex-character key fingerprint embedded in a
// signature line: the first 8 bytes of sha256(pub), hex-encoded.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// ContentHash returns the hex sha256 of data, matching the signature line's
// <sha256-hex> field.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodePublicKey / DecodePublicKey round-trip a public key through base64
// for storage in trust-store TOML documents.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(b))
	}
	return ed25519.PublicKey(b), nil
}

func EncodePrivateKey(priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(priv)
}

func DecodePrivateKey(s string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: %d", len(b))
	}
	return ed25519.PrivateKey(b), nil
}
