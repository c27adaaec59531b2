// Package sealed wraps filippo.io/age for the portal's zero-knowledge
// storage scheme: request payloads are encrypted to the company's x25519
// public key before they reach the database, so the platform operator can
// never read them. Encryption requires no sender secret and embeds no sender
// identity in the ciphertext; only the holder of the matching private key,
// kept off-platform, can decrypt.
//
// Ciphertext is base64-encoded for storage in a text column. Decryption and
// keypair generation exist for the off-platform key holder tool and tests;
// the server request path only ever calls Encrypt and Fingerprint.
package sealed

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/age"
)

// fingerprintLength is the number of digest bytes exposed for human
// verification of a public key.
const fingerprintLength = 8

// Keypair holds an age x25519 keypair. The public key (age1...) is safe to
// publish; the private key (AGE-SECRET-KEY-1...) must stay off-platform.
type Keypair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeypair creates a new x25519 keypair for a company. The server
// never calls this in the request path; it belongs to the key holder tool.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{
		PrivateKey: identity.String(),
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// ParsePublicKey validates a recipient public key before it is accepted as
// the encryption target for submissions.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid recipient public key: %w", err)
	}
	return nil
}

// Encrypt seals plaintext to the recipient's public key and returns the
// ciphertext as a base64 string suitable for a text column.
func Encrypt(plaintext []byte, recipientKey string) (string, error) {
	recipient, err := age.ParseX25519Recipient(recipientKey)
	if err != nil {
		return "", fmt.Errorf("parse recipient key: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return "", fmt.Errorf("create encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("write plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt opens a base64 ciphertext with the private key. Only the key
// holder tool and tests use this; the server has no private key to call it
// with.
func Decrypt(ciphertext, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read plaintext: %w", err)
	}
	return plaintext, nil
}

// Fingerprint returns a short, stable hex digest of a public key for human
// verification. The same key always fingerprints identically; distinct keys
// collide only with negligible probability.
func Fingerprint(publicKey string) string {
	sum := sha256.Sum256([]byte(publicKey))
	return hex.EncodeToString(sum[:fingerprintLength])
}
