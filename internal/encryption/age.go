// Package encryption protects export archives at rest.
package encryption

import (
	"errors"
	"fmt"
	"io"

	"filippo.io/age"

	"cms-go/internal/cms"
)

// DefaultWorkFactor is the scrypt work factor (log2 of N) for new archives.
const DefaultWorkFactor = 18

// ErrNoPassphrase is returned when an age encryptor has no passphrase.
var ErrNoPassphrase = errors.New("passphrase must not be empty")

// AgeEncryptor implements cms.Encryptor with filippo.io/age passphrase
// (scrypt) encryption.
type AgeEncryptor struct {
	passphrase string
	workFactor int
}

var _ cms.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor returns an encryptor keyed by passphrase. workFactor <= 0
// selects DefaultWorkFactor.
func NewAgeEncryptor(passphrase string, workFactor int) *AgeEncryptor {
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &AgeEncryptor{passphrase: passphrase, workFactor: workFactor}
}

// Encrypt reads plaintext from r and writes an age archive to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if e.passphrase == "" {
		return ErrNoPassphrase
	}
	recipient, err := age.NewScryptRecipient(e.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(e.workFactor)

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads an age archive from r and writes the plaintext to w.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	if e.passphrase == "" {
		return ErrNoPassphrase
	}
	identity, err := age.NewScryptIdentity(e.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("decrypting archive: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
