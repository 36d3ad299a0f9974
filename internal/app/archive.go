package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cms-go/internal/cms"
	"cms-go/internal/encryption"
)

// ErrPassphraseRequired is returned when an encrypted archive is imported
// without a way to obtain its passphrase.
var ErrPassphraseRequired = errors.New("archive is encrypted and no passphrase was given")

// PassphraseFunc supplies the passphrase of an encrypted archive. It is only
// called when one is needed.
type PassphraseFunc func() (string, error)

// Export writes an export package of the active backend to w, age-encrypted
// when passphrase is not empty.
func (a *CMSApp) Export(ctx context.Context, w io.Writer, passphrase string) error {
	pkg, err := a.storage.Export(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := cms.WriteExportPackage(&buf, pkg); err != nil {
		return err
	}
	var enc cms.Encryptor = encryption.PlainEncryptor{}
	if passphrase != "" {
		enc = encryption.NewAgeEncryptor(passphrase, a.workFactor)
	}
	if err := enc.Encrypt(&buf, w); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	a.logger.Info("export written", "encrypted", passphrase != "", "exportedAt", cms.FormatTime(pkg.ExportedAt))
	return nil
}

// Import reads an archive written by Export and imports it into the active
// backend. Encrypted archives are detected from their header; passphrase is
// asked for only then and may be nil for plain archives.
func (a *CMSApp) Import(ctx context.Context, r io.Reader, passphrase PassphraseFunc) (*cms.ImportResult, error) {
	encrypted, r, err := encryption.Sniff(r)
	if err != nil {
		return nil, err
	}

	var enc cms.Encryptor = encryption.PlainEncryptor{}
	if encrypted {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		pw, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		if pw == "" {
			return nil, ErrPassphraseRequired
		}
		enc = encryption.NewAgeEncryptor(pw, 0)
	}

	var plain bytes.Buffer
	if err := enc.Decrypt(r, &plain); err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	pkg, err := cms.ReadExportPackage(&plain)
	if err != nil {
		return nil, err
	}

	result, err := a.storage.Import(ctx, pkg)
	if err != nil {
		return nil, err
	}
	a.logger.Info("archive imported", "encrypted", encrypted, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}
