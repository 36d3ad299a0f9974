package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"cms-go/internal/cms"
)

// ageHeader starts every binary age file.
var ageHeader = []byte("age-encryption.org/v1\n")

// PlainEncryptor copies data unchanged. It is used for unencrypted exports.
type PlainEncryptor struct{}

var _ cms.Encryptor = PlainEncryptor{}

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (PlainEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Sniff reports whether r starts with an age header. The returned reader
// yields the full stream, header included.
func Sniff(r io.Reader) (bool, io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(ageHeader))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return false, nil, fmt.Errorf("reading archive header: %w", err)
	}
	return bytes.Equal(head, ageHeader), br, nil
}
