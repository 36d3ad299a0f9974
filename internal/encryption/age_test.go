package encryption

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// lowWork keeps scrypt fast in tests.
const lowWork = 10

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "export json", input: []byte(`{"version":"1.0.0","data":{"jobs":[]}}`)},
		{name: "large", input: bytes.Repeat([]byte("abcdefgh"), 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewAgeEncryptor("correct horse", lowWork)

			var ciphertext bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &ciphertext); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(ciphertext.Bytes(), tt.input) {
				t.Error("ciphertext contains the plaintext")
			}

			var plaintext bytes.Buffer
			if err := e.Decrypt(&ciphertext, &plaintext); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plaintext.Bytes(), tt.input) {
				t.Errorf("Decrypt() returned %d bytes, want %d", plaintext.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_WrongPassphrase(t *testing.T) {
	t.Parallel()

	var ciphertext bytes.Buffer
	if err := NewAgeEncryptor("right", lowWork).Encrypt(strings.NewReader("secret"), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	err := NewAgeEncryptor("wrong", lowWork).Decrypt(&ciphertext, io.Discard)
	if err == nil {
		t.Error("Decrypt() with wrong passphrase expected error")
	}
}

func TestAgeEncryptor_EmptyPassphrase(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor("", lowWork)
	if err := e.Encrypt(strings.NewReader("x"), io.Discard); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("Encrypt() error = %v, want ErrNoPassphrase", err)
	}
	if err := e.Decrypt(strings.NewReader("x"), io.Discard); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("Decrypt() error = %v, want ErrNoPassphrase", err)
	}
}

func TestSniff(t *testing.T) {
	t.Parallel()

	var archive bytes.Buffer
	if err := NewAgeEncryptor("pw", lowWork).Encrypt(strings.NewReader("data"), &archive); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	archiveBytes := archive.Bytes()

	tests := []struct {
		name  string
		input []byte
		want  bool
	}{
		{name: "age archive", input: archiveBytes, want: true},
		{name: "json export", input: []byte(`{"version":"1.0.0"}`), want: false},
		{name: "short input", input: []byte("age"), want: false},
		{name: "empty", input: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, r, err := Sniff(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Sniff() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sniff() = %v, want %v", got, tt.want)
			}
			rest, _ := io.ReadAll(r)
			if !bytes.Equal(rest, tt.input) {
				t.Error("Sniff() reader does not yield the full input")
			}
		})
	}
}

func TestPlainEncryptor(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := (PlainEncryptor{}).Encrypt(strings.NewReader("as is"), &out); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	var back bytes.Buffer
	if err := (PlainEncryptor{}).Decrypt(&out, &back); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if back.String() != "as is" {
		t.Errorf("round trip = %q", back.String())
	}
}
