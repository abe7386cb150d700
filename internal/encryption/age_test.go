package encryption

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	return newAgeEncryptorOn(afero.NewMemMapFs(), false)
}

func newAgeEncryptorOn(afs afero.Fs, armored bool) *AgeEncryptor {
	return NewAgeEncryptor(afs, config.EncryptionConfig{
		PublicKeyPath:  "/home/user/.veretino/keys/veretino.pub",
		PrivateKeyPath: "/home/user/.veretino/keys/veretino.key",
		Armor:          armored,
	})
}

func TestAgeEncryptor_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeEncryptor_Setup_IsConfigured(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			if err := e.Setup(passphrase); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			// Encrypt
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			// Encrypted output should differ from plaintext
			if len(tt.input) > 0 && bytes.Equal(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output is identical to plaintext")
			}

			// Decrypt
			ctx, err := e.Unlock(passphrase)
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}

			var decrypted bytes.Buffer
			if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, err := e.Unlock("wrong-passphrase")
	if err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	err := e.Encrypt(bytes.NewReader([]byte("data")), &buf)
	if err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}

func TestAgeEncryptor_UnlockBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	_, err := e.Unlock("passphrase")
	if err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}

func TestAgeEncryptor_SetupRefusesOverwrite(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("first"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := e.Setup("second"); err == nil {
		t.Error("second Setup() should refuse to replace existing keys")
	}
	if _, err := e.Unlock("first"); err != nil {
		t.Errorf("Unlock() with original passphrase error = %v", err)
	}
}

func TestAgeEncryptor_Armor(t *testing.T) {
	t.Parallel()

	afs := afero.NewMemMapFs()
	armored := newAgeEncryptorOn(afs, true)
	if err := armored.Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	binary := newAgeEncryptorOn(afs, false)

	input := []byte(`{"Folder": "docs"}`)
	var arm, bin bytes.Buffer
	if err := armored.Encrypt(bytes.NewReader(input), &arm); err != nil {
		t.Fatalf("armored Encrypt() error = %v", err)
	}
	if err := binary.Encrypt(bytes.NewReader(input), &bin); err != nil {
		t.Fatalf("binary Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(arm.String(), "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Errorf("armored output does not start with the armor header: %q", arm.String()[:20])
	}

	// One unlocked key reads both forms.
	ctx, err := binary.Unlock("pass")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	for name, buf := range map[string]*bytes.Buffer{"armored": &arm, "binary": &bin} {
		var out bytes.Buffer
		if err := ctx.Decrypt(bytes.NewReader(buf.Bytes()), &out); err != nil {
			t.Fatalf("%s Decrypt() error = %v", name, err)
		}
		if !bytes.Equal(out.Bytes(), input) {
			t.Errorf("%s round-trip = %q, want %q", name, out.Bytes(), input)
		}
	}
}
