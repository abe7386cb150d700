package encryption

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/config"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" disables encryption and returns nil.
func NewEncryptorFromConfig(afs afero.Fs, cfg config.EncryptionConfig) (vt.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(afs, cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
