package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/manifest"
	"github.com/artemvlas/veretino-sub000/internal/vault"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// PullOptions select the snapshot to restore.
type PullOptions struct {
	Vault  string // defaults to the first configured vault
	HostID string // defaults to this host
	// Passphrase is asked for only when the snapshot is encrypted.
	Passphrase func() (string, error)
}

// InitKeys creates the key pair used to encrypt vault snapshots.
func (a *VeretinoApp) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled or no vault is configured")
	}
	return a.encryptor.Setup(passphrase)
}

// afterSave pushes a freshly saved database to the vaults. Failures are
// logged; the local save already succeeded.
func (a *VeretinoApp) afterSave(ctx context.Context, savedTo string) {
	if savedTo == "" || len(a.vaults) == 0 {
		return
	}
	if err := a.Push(ctx, savedTo, false); err != nil {
		a.logger.Warn("vault push failed", "path", savedTo, "error", err)
	}
}

// Push uploads the database at dbPath to every configured vault. A vault
// holding a newer snapshot is left alone unless force is set.
func (a *VeretinoApp) Push(ctx context.Context, dbPath string, force bool) error {
	if len(a.vaults) == 0 {
		return fmt.Errorf("no vaults configured")
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("resolving database path: %w", err)
	}
	doc, err := a.store.Load(abs)
	if err != nil {
		return err
	}
	data, err := afero.ReadFile(a.fs, abs)
	if err != nil {
		return vt.NewPathError("read", abs, err)
	}
	version := doc.Meta.Updated.Unix()

	payload := data
	if a.encryptor != nil {
		if !a.encryptor.IsConfigured() {
			return fmt.Errorf("encryption keys missing: run 'veretino keys init' first")
		}
		var buf bytes.Buffer
		if err := a.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
		payload = buf.Bytes()
	}

	name := vault.SnapshotName(a.cfg.HostID, abs)
	for _, nv := range a.vaults {
		if ctx.Err() != nil {
			return vt.ErrCanceled
		}
		remote, err := nv.vault.SnapshotVersion(name)
		if err != nil {
			return fmt.Errorf("vault %s: %w", nv.name, err)
		}
		if remote > version && !force {
			return fmt.Errorf("vault %s holds a newer snapshot of %s (remote=%d, local=%d): pull it or push with --force",
				nv.name, name, remote, version)
		}
		if err := nv.vault.PutSnapshot(name, bytes.NewReader(payload), int64(len(payload)), version); err != nil {
			return fmt.Errorf("vault %s: %w", nv.name, err)
		}
		a.logger.Info("snapshot pushed", "vault", nv.name, "name", name, "version", version, "bytes", len(payload))
	}
	return nil
}

// Pull restores dbPath from a vault snapshot. The current file, if any, is
// kept as the backup so the pull can be undone.
func (a *VeretinoApp) Pull(ctx context.Context, dbPath string, o PullOptions) (vt.Summary, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return vt.Summary{}, fmt.Errorf("resolving database path: %w", err)
	}
	return a.record("pull", abs, func() (vt.Summary, error) {
		nv, err := a.findVault(o.Vault)
		if err != nil {
			return vt.Summary{}, err
		}
		host := o.HostID
		if host == "" {
			host = a.cfg.HostID
		}
		name := vault.SnapshotName(host, abs)

		var raw bytes.Buffer
		if err := nv.vault.GetSnapshot(name, &raw); err != nil {
			return vt.Summary{}, fmt.Errorf("vault %s: %w", nv.name, err)
		}

		data := raw.Bytes()
		if a.encryptor != nil {
			if o.Passphrase == nil {
				return vt.Summary{}, fmt.Errorf("snapshot is encrypted and no passphrase was given")
			}
			pass, err := o.Passphrase()
			if err != nil {
				return vt.Summary{}, err
			}
			dc, err := a.encryptor.Unlock(pass)
			if err != nil {
				return vt.Summary{}, err
			}
			var plain bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(data), &plain); err != nil {
				return vt.Summary{}, fmt.Errorf("decrypting snapshot: %w", err)
			}
			data = plain.Bytes()
		}

		doc, err := manifest.Decode(data)
		if err != nil {
			return vt.Summary{}, fmt.Errorf("snapshot %s: %w", name, err)
		}
		doc.Meta.DbPath = abs
		savedTo, err := a.store.Save(abs, doc)
		if err != nil {
			return vt.Summary{}, err
		}
		if err := a.Open(ctx, savedTo); err != nil {
			return vt.Summary{SavedTo: savedTo}, err
		}
		return vt.Summary{SavedTo: savedTo}, nil
	})
}

func (a *VeretinoApp) findVault(name string) (namedVault, error) {
	if len(a.vaults) == 0 {
		return namedVault{}, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return a.vaults[0], nil
	}
	for _, nv := range a.vaults {
		if nv.name == name {
			return nv, nil
		}
	}
	return namedVault{}, fmt.Errorf("no vault named %q", name)
}

// ValidateVaults checks every configured vault.
func (a *VeretinoApp) ValidateVaults() error {
	for _, nv := range a.vaults {
		if err := nv.vault.ValidateSetup(); err != nil {
			return fmt.Errorf("vault %s: %w", nv.name, err)
		}
	}
	return nil
}
