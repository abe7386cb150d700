package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/config"
	"github.com/artemvlas/veretino-sub000/internal/encryption"
	"github.com/artemvlas/veretino-sub000/internal/fs"
	"github.com/artemvlas/veretino-sub000/internal/history"
	"github.com/artemvlas/veretino-sub000/internal/manifest"
	"github.com/artemvlas/veretino-sub000/internal/vault"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Version is stamped into the header of every saved database.
const Version = "0.9.0"

// Origin is the App/Origin header value.
const Origin = "Veretino " + Version

// Options inject the parts of the environment tests need to control.
type Options struct {
	Fs       afero.Fs        // defaults to the OS filesystem
	Stderr   io.Writer       // log mirror; defaults to os.Stderr
	Verbose  bool            // log debug records
	Progress vt.ProgressFunc // live progress for hashing operations
	Clock    vt.Clock
	IDs      vt.IDGenerator
}

// VeretinoApp is the application layer between the CLI and vt.Session.
// It constructs all dependencies from config, records every operation in the
// history, and pushes saved databases to the configured vaults.
type VeretinoApp struct {
	cfg       *config.Config
	fs        afero.Fs
	session   *vt.Session
	store     *manifest.Store
	digests   *manifest.DigestFiles
	hasher    *fs.Hasher
	history   vt.History
	vaults    []namedVault
	encryptor vt.Encryptor
	algorithm vt.Algorithm
	filter    vt.FilterRule
	logger    vt.Logger
	clock     vt.Clock
	opID      string
	logFile   io.Closer
}

type namedVault struct {
	name  string
	vault vt.Vault
}

// NewVeretinoApp creates a fully wired VeretinoApp from the given config.
// The caller must call Close when done.
func NewVeretinoApp(ctx context.Context, cfg *config.Config, opts Options) (*VeretinoApp, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = vt.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = vt.UUIDGenerator{}
	}

	opID := opts.IDs.New()
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &VeretinoApp{
		cfg:     cfg,
		fs:      opts.Fs,
		logger:  logger,
		clock:   opts.Clock,
		opID:    opID,
		logFile: logFile,
	}
	fail := func(err error) (*VeretinoApp, error) {
		a.Close()
		return nil, err
	}

	if a.algorithm, err = vt.ParseAlgorithm(cfg.Hashing.Algorithm); err != nil {
		return fail(fmt.Errorf("hashing.algorithm: %w", err))
	}
	if a.filter, err = FilterRule(cfg.Filter); err != nil {
		return fail(fmt.Errorf("filter: %w", err))
	}

	if a.history, err = history.NewHistoryFromConfig(cfg.History); err != nil {
		return fail(fmt.Errorf("creating history: %w", err))
	}

	for _, vc := range cfg.Vaults {
		v, err := vault.NewVaultFromConfig(ctx, vc)
		if err != nil {
			return fail(fmt.Errorf("creating vault %q: %w", vc.Name, err))
		}
		a.vaults = append(a.vaults, namedVault{name: vc.Name, vault: v})
	}
	if len(a.vaults) > 0 {
		if a.encryptor, err = encryption.NewEncryptorFromConfig(opts.Fs, cfg.Encryption); err != nil {
			return fail(fmt.Errorf("creating encryptor: %w", err))
		}
	}

	scanner := fs.NewScanner(opts.Fs, logger)
	scanner.IgnoreFile = cfg.Filter.IgnoreFile
	a.hasher = fs.NewHasher(opts.Fs, cfg.Hashing.ChunkSize)
	a.digests = manifest.NewDigestFiles(opts.Fs)
	a.store = manifest.NewStore(opts.Fs, manifest.StoreOptions{
		Origin:      Origin,
		Backup:      cfg.Save.Backup,
		FallbackDir: cfg.Save.FallbackDir,
		Logger:      logger,
	})
	a.session = vt.NewSession(a.hasher, scanner, a.store, logger, opts.Clock, vt.Options{
		DetectMoved:   cfg.Hashing.DetectMoved,
		ImportDigests: cfg.Hashing.ImportDigests,
		Progress:      opts.Progress,
		Digests:       a.digests,
	})
	return a, nil
}

// Session exposes the engine for callers that drive it directly.
func (a *VeretinoApp) Session() *vt.Session {
	return a.session
}

// OperationID identifies this run in the log file.
func (a *VeretinoApp) OperationID() string {
	return a.opID
}

// Cancel interrupts the running operation.
func (a *VeretinoApp) Cancel() {
	a.session.Cancel()
}

// Close releases the history and the log file.
func (a *VeretinoApp) Close() error {
	var firstErr error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing history: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
