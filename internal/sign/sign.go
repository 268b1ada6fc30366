// Package sign hands the approved lock root to an external signer and
// records the detached signature. Signature bytes are stored, never parsed.
package sign

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

// Signer produces a detached signature over a lock root.
type Signer interface {
	Name() string
	Sign(ctx context.Context, root model.Digest, manifest []byte) ([]byte, error)
}

// ExecSigner runs a command with the root as its last argument and the
// approved manifest on stdin; whatever it prints is the signature.
type ExecSigner struct {
	Command []string
	Dir     string
}

// Name returns the command line.
func (s *ExecSigner) Name() string { return strings.Join(s.Command, " ") }

// Sign runs the command.
func (s *ExecSigner) Sign(ctx context.Context, root model.Digest, manifest []byte) ([]byte, error) {
	args := append(append([]string{}, s.Command[1:]...), string(root))
	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	cmd.Dir = s.Dir
	cmd.Stdin = bytes.NewReader(manifest)
	cmd.Env = append(os.Environ(), "DOCSEAL_MERKLE_ROOT="+string(root))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("signer failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errclass.ErrIOFailure.WithMessage("signer produced no signature")
	}
	return stdout.Bytes(), nil
}

// NewSigner returns the signer configured for p.
func NewSigner(p *repo.Project) (Signer, error) {
	if len(p.Config.Signer.Command) == 0 {
		return nil, errclass.ErrConfigMalformed.WithMessage("signer.command is not configured")
	}
	return &ExecSigner{Command: p.Config.Signer.Command, Dir: p.Root}, nil
}

// Marker reads the signature marker; nil when the project was never signed.
func Marker(p *repo.Project) (*model.SignatureMarker, error) {
	var m model.SignatureMarker
	err := fsutil.ReadJSON(p.SignatureMarkerPath(), &m)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("signature marker: %v", err)
	}
	return &m, nil
}

// Service signs the current lock.
type Service struct {
	project   *repo.Project
	signer    Signer
	store     *lockstore.Store
	validator *verify.Validator
	recorder  audit.Recorder
	log       *logging.Logger
}

// NewService creates a signing service.
func NewService(p *repo.Project, signer Signer, rec audit.Recorder) *Service {
	return &Service{
		project:   p,
		signer:    signer,
		store:     lockstore.New(p),
		validator: verify.New(p),
		recorder:  rec,
		log:       p.Logger.WithFields(map[string]any{"component": "sign"}),
	}
}

// Sign requires the project to be LOCKED (a lock record and a clean full
// validation), signs the lock root and records the marker. The caller
// holds the project lock.
func (s *Service) Sign(ctx context.Context) (*model.SignatureMarker, error) {
	rec, err := s.store.Current()
	if errors.Is(err, errclass.ErrNotFound) {
		return nil, errclass.ErrStateInvalid.WithMessage("project is not locked")
	}
	if err != nil {
		return nil, err
	}
	ds, err := s.validator.Validate(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(ds) > 0 {
		return nil, errclass.ErrStateInvalid.WithMessagef("project has drifted from its lock (%d discrepancies)", len(ds))
	}

	manifest, err := os.ReadFile(filepath.Join(s.project.ManifestsDir(), string(rec.MerkleRoot)+".json"))
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("read approved manifest: %v", err)
	}
	sig, err := s.signer.Sign(ctx, rec.MerkleRoot, manifest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.project.SignaturesDir(), 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create signatures dir: %v", err)
	}
	sigPath := filepath.Join(s.project.SignaturesDir(), string(rec.MerkleRoot)+".sig")
	if err := fsutil.AtomicWrite(sigPath, sig, 0644); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write signature: %v", err)
	}
	rel, err := filepath.Rel(s.project.Root, sigPath)
	if err != nil {
		rel = sigPath
	}
	marker := &model.SignatureMarker{
		MerkleRoot: rec.MerkleRoot,
		SignedAt:   s.project.Clock.Now().UTC(),
		Signer:     s.signer.Name(),
		Path:       filepath.ToSlash(rel),
	}
	if err := fsutil.WriteJSON(s.project.SignatureMarkerPath(), marker); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write signature marker: %v", err)
	}

	sigDigest, err := integrity.Sum(model.AlgorithmSHA256, sig)
	if err != nil {
		return nil, err
	}
	if _, err := s.recorder.Append(model.EventSign, map[string]any{
		"merkle_root":      string(rec.MerkleRoot),
		"signer":           marker.Signer,
		"signature_sha256": string(sigDigest),
		"signature_path":   marker.Path,
	}); err != nil {
		return nil, err
	}
	s.log.Info("lock root signed", map[string]any{"merkle_root": string(rec.MerkleRoot)})
	return marker, nil
}
