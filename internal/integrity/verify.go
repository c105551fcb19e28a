package integrity

import (
	"fmt"
	"log/slog"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Verifier runs the atomic five-step verification sequence from the
// signature line format: extract, rehash, compare, trust lookup, Ed25519
// verify. Grounded on marketplace.Verifier's VerifyChecksum/VerifySignature
// pair, merged into one verification call since the spec's five steps are
// defined atomically rather than as independently callable phases.
type Verifier struct {
	store  *Store
	logger *slog.Logger
}

// NewVerifier builds a Verifier backed by store.
func NewVerifier(store *Store, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, logger: logger.With("component", "integrity.verifier")}
}

// Result is the outcome of a single verification, mirroring the teacher's
// VerificationResult shape.
type Result struct {
	Valid       bool
	SignedBy    string
	Hash        string
	Reason      string
}

// Verify checks raw file content end to end and returns a populated Result,
// or a *ryemodels.RyeError(ErrIntegrity) describing the first failure.
func (v *Verifier) Verify(raw []byte) (*Result, error) {
	if HasLegacySignature(string(raw)) {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity,
			fmt.Errorf("legacy validation marker rejected")).WithMessage("file uses a legacy rye:validated/kiwi-mcp:validated marker; re-sign with rye:signed")
	}

	sig, found := ExtractSignature(raw)
	if !found {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity,
			fmt.Errorf("no signature present")).WithMessage("item file carries no rye:signed comment")
	}

	withoutSig := StripAuthoritativeLine(raw)
	computed := ContentHash(withoutSig)
	if computed != sig.ContentHash {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity,
			fmt.Errorf("hash mismatch: expected %s, computed %s", sig.ContentHash, computed)).
			WithMessage("content hash does not match the embedded signature hash")
	}

	pub, ok := v.store.Lookup(sig.KeyFP)
	if !ok {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity,
			fmt.Errorf("untrusted key fingerprint %s", sig.KeyFP)).
			WithMessage("signing key fingerprint is not in any trust store")
	}

	if err := VerifySignature(pub, withoutSig, sig.Signature); err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity, err).
			WithMessage("ed25519 signature verification failed")
	}

	return &Result{Valid: true, SignedBy: sig.KeyFP, Hash: computed}, nil
}

// VerifyItem is a convenience wrapper that also populates the item's
// ContentWithoutSig and Signature fields from the verification pass.
func (v *Verifier) VerifyItem(item *ryemodels.Item) error {
	result, err := v.Verify(item.RawContent)
	if err != nil {
		return err
	}
	sig, _ := ExtractSignature(item.RawContent)
	item.Signature = &sig
	item.ContentWithoutSig = StripAuthoritativeLine(item.RawContent)
	_ = result
	return nil
}
