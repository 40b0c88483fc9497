// Package signature checks and combines the federation's block proofs.
package signature

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxSignatures = 9
	DefaultThreshold     = 1

	keyCacheSize = 64
)

var (
	ErrEmptySignatures   = errors.New("Signature list was empty")
	ErrTooManySignatures = errors.New("Too many signatures")
	ErrInvalidAggPubkey  = errors.New("invalid aggpubkey")
)

type Config struct {
	Threshold     int
	MaxSignatures int
	Workers       int
	Codec         xfield.Codec
}

func DefaultConfig() Config {
	return Config{
		Threshold:     DefaultThreshold,
		MaxSignatures: DefaultMaxSignatures,
		Workers:       runtime.NumCPU(),
		Codec:         xfield.DefaultCodec,
	}
}

// Verifier checks proofs against an aggregate pubkey. It is safe for
// concurrent use.
type Verifier struct {
	cfg Config

	// parsed aggregate keys, keyed by their compressed bytes
	keys *lru.Cache
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Threshold < 1 {
		return nil, errors.Errorf("threshold must be at least 1, got %d", cfg.Threshold)
	}
	if cfg.MaxSignatures < cfg.Threshold {
		return nil, errors.Errorf("max signatures %d below threshold %d", cfg.MaxSignatures, cfg.Threshold)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	cache, err := lru.New(keyCacheSize)
	if err != nil {
		return nil, err
	}

	return &Verifier{cfg: cfg, keys: cache}, nil
}

func (v *Verifier) Threshold() int {
	return v.cfg.Threshold
}

func (v *Verifier) pubkey(key xfield.AggregatePubkey) (*secp256k1.PublicKey, error) {
	if pk, ok := v.keys.Get(key); ok {
		return pk.(*secp256k1.PublicKey), nil
	}

	pk, err := secp256k1.ParsePubKey(key[:])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAggPubkey, err.Error())
	}

	v.keys.Add(key, pk)
	return pk, nil
}

// check reports why sig does not verify over digest, or nil when it does.
func check(pk *secp256k1.PublicKey, digest block.Hash, sig []byte) error {
	s, err := cryptography.ParseCanonicalSignature(sig)
	if err != nil {
		return err
	}

	if !s.Verify(digest[:], pk) {
		return errors.New("signature verification failed")
	}

	return nil
}

// Verify reports whether header carries at least threshold distinct
// signatures that verify against key.
func (v *Verifier) Verify(header *block.Header, key xfield.AggregatePubkey, threshold int) (bool, error) {
	pk, err := v.pubkey(key)
	if err != nil {
		return false, err
	}

	digest, err := header.SigHash(v.cfg.Codec)
	if err != nil {
		return false, errors.Wrap(err, "computing sighash")
	}

	return countValid(pk, digest, header.Proof) >= threshold, nil
}

func countValid(pk *secp256k1.PublicKey, digest block.Hash, proof [][]byte) int {
	seen := make(map[string]struct{}, len(proof))
	valid := 0

	for _, sig := range proof {
		if _, dup := seen[string(sig)]; dup {
			continue
		}
		seen[string(sig)] = struct{}{}

		if check(pk, digest, sig) == nil {
			valid++
		}
	}

	return valid
}

type CombineResult struct {
	Block    *block.Block
	Complete bool
	Warning  string
}

// Combine appends the signatures in sigs that verify against key to the
// block's proof. Checks run in parallel; the proof is assembled only after
// every check has finished.
func (v *Verifier) Combine(ctx context.Context, blk *block.Block, sigs [][]byte, key xfield.AggregatePubkey) (*CombineResult, error) {
	if len(sigs) == 0 {
		return nil, ErrEmptySignatures
	}
	if len(sigs) > v.cfg.MaxSignatures {
		return nil, errors.Wrapf(ErrTooManySignatures, "%d > %d", len(sigs), v.cfg.MaxSignatures)
	}

	pk, err := v.pubkey(key)
	if err != nil {
		return nil, err
	}

	digest, err := blk.Header.SigHash(v.cfg.Codec)
	if err != nil {
		return nil, errors.Wrap(err, "computing sighash")
	}

	results := make([]error, len(sigs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Workers)

	for i, sig := range sigs {
		i, sig := i, sig
		g.Go(func() error {
			results[i] = check(pk, digest, sig)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := blk.Copy()

	present := make(map[string]struct{}, len(out.Header.Proof)+len(sigs))
	for _, sig := range out.Header.Proof {
		present[string(sig)] = struct{}{}
	}

	var warnings []string
	for i, sig := range sigs {
		if results[i] != nil {
			warnings = append(warnings, fmt.Sprintf("invalid signature %s: %s", hex.EncodeToString(sig), errors.Cause(results[i])))
			continue
		}

		if _, dup := present[string(sig)]; dup {
			continue
		}
		if len(out.Header.Proof) >= block.MaxProofSignatures {
			warnings = append(warnings, fmt.Sprintf("proof full, signature %s left out", hex.EncodeToString(sig)))
			continue
		}
		present[string(sig)] = struct{}{}

		out.Header.Proof = append(out.Header.Proof, append([]byte(nil), sig...))
	}

	return &CombineResult{
		Block:    out,
		Complete: countValid(pk, digest, out.Header.Proof) >= v.cfg.Threshold,
		Warning:  strings.Join(warnings, "; "),
	}, nil
}
