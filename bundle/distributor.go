// Package bundle builds and opens per-member encrypted key bundles. A
// bundle carries newly rotated group key material to exactly one member:
// the distributor generates a fresh ephemeral key pair per bundle, derives
// a pairwise key against the member's long-term public key and seals the
// group key under it. Only the named member can open the envelope.
package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// maxConcurrentBundles bounds parallel ECDH work per CreateBundles call.
const maxConcurrentBundles = 8

type distributor struct {
	provider interfaces.CryptoProvider
	zLogger  zerolog.Logger
}

// NewDistributor creates a new bundle distributor.
func NewDistributor(provider interfaces.CryptoProvider, opLogger zerolog.Logger) (interfaces.BundleDistributor, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required for NewDistributor")
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}
	return &distributor{provider: provider, zLogger: opLogger}, nil
}

// CreateBundles builds one encrypted bundle per roster member. Members are
// processed in parallel; a failure for one member never aborts the others.
// When some members fail, the successful bundles are returned together with
// a *PartialFailureError naming the rest.
func (d *distributor) CreateBundles(ctx context.Context, key *types.GroupSharedKey, members []types.Member) (map[string]types.KeyBundle, error) {
	if len(members) == 0 {
		return nil, ErrNoRecipients
	}
	if key == nil || key.Key.Len() == 0 {
		return nil, ErrMissingKeyMaterial
	}

	material := key.Key.Get()
	defer wipe(material)

	type slot struct {
		bundle types.KeyBundle
		err    error
	}
	results := make([]slot, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBundles)

	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			b, err := d.buildBundle(material, member, key.Version)
			if err != nil {
				d.zLogger.Warn().
					Err(err).
					Str("groupId", key.GroupID).
					Str("memberId", member.ID).
					Msg("Failed to build key bundle for member")
				results[i].err = err
				return nil
			}
			results[i].bundle = *b
			return nil
		})
	}
	// Workers report failures through their slot, never through the group.
	_ = g.Wait()

	bundles := make(map[string]types.KeyBundle, len(members))
	failed := make(map[string]error)
	for i, member := range members {
		if results[i].err != nil {
			failed[member.ID] = results[i].err
			continue
		}
		bundles[member.ID] = results[i].bundle
	}

	d.zLogger.Debug().
		Str("groupId", key.GroupID).
		Int("version", key.Version).
		Int("built", len(bundles)).
		Int("failed", len(failed)).
		Msg("Built key bundles")

	if len(failed) > 0 {
		return bundles, &PartialFailureError{Failed: failed}
	}
	return bundles, nil
}

// buildBundle seals the group key material for one member under a fresh
// ephemeral key pair. The ephemeral private scalar is wiped before return,
// so only the member's long-term private key can recompute the pairwise
// key.
func (d *distributor) buildBundle(material []byte, member types.Member, version int) (*types.KeyBundle, error) {
	if len(member.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingMemberKey, member.ID)
	}

	ephemeral, err := d.provider.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key pair: %w", err)
	}
	defer ephemeral.Clear()

	pairwise, err := d.provider.DeriveSharedKey(ephemeral.Private, member.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pairwise key: %w", err)
	}
	defer wipe(pairwise)

	ciphertext, nonce, err := d.provider.Encrypt(pairwise, material)
	if err != nil {
		return nil, fmt.Errorf("failed to seal bundle: %w", err)
	}

	return &types.KeyBundle{
		ID:              uuid.New().String(),
		MemberID:        member.ID,
		Ciphertext:      ciphertext,
		Nonce:           nonce,
		EphemeralPublic: ephemeral.Public,
		SenderVersion:   version,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Open decrypts a bundle with the member's long-term private key. It is the
// member-side counterpart of CreateBundles: the same pairwise key is derived
// from the member's private scalar and the ephemeral public key carried in
// the bundle.
func (d *distributor) Open(bundle *types.KeyBundle, memberPrivate *types.SecureBytes) ([]byte, error) {
	if bundle == nil {
		return nil, fmt.Errorf("bundle is required")
	}

	pairwise, err := d.provider.DeriveSharedKey(memberPrivate, bundle.EphemeralPublic)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pairwise key: %w", err)
	}
	defer wipe(pairwise)

	return d.provider.Decrypt(pairwise, bundle.Ciphertext, bundle.Nonce)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
