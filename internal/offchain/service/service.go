// Package service answers deferred lookups with signed responses.
package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"phonelease/internal/offchain/store"
	"phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/sentinel"
	"phonelease/pkg/requestcontext"
	"phonelease/pkg/signature"
)

// AddressStore is where answers are read from and writes land.
type AddressStore interface {
	Get(ctx context.Context, key store.Key) ([]byte, error)
	Set(ctx context.Context, key store.Key, value []byte) error
}

// LeaseAuthority answers whether actor holds the lease behind identifier.
type LeaseAuthority interface {
	CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error)
}

// WriterPolicy decides which embedded senders may write.
type WriterPolicy interface {
	Allowed(writer domain.Identity) bool
}

// Allowlist permits the listed writers. An empty list permits any writer.
type Allowlist map[domain.Identity]struct{}

func NewAllowlist(writers ...domain.Identity) Allowlist {
	a := make(Allowlist, len(writers))
	for _, w := range writers {
		a[w] = struct{}{}
	}
	return a
}

func (a Allowlist) Allowed(writer domain.Identity) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[writer]
	return ok
}

// Service signs answers with a single secp256k1 key.
type Service struct {
	key    *ecdsa.PrivateKey
	ttl    time.Duration
	store  AddressStore
	leases LeaseAuthority
	policy WriterPolicy
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithWriterPolicy(policy WriterPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func New(key *ecdsa.PrivateKey, ttl time.Duration, addresses AddressStore, leases LeaseAuthority, opts ...Option) (*Service, error) {
	switch {
	case key == nil:
		return nil, errors.New("signing key is required")
	case ttl <= 0:
		return nil, errors.New("response ttl must be positive")
	case addresses == nil:
		return nil, errors.New("address store is required")
	case leases == nil:
		return nil, errors.New("lease authority is required")
	}
	s := &Service{
		key:    key,
		ttl:    ttl,
		store:  addresses,
		leases: leases,
		policy: NewAllowlist(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signer is the identity the registry must trust for these answers.
func (s *Service) Signer() domain.Identity {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Read answers an addr request. Writes are refused on this path.
func (s *Service) Read(ctx context.Context, sender common.Address, callData []byte) ([]byte, error) {
	_, req, err := s.decode(callData)
	if err != nil {
		return nil, err
	}
	if req.Op != models.OpAddr {
		return nil, dErrors.New(dErrors.CodeBadRequest, "writes must be submitted with POST")
	}
	value, err := s.store.Get(ctx, store.Key{Node: req.Node, CoinType: req.CoinType})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		value = []byte{}
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address")
	}
	return s.sign(ctx, sender, callData, value)
}

// Write applies a setAddr request and signs the stored value. The embedded
// sender must be the authenticated caller, pass the writer policy, and hold
// the lease named by the resolve call.
func (s *Service) Write(ctx context.Context, sender common.Address, callData []byte) ([]byte, error) {
	name, req, err := s.decode(callData)
	if err != nil {
		return nil, err
	}
	if req.Op != models.OpSetAddr {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reads must be submitted with GET")
	}
	if caller := requestcontext.Identity(ctx); caller == domain.ZeroIdentity || caller != req.Sender {
		return nil, s.refuse(ctx, req, dErrors.CodeForbidden, "writer does not match the authenticated caller")
	}
	if !s.policy.Allowed(req.Sender) {
		return nil, s.refuse(ctx, req, dErrors.CodeForbidden, "writer is not allowed")
	}
	id, err := domain.ParseIdentifier(string(name))
	if err != nil {
		return nil, err
	}
	if id.Node() != req.Node {
		return nil, dErrors.New(dErrors.CodeValidation, "name does not hash to the node")
	}
	allowed, err := s.leases.CanModify(ctx, id, req.Sender)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check lease ownership")
	}
	if !allowed {
		return nil, s.refuse(ctx, req, dErrors.CodeForbidden, "writer does not hold the lease")
	}
	if err := s.store.Set(ctx, store.Key{Node: req.Node, CoinType: req.CoinType}, req.Value); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store address")
	}
	s.logger.InfoContext(ctx, "address stored",
		"request_id", requestcontext.RequestID(ctx),
		"node", req.Node.Hex(),
		"coin_type", req.CoinType,
		"writer", req.Sender.Hex(),
	)
	return s.sign(ctx, sender, callData, req.Value)
}

func (s *Service) decode(callData []byte) ([]byte, *models.Request, error) {
	name, data, err := models.DecodeResolveCall(callData)
	if err != nil {
		return nil, nil, err
	}
	req, err := models.DecodeRequest(data)
	if err != nil {
		return nil, nil, err
	}
	return name, req, nil
}

func (s *Service) refuse(ctx context.Context, req *models.Request, code dErrors.Code, msg string) error {
	s.logger.WarnContext(ctx, "write refused",
		"request_id", requestcontext.RequestID(ctx),
		"writer", req.Sender.Hex(),
		"node", req.Node.Hex(),
		"reason", msg,
	)
	return dErrors.New(code, msg)
}

// sign binds result to sender, the resolver that will verify it.
func (s *Service) sign(ctx context.Context, sender common.Address, callData, result []byte) ([]byte, error) {
	expires := uint64(requestcontext.Now(ctx).Add(s.ttl).Unix())
	sig, err := signature.Sign(s.key, sender, expires, callData, result)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign response")
	}
	resp, err := signature.EncodeResponse(signature.SignedResponse{Result: result, Expires: expires, Signature: sig})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode response")
	}
	return resp, nil
}
