package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"phonelease/internal/events"
	"phonelease/internal/resolution/metrics"
	"phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/requestcontext"
	"phonelease/pkg/signature"
)

// Authorizer gates the configuration mutators.
type Authorizer interface {
	Require(actor domain.Identity) error
}

// LeaseAuthority answers whether actor may change what identifier resolves to.
type LeaseAuthority interface {
	CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Config is the resolver's initial configuration.
type Config struct {
	// Target is the identity signed responses are bound to. It is also the
	// sender placed in every descriptor.
	Target     domain.Identity
	Signer     domain.Identity
	GatewayURL string
}

// Result is a verified answer.
type Result struct {
	Data    []byte
	Signer  domain.Identity
	Request *models.Request
}

// Gateway implements the two-phase deferred lookup. BeginResolve hands the
// caller a descriptor; CompleteResolve accepts the signed answer.
type Gateway struct {
	mu         sync.Mutex
	target     domain.Identity
	signer     domain.Identity
	gatewayURL string
	owner      Authorizer
	leases     LeaseAuthority

	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(g *Gateway) {
		g.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func New(cfg Config, owner Authorizer, leases LeaseAuthority, opts ...Option) (*Gateway, error) {
	if owner == nil {
		return nil, errors.New("owner capability is required")
	}
	if leases == nil {
		return nil, errors.New("lease authority is required")
	}
	if cfg.Target == domain.ZeroIdentity {
		return nil, errors.New("resolver target is required")
	}
	if cfg.Signer == domain.ZeroIdentity {
		return nil, errors.New("trusted signer is required")
	}
	if err := validateGatewayURL(cfg.GatewayURL); err != nil {
		return nil, err
	}
	g := &Gateway{
		target:     cfg.Target,
		signer:     cfg.Signer,
		gatewayURL: cfg.GatewayURL,
		owner:      owner,
		leases:     leases,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer("phonelease/resolution"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// BeginResolve builds the deferred lookup for resolve(name, data). Writes
// get a template without the call data in the path. Nothing is mutated.
func (g *Gateway) BeginResolve(ctx context.Context, name, data []byte) *models.LookupDescriptor {
	g.mu.Lock()
	target, gatewayURL := g.target, g.gatewayURL
	g.mu.Unlock()

	op, template := "read", models.ReadURL(gatewayURL)
	if models.IsWrite(data) {
		op, template = "write", models.WriteURL(gatewayURL)
	}
	call := models.EncodeResolveCall(name, data)

	g.logger.DebugContext(ctx, "deferred lookup started",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"url", template,
	)
	if g.metrics != nil {
		g.metrics.IncrementLookup(op)
	}
	return &models.LookupDescriptor{
		Sender:           target,
		URLs:             []string{template},
		CallData:         call,
		CallbackSelector: models.SelectorResolveWithProof,
		ExtraData:        call,
	}
}

// Addr starts a read of node's address for coinType.
func (g *Gateway) Addr(ctx context.Context, node domain.Node, coinType uint64) *models.LookupDescriptor {
	return g.BeginResolve(ctx, node[:], models.EncodeAddr(node, coinType))
}

// SetAddr starts a write of value for the identifier's node and coinType.
// Only a caller that may modify the lease gets a descriptor. The caller's
// identity is embedded so the gateway can authenticate the writer, and the
// identifier is the resolve name so the gateway can check the lease too.
func (g *Gateway) SetAddr(ctx context.Context, caller domain.Identity, id domain.Identifier, coinType uint64, value []byte) (*models.LookupDescriptor, error) {
	if caller == domain.ZeroIdentity {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if len(value) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "address value is required")
	}
	allowed, err := g.leases.CanModify(ctx, id, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lease ownership")
	}
	if !allowed {
		g.logger.WarnContext(ctx, "address write refused",
			"request_id", requestcontext.RequestID(ctx),
			"identifier", id.String(),
			"caller", caller.Hex(),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the lease owner may set its address")
	}
	node := id.Node()
	return g.BeginResolve(ctx, []byte(id.String()), models.EncodeSetAddr(node, coinType, value, caller)), nil
}

// CompleteResolve verifies response against extraData and returns the
// verified result. Only the configured signer is trusted. A verified setAddr
// emits AddressUpdated.
func (g *Gateway) CompleteResolve(ctx context.Context, response, extraData []byte) (result *Result, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "gateway.complete_resolve")
	defer func() { g.finish(span, start, err) }()

	_, data, err := models.DecodeResolveCall(extraData)
	if err != nil {
		return nil, err
	}

	signer, answer, err := signature.Verify(g.target, requestcontext.Now(ctx), extraData, response)
	if err != nil {
		g.logger.WarnContext(ctx, "signed response rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("signer", signer.Hex()))
	if signer != g.Signer() {
		g.logger.WarnContext(ctx, "signed response from untrusted signer",
			"request_id", requestcontext.RequestID(ctx),
			"signer", signer.Hex(),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "response was not signed by the trusted signer")
	}

	// Requests other than addr/setAddr still return their verified bytes.
	request, _ := models.DecodeRequest(data)
	if request != nil && request.Op == models.OpSetAddr {
		g.logger.InfoContext(ctx, "address updated",
			"request_id", requestcontext.RequestID(ctx),
			"node", request.Node.Hex(),
			"coin_type", request.CoinType,
			"writer", request.Sender.Hex(),
		)
		g.publish(ctx, events.Event{
			Type:     events.TypeAddressUpdated,
			Owner:    request.Sender,
			Node:     request.Node,
			CoinType: request.CoinType,
			Value:    request.Value,
		})
	}
	return &Result{Data: answer, Signer: signer, Request: request}, nil
}

// UpdateSigner replaces the trusted signer.
func (g *Gateway) UpdateSigner(ctx context.Context, actor, signer domain.Identity) error {
	if err := g.owner.Require(actor); err != nil {
		return err
	}
	if signer == domain.ZeroIdentity {
		return dErrors.New(dErrors.CodeValidation, "signer cannot be the zero identity")
	}

	g.mu.Lock()
	g.signer = signer
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "trusted signer updated",
		"request_id", requestcontext.RequestID(ctx),
		"signer", signer.Hex(),
	)
	g.changed(ctx, "signer", events.Event{Type: events.TypeSignerUpdated, Signer: signer})
	return nil
}

// UpdateGatewayURL replaces the base URL used in new descriptors.
func (g *Gateway) UpdateGatewayURL(ctx context.Context, actor domain.Identity, gatewayURL string) error {
	if err := g.owner.Require(actor); err != nil {
		return err
	}
	if err := validateGatewayURL(gatewayURL); err != nil {
		return err
	}

	g.mu.Lock()
	g.gatewayURL = gatewayURL
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "gateway url updated",
		"request_id", requestcontext.RequestID(ctx),
		"url", gatewayURL,
	)
	g.changed(ctx, "gateway_url", events.Event{Type: events.TypeGatewayURLUpdated, URL: gatewayURL})
	return nil
}

func (g *Gateway) Signer() domain.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signer
}

func (g *Gateway) GatewayURL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gatewayURL
}

func (g *Gateway) Target() domain.Identity {
	return g.target
}

func (g *Gateway) changed(ctx context.Context, kind string, event events.Event) {
	if g.metrics != nil {
		g.metrics.IncrementConfigChange(kind)
	}
	g.publish(ctx, event)
}

func (g *Gateway) publish(ctx context.Context, event events.Event) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.WarnContext(ctx, "failed to publish resolver event",
			"event_type", event.Type,
			"error", err,
		)
	}
}

func (g *Gateway) finish(span trace.Span, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if g.metrics != nil {
		g.metrics.ObserveCallback(outcome, start)
	}
}

func validateGatewayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "gateway url must be an absolute http(s) url")
	}
	return nil
}
