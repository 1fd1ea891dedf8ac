package service

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Treasury,Payer,EventPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"phonelease/internal/events"
	pricing "phonelease/internal/pricing/models"
	"phonelease/internal/registration/metrics"
	"phonelease/internal/registration/models"
	"phonelease/internal/registration/store"
	resolution "phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/sentinel"
	"phonelease/pkg/requestcontext"
)

// LeaseStore is the transactional ownership adapter plus the stuck-fee
// balance.
type LeaseStore interface {
	RunInTx(ctx context.Context, fn func(store.OwnershipAdapter) error) error
	GetRecord(ctx context.Context, id domain.Identifier) (*models.Record, error)
	AddStuckFees(ctx context.Context, amount *big.Int) error
	StuckFees(ctx context.Context) (*big.Int, error)
	SubStuckFees(ctx context.Context, amount *big.Int) error
}

type FeeQuoter interface {
	Quote(ctx context.Context, tier domain.Tier, d time.Duration) (*pricing.FeeQuote, error)
}

// Treasury receives collected fees.
type Treasury interface {
	Collect(ctx context.Context, amount *big.Int) error
}

// Payer moves caller funds. Hold reserves payment and checks that refund can
// be credited back, moving nothing; Settle takes the held payment and credits
// refund; Release drops the hold.
type Payer interface {
	Hold(ctx context.Context, from domain.Identity, payment, refund *big.Int) error
	Settle(ctx context.Context, from domain.Identity, payment, refund *big.Int)
	Release(ctx context.Context, from domain.Identity, payment *big.Int)
}

type Authorizer interface {
	Require(actor domain.Identity) error
}

// AddressBinder starts a setAddr deferred lookup for a freshly leased node.
type AddressBinder interface {
	SetAddr(ctx context.Context, caller domain.Identity, id domain.Identifier, coinType uint64, value []byte) (*resolution.LookupDescriptor, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Ledger is the lease state machine. Every mutation holds mu for its full
// duration and writes through a single store transaction. Events are
// published after mu is released.
type Ledger struct {
	mu       sync.Mutex
	store    LeaseStore
	pricing  FeeQuoter
	treasury Treasury
	payer    Payer
	owner    Authorizer

	binder    AddressBinder
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	ackMu   sync.Mutex
	pending domain.Identifier
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(l *Ledger) {
		l.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithAddressBinder enables address binding on registration.
func WithAddressBinder(binder AddressBinder) Option {
	return func(l *Ledger) {
		l.binder = binder
	}
}

// New constructs a Ledger.
func New(leases LeaseStore, quoter FeeQuoter, treasury Treasury, payer Payer, owner Authorizer, opts ...Option) (*Ledger, error) {
	switch {
	case leases == nil:
		return nil, errors.New("lease store is required")
	case quoter == nil:
		return nil, errors.New("fee quoter is required")
	case treasury == nil:
		return nil, errors.New("treasury is required")
	case payer == nil:
		return nil, errors.New("payer is required")
	case owner == nil:
		return nil, errors.New("owner capability is required")
	}
	l := &Ledger{
		store:    leases,
		pricing:  quoter,
		treasury: treasury,
		payer:    payer,
		owner:    owner,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("phonelease/registration"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Register creates a lease for an unleased or expired identifier. The
// caller's payment is held inside the lease transaction and settled only
// after it commits.
func (l *Ledger) Register(ctx context.Context, cmd models.RegisterCommand) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger.register", trace.WithAttributes(attribute.String("identifier", cmd.Identifier)))
	defer func() { l.finish(span, "register", start, err) }()

	id, tier, err := parseTarget(cmd.Identifier, cmd.Tier)
	if err != nil {
		return nil, err
	}
	payment, err := checkCaller(cmd.Caller, cmd.Payment)
	if err != nil {
		return nil, err
	}
	if cmd.BindAddress != nil && l.binder == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "address binding is not available")
	}

	l.mu.Lock()
	receipt, out, err := l.register(ctx, cmd, id, tier, payment)
	l.mu.Unlock()
	l.publish(ctx, out...)
	return receipt, err
}

func (l *Ledger) register(ctx context.Context, cmd models.RegisterCommand, id domain.Identifier, tier domain.Tier, payment *big.Int) (*models.Receipt, []events.Event, error) {
	now := requestcontext.Now(ctx)
	var (
		quote    *pricing.FeeQuote
		record   models.Record
		refunded *big.Int
		held     bool
	)
	err := l.inFlight(id, func() error {
		return l.store.RunInTx(ctx, func(tx store.OwnershipAdapter) error {
			existing, err := tx.GetRecord(ctx, id)
			switch {
			case err == nil && existing.ActiveAt(now):
				if existing.Owner == cmd.Caller {
					return dErrors.New(dErrors.CodeUnavailable, "identifier is already leased by the caller; renew instead")
				}
				return dErrors.New(dErrors.CodeUnavailable, "identifier is already leased")
			case err != nil && !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
			}

			if quote, err = l.quote(ctx, tier, cmd.Duration, payment); err != nil {
				return err
			}
			if refunded, err = l.hold(ctx, cmd.Caller, payment, quote.Total); err != nil {
				return err
			}
			held = true
			record = models.Record{
				Identifier: id,
				Owner:      cmd.Caller,
				Flags:      models.Unruggable,
				Expiry:     now.Add(cmd.Duration),
			}
			return tx.SetRecord(ctx, record)
		})
	})
	if err != nil {
		if held {
			l.payer.Release(ctx, cmd.Caller, payment)
		}
		return nil, nil, translate(err, "failed to register lease")
	}
	l.payer.Settle(ctx, cmd.Caller, payment, refunded)

	forwarded, out := l.forwardFee(ctx, quote.Total)
	l.logger.InfoContext(ctx, "lease registered",
		"request_id", requestcontext.RequestID(ctx),
		"identifier", id.String(),
		"owner", cmd.Caller.Hex(),
		"expiry", record.Expiry,
		"fee", quote.Total.String(),
		"refunded", refunded.String(),
	)
	out = append(out, events.Event{
		Type:       events.TypeRegistered,
		Identifier: id,
		Owner:      cmd.Caller,
		Expiry:     record.Expiry,
		Amount:     quote.Total,
	})

	receipt := &models.Receipt{
		Lease:        models.NewLease(record, now),
		Quote:        quote,
		Refunded:     refunded,
		FeeForwarded: forwarded,
	}
	if cmd.BindAddress != nil {
		desc, bindErr := l.binder.SetAddr(ctx, cmd.Caller, id, domain.CoinTypeETH, cmd.BindAddress.Bytes())
		if bindErr != nil {
			l.logger.WarnContext(ctx, "address binding could not be started",
				"request_id", requestcontext.RequestID(ctx),
				"identifier", id.String(),
				"error", bindErr,
			)
		} else {
			receipt.Binding = desc
		}
	}
	return receipt, out, nil
}

// Renew extends an existing lease by d from max(expiry, now). Only an actor
// the ownership adapter allows to modify the record may renew.
func (l *Ledger) Renew(ctx context.Context, cmd models.RenewCommand) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger.renew", trace.WithAttributes(attribute.String("identifier", cmd.Identifier)))
	defer func() { l.finish(span, "renew", start, err) }()

	id, tier, err := parseTarget(cmd.Identifier, cmd.Tier)
	if err != nil {
		return nil, err
	}
	payment, err := checkCaller(cmd.Caller, cmd.Payment)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	receipt, out, err := l.renew(ctx, cmd, id, tier, payment)
	l.mu.Unlock()
	l.publish(ctx, out...)
	return receipt, err
}

func (l *Ledger) renew(ctx context.Context, cmd models.RenewCommand, id domain.Identifier, tier domain.Tier, payment *big.Int) (*models.Receipt, []events.Event, error) {
	now := requestcontext.Now(ctx)
	var (
		quote    *pricing.FeeQuote
		record   models.Record
		previous time.Time
		refunded *big.Int
		held     bool
	)
	err := l.inFlight(id, func() error {
		return l.store.RunInTx(ctx, func(tx store.OwnershipAdapter) error {
			existing, err := tx.GetRecord(ctx, id)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeUnavailable, "identifier is not registered")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
			}
			allowed, err := tx.CanModify(ctx, id, cmd.Caller)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lease ownership")
			}
			if !allowed {
				return dErrors.New(dErrors.CodeUnauthorized, "only the lease owner may renew")
			}

			if quote, err = l.quote(ctx, tier, cmd.Duration, payment); err != nil {
				return err
			}
			if refunded, err = l.hold(ctx, cmd.Caller, payment, quote.Total); err != nil {
				return err
			}
			held = true
			previous = existing.Expiry
			record = *existing
			record.Expiry = latest(existing.Expiry, now).Add(cmd.Duration)
			return tx.SetRecord(ctx, record)
		})
	})
	if err != nil {
		if held {
			l.payer.Release(ctx, cmd.Caller, payment)
		}
		return nil, nil, translate(err, "failed to renew lease")
	}
	l.payer.Settle(ctx, cmd.Caller, payment, refunded)

	forwarded, out := l.forwardFee(ctx, quote.Total)
	l.logger.InfoContext(ctx, "lease renewed",
		"request_id", requestcontext.RequestID(ctx),
		"identifier", id.String(),
		"owner", record.Owner.Hex(),
		"previous_expiry", previous,
		"expiry", record.Expiry,
		"fee", quote.Total.String(),
		"refunded", refunded.String(),
	)
	out = append(out, events.Event{
		Type:       events.TypeRenewed,
		Identifier: id,
		Owner:      record.Owner,
		Expiry:     record.Expiry,
		Amount:     quote.Total,
	})

	return &models.Receipt{
		Lease:        models.NewLease(record, now),
		Quote:        quote,
		Refunded:     refunded,
		FeeForwarded: forwarded,
	}, out, nil
}

// WithdrawStuckFees pushes the whole stuck balance to the treasury.
func (l *Ledger) WithdrawStuckFees(ctx context.Context, actor domain.Identity) (amount *big.Int, err error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger.withdraw_stuck_fees")
	defer func() { l.finish(span, "withdraw", start, err) }()

	if err := l.owner.Require(actor); err != nil {
		return nil, err
	}

	l.mu.Lock()
	amount, event, err := l.withdraw(ctx)
	l.mu.Unlock()
	if event != nil {
		l.publish(ctx, *event)
	}
	return amount, err
}

func (l *Ledger) withdraw(ctx context.Context) (*big.Int, *events.Event, error) {
	amount, err := l.store.StuckFees(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stuck fees")
	}
	if amount.Sign() == 0 {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "no stuck fees to withdraw")
	}
	if err := l.treasury.Collect(ctx, amount); err != nil {
		return nil, &events.Event{Type: events.TypeWithdrawalFailed, Amount: amount},
			dErrors.Wrap(err, dErrors.CodeInternal, "treasury rejected withdrawal")
	}
	if err := l.store.SubStuckFees(ctx, amount); err != nil {
		l.logger.ErrorContext(ctx, "stuck fees forwarded but balance not lowered",
			"request_id", requestcontext.RequestID(ctx),
			"amount", amount.String(),
			"error", err,
		)
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update stuck fee balance")
	}
	if l.metrics != nil {
		l.metrics.IncrementWithdrawal()
	}
	l.logger.InfoContext(ctx, "stuck fees withdrawn",
		"request_id", requestcontext.RequestID(ctx),
		"amount", amount.String(),
	)
	return amount, &events.Event{Type: events.TypeFeesCollected, Amount: amount}, nil
}

// Available reports whether identifier has no lease or an expired one.
func (l *Ledger) Available(ctx context.Context, identifier string) (bool, error) {
	id, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return false, err
	}
	rec, err := l.store.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return true, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	return !rec.ActiveAt(requestcontext.Now(ctx)), nil
}

// Lease returns the stored record and its current state.
func (l *Ledger) Lease(ctx context.Context, identifier string) (*models.Lease, error) {
	id, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	return models.NewLease(*rec, requestcontext.Now(ctx)), nil
}

func (l *Ledger) StuckFees(ctx context.Context) (*big.Int, error) {
	amount, err := l.store.StuckFees(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stuck fees")
	}
	return amount, nil
}

// AcknowledgeRecord is the ownership adapter's callback for every record
// write. Only the write the ledger currently has in flight is accepted.
func (l *Ledger) AcknowledgeRecord(_ context.Context, record models.Record) error {
	l.ackMu.Lock()
	defer l.ackMu.Unlock()
	if l.pending == "" || record.Identifier != l.pending {
		return dErrors.New(dErrors.CodeInvariantViolation, "record write was not initiated by the ledger")
	}
	return nil
}

func (l *Ledger) inFlight(id domain.Identifier, fn func() error) error {
	l.ackMu.Lock()
	l.pending = id
	l.ackMu.Unlock()
	defer func() {
		l.ackMu.Lock()
		l.pending = ""
		l.ackMu.Unlock()
	}()
	return fn()
}

func (l *Ledger) quote(ctx context.Context, tier domain.Tier, d time.Duration, payment *big.Int) (*pricing.FeeQuote, error) {
	q, err := l.pricing.Quote(ctx, tier, d)
	if err != nil {
		return nil, err
	}
	if payment.Cmp(q.Total) < 0 {
		return nil, dErrors.Newf(dErrors.CodePaymentRequired, "payment %s is below the fee %s", payment, q.Total)
	}
	return q, nil
}

// hold reserves payment from the caller and returns the excess that will be
// credited back on settle. A hold that fails aborts the enclosing
// transaction.
func (l *Ledger) hold(ctx context.Context, from domain.Identity, payment, fee *big.Int) (*big.Int, error) {
	excess := new(big.Int).Sub(payment, fee)
	err := l.payer.Hold(ctx, from, payment, excess)
	switch {
	case err == nil:
		return excess, nil
	case errors.Is(err, sentinel.ErrInsufficientFunds):
		return nil, dErrors.Newf(dErrors.CodePaymentRequired, "balance does not cover payment %s", payment)
	case excess.Sign() > 0:
		return nil, dErrors.Wrap(err, dErrors.CodeRefundFailed, "failed to refund excess payment")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to take payment")
	}
}

// forwardFee pushes fee to the treasury after commit. A rejected transfer is
// kept as stuck fees for a later withdrawal and does not fail the operation.
// The returned events are published by the caller once mu is released.
func (l *Ledger) forwardFee(ctx context.Context, fee *big.Int) (bool, []events.Event) {
	if fee.Sign() == 0 {
		return true, nil
	}
	if err := l.treasury.Collect(ctx, fee); err != nil {
		l.logger.WarnContext(ctx, "fee forwarding failed; kept for withdrawal",
			"request_id", requestcontext.RequestID(ctx),
			"amount", fee.String(),
			"error", err,
		)
		if addErr := l.store.AddStuckFees(ctx, fee); addErr != nil {
			l.logger.ErrorContext(ctx, "failed to record stuck fees",
				"request_id", requestcontext.RequestID(ctx),
				"amount", fee.String(),
				"error", addErr,
			)
		}
		if l.metrics != nil {
			l.metrics.IncrementForwardFailure()
		}
		return false, []events.Event{{Type: events.TypeWithdrawalFailed, Amount: fee}}
	}
	return true, []events.Event{{Type: events.TypeFeesCollected, Amount: fee}}
}

func (l *Ledger) publish(ctx context.Context, out ...events.Event) {
	if l.publisher == nil {
		return
	}
	for _, event := range out {
		if err := l.publisher.Publish(ctx, event); err != nil {
			l.logger.WarnContext(ctx, "failed to publish ledger event",
				"event_type", event.Type,
				"error", err,
			)
		}
	}
}

func (l *Ledger) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if l.metrics != nil {
		l.metrics.Observe(op, outcome, start)
	}
}

func parseTarget(identifier, tier string) (domain.Identifier, domain.Tier, error) {
	id, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return "", "", err
	}
	t, err := domain.ParseTier(tier)
	if err != nil {
		return "", "", err
	}
	if !id.InTier(t) {
		return "", "", dErrors.Newf(dErrors.CodeValidation, "tier %s does not match identifier %s", t, id)
	}
	return id, t, nil
}

func checkCaller(caller domain.Identity, payment *big.Int) (*big.Int, error) {
	if caller == domain.ZeroIdentity {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if payment == nil {
		return new(big.Int), nil
	}
	if payment.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payment must not be negative")
	}
	return payment, nil
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// translate maps store failures to domain errors; errors already carrying a
// domain code pass through.
func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeUnavailable, "identifier was claimed by a concurrent request")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
