package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"phonelease/internal/admin"
	"phonelease/internal/events"
	"phonelease/internal/pricing/metrics"
	"phonelease/internal/pricing/models"
	"phonelease/internal/pricing/service/mocks"
	"phonelease/internal/pricing/store"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

const day = 24 * time.Hour

var (
	owner    = domain.Identity{0x01}
	stranger = domain.Identity{0x02}

	basePrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil) // 0.01 native units
	bounds    = models.Bounds{Min: 28 * day, Max: 10 * models.Year}
)

// =============================================================================
// Engine Test Suite
// =============================================================================
// Exercises fee arithmetic against the in-memory store and the owner gate on
// every mutator.

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	sink   *events.InMemory
	store  *store.InMemoryStore
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.sink = events.NewInMemory()
	s.store = store.NewInMemory(basePrice)
	capability, err := admin.New(owner)
	s.Require().NoError(err)
	s.engine, err = New(s.store, capability, bounds,
		WithPublisher(events.NewPublisher([]events.Sink{s.sink})),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
}

func (s *EngineSuite) TestNew() {
	capability, _ := admin.New(owner)

	s.Run("nil store returns error", func() {
		_, err := New(nil, capability, bounds)
		s.ErrorContains(err, "pricing store is required")
	})
	s.Run("nil owner returns error", func() {
		_, err := New(s.store, nil, bounds)
		s.ErrorContains(err, "owner capability is required")
	})
	s.Run("inverted bounds return error", func() {
		_, err := New(s.store, capability, models.Bounds{Min: 2 * day, Max: day})
		s.Error(err)
	})
}

// =============================================================================
// Fee computation
// =============================================================================

func (s *EngineSuite) TestDefaultTierOneYear() {
	fee, err := s.engine.RegistrationFee(s.ctx, "1", 365*day)
	s.Require().NoError(err)
	s.Equal(0, fee.Cmp(basePrice), "fee = 1e16")
}

func (s *EngineSuite) TestMultipliedTierTwoYears() {
	s.Require().NoError(s.engine.SetCountryMultiplier(s.ctx, owner, "44", 15000))

	fee, err := s.engine.RegistrationFee(s.ctx, "44", 730*day)
	s.Require().NoError(err)
	s.Equal("30000000000000000", fee.String())

	q, err := s.engine.Quote(s.ctx, "44", 730*day)
	s.Require().NoError(err)
	s.Equal(uint64(2), q.Years)
	s.Equal("15000000000000000", q.PricePerYear.String())
}

func (s *EngineSuite) TestYearlyPriceTruncates() {
	s.Require().NoError(s.engine.SetBasePrice(s.ctx, owner, big.NewInt(3)))
	s.Require().NoError(s.engine.SetCountryMultiplier(s.ctx, owner, "7", 3333))

	price, err := s.engine.YearlyPrice(s.ctx, "7")
	s.Require().NoError(err)
	s.Equal(int64(0), price.Int64(), "3 * 3333 / 10000 truncates to 0")
}

func (s *EngineSuite) TestFeeIsWholeYearsTimesYearlyPrice() {
	s.Require().NoError(s.engine.SetCountryMultiplier(s.ctx, owner, "44", 12345))
	yearly, err := s.engine.YearlyPrice(s.ctx, "44")
	s.Require().NoError(err)

	durations := []time.Duration{
		bounds.Min, bounds.Min + time.Second, models.Year - time.Second, models.Year,
		models.Year + time.Nanosecond, 3*models.Year + day, bounds.Max - time.Second, bounds.Max,
	}
	for d := bounds.Min; d <= bounds.Max; d += 97 * day {
		durations = append(durations, d)
	}

	for _, d := range durations {
		years := int64((d + models.Year - 1) / models.Year)
		want := new(big.Int).Mul(yearly, big.NewInt(years))

		reg, err := s.engine.RegistrationFee(s.ctx, "44", d)
		s.Require().NoError(err, d)
		s.Equal(0, want.Cmp(reg), "registration fee for %s", d)

		ren, err := s.engine.RenewalFee(s.ctx, "44", d)
		s.Require().NoError(err, d)
		s.Equal(0, reg.Cmp(ren), "renewal follows registration for %s", d)
	}
}

func (s *EngineSuite) TestOutOfBoundsDurationsAreRejected() {
	for _, d := range []time.Duration{0, -day, bounds.Min - time.Nanosecond, 27 * day, bounds.Max + time.Nanosecond, 20 * models.Year} {
		_, err := s.engine.RegistrationFee(s.ctx, "1", d)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "duration %s", d)
		_, err = s.engine.RenewalFee(s.ctx, "1", d)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "duration %s", d)
	}
}

// =============================================================================
// Administrative mutators
// =============================================================================

func (s *EngineSuite) TestMutatorsRequireOwner() {
	s.True(dErrors.HasCode(s.engine.SetBasePrice(s.ctx, stranger, big.NewInt(5)), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.engine.SetCountryMultiplier(s.ctx, stranger, "44", 2), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.engine.RemoveCountryMultiplier(s.ctx, stranger, "44"), dErrors.CodeUnauthorized))

	base, _ := s.engine.BasePrice(s.ctx)
	s.Equal(0, base.Cmp(basePrice))
	s.Empty(s.sink.List())
}

func (s *EngineSuite) TestSetCountryMultiplierValidation() {
	s.True(dErrors.HasCode(s.engine.SetCountryMultiplier(s.ctx, owner, "44", 0), dErrors.CodeValidation))
	s.True(dErrors.HasCode(s.engine.SetCountryMultiplier(s.ctx, owner, "44", 10000), dErrors.CodeValidation))

	list, err := s.engine.Multipliers(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *EngineSuite) TestSetBasePriceValidation() {
	s.True(dErrors.HasCode(s.engine.SetBasePrice(s.ctx, owner, big.NewInt(0)), dErrors.CodeValidation))
	s.True(dErrors.HasCode(s.engine.SetBasePrice(s.ctx, owner, nil), dErrors.CodeValidation))

	s.Require().NoError(s.engine.SetBasePrice(s.ctx, owner, big.NewInt(42)))
	got := s.sink.ByType(events.TypeBasePriceUpdated)
	s.Require().Len(got, 1)
	s.Equal(int64(42), got[0].Amount.Int64())
}

func (s *EngineSuite) TestRemoveCountryMultiplier() {
	s.Run("absent tier is a validation error", func() {
		err := s.engine.RemoveCountryMultiplier(s.ctx, owner, "99")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("removal restores the default price", func() {
		s.Require().NoError(s.engine.SetCountryMultiplier(s.ctx, owner, "44", 15000))
		s.Require().NoError(s.engine.RemoveCountryMultiplier(s.ctx, owner, "44"))

		price, err := s.engine.YearlyPrice(s.ctx, "44")
		s.Require().NoError(err)
		s.Equal(0, price.Cmp(basePrice))

		removed := s.sink.ByType(events.TypeCountryMultiplierRemoved)
		s.Require().Len(removed, 1)
		s.Equal(uint32(15000), removed[0].Multiplier)
	})
}

// =============================================================================
// Collaborator failures
// =============================================================================

type EngineMockSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockEventPublisher
	engine    *Engine
}

func TestEngineMockSuite(t *testing.T) {
	suite.Run(t, new(EngineMockSuite))
}

func (s *EngineMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	capability, err := admin.New(owner)
	s.Require().NoError(err)
	s.engine, err = New(s.store, capability, bounds, WithPublisher(s.publisher))
	s.Require().NoError(err)
}

func (s *EngineMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineMockSuite) TestStoreFailureIsInternal() {
	s.store.EXPECT().BasePrice(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := s.engine.Quote(context.Background(), "1", models.Year)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *EngineMockSuite) TestPublishFailureDoesNotFailMutation() {
	s.store.EXPECT().SetMultiplier(gomock.Any(), models.PriceTier{Tier: "44", MultiplierBPS: 2}).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	s.NoError(s.engine.SetCountryMultiplier(context.Background(), owner, "44", 2))
}

func (s *EngineMockSuite) TestOutOfBoundsNeverTouchesStore() {
	_, err := s.engine.Quote(context.Background(), "1", day)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
