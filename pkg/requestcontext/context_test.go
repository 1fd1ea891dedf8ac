package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"phonelease/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, domain.ZeroIdentity, Identity(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)

	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx = WithIdentity(ctx, caller)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, caller, Identity(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
