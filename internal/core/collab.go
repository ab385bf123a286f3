package core

import (
	"context"
	"math/big"
	"time"
)

// External collaborators. These are thin wrappers over token transfer,
// swap routing and price feeds. The core treats them as opaque and never
// retries: a failed call propagates to the caller, who must resubmit.

// Custody moves tokens between the contract's reserve and participants.
// Failures surface as TransferFailed.
type Custody interface {
	// Pull transfers amount of asset from the given address into custody.
	Pull(ctx context.Context, asset, from string, amount *big.Int) error

	// Push transfers amount of asset out of custody to the given address.
	Push(ctx context.Context, asset, to string, amount *big.Int) error

	// Approve authorizes spender to move amount of asset held in custody.
	Approve(ctx context.Context, asset, spender string, amount *big.Int) error
}

// Router executes swaps along a validated path. The returned slice holds
// the realized amount per hop; the last element is the output amount.
// Router errors propagate to the caller verbatim.
type Router interface {
	SwapExactIn(ctx context.Context, amountIn, minAmountOut *big.Int, path []string, recipient string, deadline time.Time) ([]*big.Int, error)
}

// OraclePrice is one quote from the price feed.
type OraclePrice struct {
	Timestamp int64
	Price     *big.Int
}

// Oracle returns the latest price per symbol, in request order. A nil
// entry means the price is unavailable and aborts the snapshot.
type Oracle interface {
	LatestPrices(ctx context.Context, symbols []string) ([]*OraclePrice, error)
}
