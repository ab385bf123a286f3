package main

import (
	"context"
	"log"
	"math/big"
	"time"

	"TradeArena/internal/core"
)

// Development collaborators. Production deployments bind the custody,
// router, and oracle interfaces to the real venue integrations; these
// stand-ins let the service run end to end without them. Custody accepts
// every movement, the router fills 1:1, and the oracle quotes a fixed
// price for every symbol.

type devCustody struct{}

func (devCustody) Pull(ctx context.Context, asset, from string, amount *big.Int) error {
	log.Printf("INFO: custody pull asset=%s from=%s amount=%s", asset, from, amount)
	return nil
}

func (devCustody) Push(ctx context.Context, asset, to string, amount *big.Int) error {
	log.Printf("INFO: custody push asset=%s to=%s amount=%s", asset, to, amount)
	return nil
}

func (devCustody) Approve(ctx context.Context, asset, spender string, amount *big.Int) error {
	return nil
}

type devRouter struct{}

func (devRouter) SwapExactIn(ctx context.Context, amountIn, minAmountOut *big.Int, path []string, recipient string, deadline time.Time) ([]*big.Int, error) {
	amounts := make([]*big.Int, len(path))
	for i := range amounts {
		amounts[i] = new(big.Int).Set(amountIn)
	}
	return amounts, nil
}

type devOracle struct {
	price *big.Int
}

func (o devOracle) LatestPrices(ctx context.Context, symbols []string) ([]*core.OraclePrice, error) {
	now := time.Now().UnixMicro()
	prices := make([]*core.OraclePrice, len(symbols))
	for i := range prices {
		prices[i] = &core.OraclePrice{
			Timestamp: now,
			Price:     new(big.Int).Set(o.price),
		}
	}
	return prices, nil
}
