// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package broadcast fans a raw transaction out to several providers at
// once and returns as soon as the first one succeeds. External
// collaborator, not part of the core Taproot construction logic (spec
// §5, §6).
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/aaron-recompile/taproot/bitcoin/provider"
)

// ErrAllProvidersFailed is returned when every provider's broadcast
// attempt errored.
var ErrAllProvidersFailed = errors.New("broadcast: all providers failed")

type result struct {
	txid string
	err  error
}

// Parallel submits txHex to every provider concurrently and returns the
// first successful txid. The remaining in-flight requests are abandoned
// (their context is cancelled) once a winner is found.
func Parallel(ctx context.Context, txHex string, providers []provider.Provider) (string, error) {
	if len(providers) == 0 {
		return "", ErrAllProvidersFailed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(providers))

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			txid, err := p.Broadcast(ctx, txHex)
			results <- result{txid: txid, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if r.err == nil {
			return r.txid, nil
		}
		if firstErr == nil {
			firstErr = r.err
		}
	}

	return "", errors.Join(ErrAllProvidersFailed, firstErr)
}
