// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger maintains an append-only transaction log and the positions
// derived from it. Replaying the log in sequence order always reproduces the
// same positions, cost basis and lots; nothing is stored that cannot be
// re-derived from the log.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Ledger holds the in-memory view of the transaction log. All reads see either
// the state before a mutation or after it; partial application is never
// visible.
type Ledger struct {
	store Store

	lock         sync.RWMutex
	transactions []*Transaction
	positions    map[string]*Position
	sourceIDs    map[string]bool
	version      uint64
	nextSequence uint64
}

// New creates an empty ledger backed by the given store; call Load to replay
// any previously persisted transactions
func New(store Store) *Ledger {
	return &Ledger{
		store:        store,
		transactions: make([]*Transaction, 0, 16),
		positions:    make(map[string]*Position),
		sourceIDs:    make(map[string]bool),
		nextSequence: 1,
	}
}

// Load replays the persisted transaction log into memory, replacing any state
// already held
func (l *Ledger) Load(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "ledger.Load")
	defer span.End()

	l.lock.Lock()
	defer l.lock.Unlock()

	transactions, err := l.store.LoadAll(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not load transactions from store")
		return err
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].SequenceNum < transactions[j].SequenceNum
	})

	l.transactions = make([]*Transaction, 0, len(transactions))
	l.positions = make(map[string]*Position)
	l.sourceIDs = make(map[string]bool, len(transactions))
	l.nextSequence = 1

	for _, trx := range transactions {
		if err := l.apply(trx); err != nil {
			log.Error().Stack().Err(err).Object("Transaction", trx).Msg("transaction log does not replay")
			return fmt.Errorf("%w: %s", ErrCorruptLog, err.Error())
		}
	}

	l.version++
	log.Info().Int("NumTransactions", len(l.transactions)).Int("NumPositions", len(l.positions)).Msg("loaded transaction ledger")
	return nil
}

// AddTransaction validates the transaction, persists it, and folds it into the
// current positions. A sell that exceeds the held position is rejected before
// anything is persisted; if persistence fails the in-memory state is
// unchanged.
func (l *Ledger) AddTransaction(ctx context.Context, trx *Transaction) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "ledger.AddTransaction")
	defer span.End()

	if err := trx.Validate(); err != nil {
		return err
	}

	if trx.SourceID == "" {
		if err := computeTransactionSourceID(trx); err != nil {
			return err
		}
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if l.sourceIDs[trx.SourceID] {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, trx.SourceID)
	}

	if trx.Kind == SellTransaction {
		var available float64
		if pos, ok := l.positions[trx.Ticker]; ok {
			available = pos.Shares
		}
		if trx.Shares > available+sharesEpsilon {
			return &InsufficientPositionError{
				Ticker:    trx.Ticker,
				Requested: trx.Shares,
				Available: available,
			}
		}
	}

	trx.SequenceNum = l.nextSequence
	if err := l.store.Append(ctx, trx); err != nil {
		trx.SequenceNum = 0
		log.Error().Stack().Err(err).Object("Transaction", trx).Msg("could not persist transaction")
		return err
	}

	if err := l.apply(trx); err != nil {
		// the sell was validated above with the lock held
		log.Panic().Stack().Err(err).Object("Transaction", trx).Msg("positions and transactions are out-of-sync")
	}

	l.version++
	log.Info().Object("Transaction", trx).Msg("recorded transaction")
	return nil
}

// RemoveTransaction deletes a mistaken entry from the log. Only the most
// recent transaction for its ticker may be removed; removing an earlier entry
// could strand later sells without the lots they consumed.
func (l *Ledger) RemoveTransaction(ctx context.Context, id []byte) (*Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "ledger.RemoveTransaction")
	defer span.End()

	l.lock.Lock()
	defer l.lock.Unlock()

	idx := -1
	for ii, trx := range l.transactions {
		if bytes.Equal(trx.ID, id) {
			idx = ii
			break
		}
	}
	if idx == -1 {
		return nil, ErrTransactionNotFound
	}

	trx := l.transactions[idx]
	for _, other := range l.transactions {
		if other.Ticker == trx.Ticker && other.SequenceNum > trx.SequenceNum {
			return nil, &NonReversibleEditError{
				ID:     trx.ID,
				Ticker: trx.Ticker,
				Reason: "later transactions exist for the ticker",
			}
		}
	}

	if err := l.store.Remove(ctx, id); err != nil {
		log.Error().Stack().Err(err).Object("Transaction", trx).Msg("could not remove transaction from store")
		return nil, err
	}

	l.transactions = append(l.transactions[:idx], l.transactions[idx+1:]...)
	delete(l.sourceIDs, trx.SourceID)
	l.rebuildPosition(trx.Ticker)

	l.version++
	log.Info().Object("Transaction", trx).Msg("removed transaction")
	return trx, nil
}

// CurrentHoldings returns a copy of every open position, ordered by ticker.
// Tickers whose shares have all been sold are not included.
func (l *Ledger) CurrentHoldings() []*Position {
	l.lock.RLock()
	defer l.lock.RUnlock()

	holdings := make([]*Position, 0, len(l.positions))
	for _, pos := range l.positions {
		holdings = append(holdings, pos.Copy())
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Ticker < holdings[j].Ticker
	})
	return holdings
}

// HeldAsOf returns the number of shares of ticker held at the end of the given
// date. Dividend accrual uses this to credit only shares owned on the ex-date.
func (l *Ledger) HeldAsOf(ticker string, date time.Time) float64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	ticker = strings.ToUpper(ticker)
	var shares float64
	for _, trx := range l.transactions {
		if trx.Ticker != ticker || trx.Date.After(date) {
			continue
		}
		switch trx.Kind {
		case BuyTransaction:
			shares += trx.Shares
		case SellTransaction:
			shares -= trx.Shares
		}
	}

	// a back-dated sell can leave a point-in-time quantity below zero even
	// though the log as a whole is consistent
	if shares < 0 {
		shares = 0
	}
	return shares
}

// Transactions returns the transaction log in sequence order
func (l *Ledger) Transactions() []*Transaction {
	l.lock.RLock()
	defer l.lock.RUnlock()

	transactions := make([]*Transaction, len(l.transactions))
	copy(transactions, l.transactions)
	return transactions
}

// Tickers returns every ticker that appears in the log, including tickers
// whose positions have since been closed
func (l *Ledger) Tickers() []string {
	l.lock.RLock()
	defer l.lock.RUnlock()

	seen := make(map[string]bool)
	tickers := make([]string, 0, len(l.positions))
	for _, trx := range l.transactions {
		if seen[trx.Ticker] {
			continue
		}
		seen[trx.Ticker] = true
		tickers = append(tickers, trx.Ticker)
	}

	sort.Strings(tickers)
	return tickers
}

// Version increases on every successful mutation; cached reports keyed on the
// version are invalidated by any change to the log
func (l *Ledger) Version() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.version
}

// Private Implementation

// apply folds a single transaction into the positions; callers hold the write
// lock
func (l *Ledger) apply(trx *Transaction) error {
	pos, ok := l.positions[trx.Ticker]
	if !ok {
		pos = &Position{Ticker: trx.Ticker}
	}

	switch trx.Kind {
	case BuyTransaction:
		pos.applyBuy(trx)
	case SellTransaction:
		if err := pos.applySell(trx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, trx.Kind)
	}

	if len(pos.Lots) > 0 {
		l.positions[trx.Ticker] = pos
	} else {
		delete(l.positions, trx.Ticker)
	}

	l.transactions = append(l.transactions, trx)
	l.sourceIDs[trx.SourceID] = true
	if trx.SequenceNum >= l.nextSequence {
		l.nextSequence = trx.SequenceNum + 1
	}
	return nil
}

// rebuildPosition re-derives a single ticker's position by replaying its
// remaining transactions; callers hold the write lock
func (l *Ledger) rebuildPosition(ticker string) {
	delete(l.positions, ticker)

	pos := &Position{Ticker: ticker}
	for _, trx := range l.transactions {
		if trx.Ticker != ticker {
			continue
		}
		switch trx.Kind {
		case BuyTransaction:
			pos.applyBuy(trx)
		case SellTransaction:
			if err := pos.applySell(trx); err != nil {
				log.Panic().Stack().Err(err).Object("Transaction", trx).Msg("positions and transactions are out-of-sync")
			}
		}
	}

	if len(pos.Lots) > 0 {
		l.positions[ticker] = pos
	}
}
