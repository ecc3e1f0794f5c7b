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

// Package portfolio ties the transaction ledger, the market data manager and
// the analytics engines together behind a single model. Every mutation of
// portfolio state enters through this package; analytics queries compute their
// results on demand and never modify the ledger.
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/portfolio-tracker/analytics"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/penny-vault/portfolio-tracker/dividend"
	"github.com/penny-vault/portfolio-tracker/ledger"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Model combines the transaction ledger with the market data manager and the
// dividend income tracker
type Model struct {
	Ledger *ledger.Ledger

	dataProxy *data.Manager
	tracker   *dividend.Tracker
}

var (
	modelOnce     sync.Once
	modelInstance *Model
)

// GetModelInstance returns the package singleton backed by the database
// transaction store, creating it on first use
func GetModelInstance() *Model {
	modelOnce.Do(func() {
		modelInstance = NewModel(ledger.New(database.NewTransactionStore()), data.GetManagerInstance(), dividend.NewTracker())
	})
	return modelInstance
}

// NewModel creates a model with the given collaborators
func NewModel(l *ledger.Ledger, manager *data.Manager, tracker *dividend.Tracker) *Model {
	return &Model{
		Ledger:    l,
		dataProxy: manager,
		tracker:   tracker,
	}
}

// Load replays the persisted transaction log into the ledger
func (model *Model) Load(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.Load")
	defer span.End()

	return model.Ledger.Load(ctx)
}

// RecordTransaction validates and records a new trade
func (model *Model) RecordTransaction(ctx context.Context, date time.Time, ticker string, kind string, shares float64, pricePerShare float64, memo string) (*ledger.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.RecordTransaction")
	defer span.End()

	trx, err := ledger.NewTransaction(date, ticker, kind, shares, pricePerShare, memo)
	if err != nil {
		return nil, err
	}

	if err := model.Ledger.AddTransaction(ctx, trx); err != nil {
		return nil, err
	}

	log.Info().Object("Transaction", trx).Msg("recorded transaction")
	return trx, nil
}

// RemoveTransaction deletes the identified transaction from the ledger and
// returns it. The id may be a dashed uuid or a bare 32 character hex string.
func (model *Model) RemoveTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.RemoveTransaction")
	defer span.End()

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransactionID, id)
	}

	raw, err := parsed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransactionID, id)
	}

	trx, err := model.Ledger.RemoveTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}

	log.Info().Object("Transaction", trx).Msg("removed transaction")
	return trx, nil
}

// WarmCaches pre-fetches the price and dividend history the analytics engines
// will request for the current holdings
func (model *Model) WarmCaches(ctx context.Context) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.WarmCaches")
	defer span.End()

	positions := model.Ledger.CurrentHoldings()
	if len(positions) == 0 {
		return
	}

	tickers := make([]string, 0, len(positions))
	for _, pos := range positions {
		tickers = append(tickers, pos.Ticker)
	}

	engine := analytics.NewRiskEngine()
	period := data.LookbackPeriod(engine.LookbackDays)

	if _, errs := model.dataProxy.GetHistories(ctx, tickers, period.Begin, period.End); len(errs) > 0 {
		log.Warn().Int("NumErrors", len(errs)).Msg("could not warm all price histories")
	}

	window := model.tracker.TrailingWindow(period.End)
	if _, errs := model.dataProxy.GetDividends(ctx, tickers, window.Begin, window.End); len(errs) > 0 {
		log.Warn().Int("NumErrors", len(errs)).Msg("could not warm all dividend histories")
	}

	log.Info().Strs("Tickers", tickers).Msg("warmed market data caches")
}
