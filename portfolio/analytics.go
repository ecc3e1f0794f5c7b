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

package portfolio

import (
	"context"

	"github.com/penny-vault/portfolio-tracker/analytics"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/dividend"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// DividendReport combines realized income over a period with the forward
// projection for the current holdings
type DividendReport struct {
	Realized  *dividend.IncomeReport     `json:"realized"`
	Projected *dividend.ProjectionReport `json:"projected"`
	Yield     *dividend.YieldReport      `json:"yield"`
}

// RiskSnapshot evaluates portfolio risk for the current holdings. A positive
// lookbackDays overrides the configured evaluation window; a negative
// riskFreeRate asks the treasury rate service for the current rate;
// profileName selects a named settings bundle and may be empty.
func (model *Model) RiskSnapshot(ctx context.Context, lookbackDays int, riskFreeRate float64, profileName string) (*analytics.RiskSnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.RiskSnapshot")
	defer span.End()

	engine := analytics.NewRiskEngine()
	if profileName != "" {
		profile, err := analytics.ProfileNamed(profileName)
		if err != nil {
			return nil, err
		}
		engine.ApplyProfile(profile)
	}
	if lookbackDays > 0 {
		engine.LookbackDays = lookbackDays
	}

	if riskFreeRate >= 0 {
		engine.RiskFreeRate = riskFreeRate
	} else {
		rate, err := model.dataProxy.RiskFreeRate(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("risk free rate unavailable; evaluating with zero")
			rate = 0
		}
		engine.RiskFreeRate = rate
	}

	report := model.CurrentHoldings(ctx)
	marketValues := report.MarketValues()

	tickers := make([]string, 0, len(marketValues))
	for ticker := range marketValues {
		tickers = append(tickers, ticker)
	}

	period := data.LookbackPeriod(engine.LookbackDays)
	frames, errs := model.dataProxy.GetHistories(ctx, tickers, period.Begin, period.End)
	for ticker, err := range errs {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("price history unavailable for risk evaluation")
	}

	return engine.ComputeRiskSnapshot(ctx, marketValues, frames)
}

// DividendReportForPeriod reports realized dividend income over the period
// along with projected annual income and yield for the current holdings.
// Realized income covers every ticker ever traded; a position closed during
// the period may still have collected dividends while it was open.
func (model *Model) DividendReportForPeriod(ctx context.Context, period *data.Interval) (*DividendReport, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.DividendReportForPeriod")
	defer span.End()

	if err := period.Valid(); err != nil {
		return nil, err
	}

	tickers := model.Ledger.Tickers()
	events, errs := model.dataProxy.GetDividends(ctx, tickers, period.Begin, period.End)
	for ticker, err := range errs {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("dividend history unavailable")
	}

	realized, err := model.tracker.RealizedIncome(ctx, events, period, model.Ledger.HeldAsOf)
	if err != nil {
		return nil, err
	}

	positions := model.Ledger.CurrentHoldings()
	shares := make(map[string]float64, len(positions))
	current := make([]string, 0, len(positions))
	for _, pos := range positions {
		shares[pos.Ticker] = pos.Shares
		current = append(current, pos.Ticker)
	}

	window := model.tracker.TrailingWindow(data.Today())
	trailing, errs := model.dataProxy.GetDividends(ctx, current, window.Begin, window.End)
	for ticker, err := range errs {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("trailing dividend history unavailable")
	}

	projected := model.tracker.ProjectedAnnualIncome(ctx, shares, trailing)
	yield := model.tracker.YieldReport(projected, model.CurrentHoldings(ctx).MarketValues())

	return &DividendReport{
		Realized:  realized,
		Projected: projected,
		Yield:     yield,
	}, nil
}
