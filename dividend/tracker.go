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

// Package dividend derives dividend income figures from ledger holdings and
// provider dividend records. Realized income credits each dividend to the
// shares held on its ex-date; projected income annualizes the trailing
// per-share dividends against the current position.
package dividend

import (
	"context"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// MonthsPerYear is the scaling base for annualizing a trailing dividend window
const MonthsPerYear = 12

// HeldAsOfFunc reports the number of shares of ticker held at the close of the
// given date
type HeldAsOfFunc func(ticker string, date time.Time) float64

// Tracker computes dividend income reports. TrailingMonths is the length of
// the dividend history window used when projecting forward income.
type Tracker struct {
	TrailingMonths int
}

// NewTracker creates a tracker from configuration, falling back to a one year
// trailing window
func NewTracker() *Tracker {
	tracker := &Tracker{
		TrailingMonths: viper.GetInt("dividend.trailing_months"),
	}

	if tracker.TrailingMonths <= 0 {
		tracker.TrailingMonths = MonthsPerYear
	}

	return tracker
}

// TrailingWindow returns the period dividend records should be drawn from when
// projecting forward income as of the given date
func (tracker *Tracker) TrailingWindow(asOf time.Time) *data.Interval {
	return &data.Interval{
		Begin: asOf.AddDate(0, -tracker.TrailingMonths, 0),
		End:   asOf,
	}
}

// RealizedIncome computes the income produced by the dividend events whose
// ex-date falls within period. Each event pays on the shares held at the close
// of its ex-date, so a sale between the ex-date and the pay date does not
// remove income already recognized.
func (tracker *Tracker) RealizedIncome(ctx context.Context, events []*data.DividendEvent, period *data.Interval, heldAsOf HeldAsOfFunc) (*IncomeReport, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "dividend.RealizedIncome")
	defer span.End()

	if err := period.Valid(); err != nil {
		return nil, err
	}

	report := &IncomeReport{
		Period:         period,
		Records:        make([]*IncomeRecord, 0, len(events)),
		IncomeByTicker: make(map[string]float64),
	}

	for _, event := range events {
		if !period.ContainsDate(event.ExDate) {
			continue
		}

		shares := heldAsOf(event.Ticker, event.ExDate)
		if shares <= 0 {
			continue
		}

		income := shares * event.Amount
		report.Records = append(report.Records, &IncomeRecord{
			Ticker:         event.Ticker,
			ExDate:         event.ExDate,
			AmountPerShare: event.Amount,
			Shares:         shares,
			Income:         income,
		})
		report.IncomeByTicker[event.Ticker] += income
		report.TotalIncome += income
	}

	sort.SliceStable(report.Records, func(i, j int) bool {
		if report.Records[i].ExDate.Equal(report.Records[j].ExDate) {
			return report.Records[i].Ticker < report.Records[j].Ticker
		}
		return report.Records[i].ExDate.Before(report.Records[j].ExDate)
	})

	log.Info().Object("IncomeReport", report).Msg("computed realized dividend income")
	return report, nil
}

// ProjectedAnnualIncome estimates forward annual income for the given holdings
// (ticker to current share count). The trailing events are summed per share,
// scaled to a full year and multiplied by the current position. A symbol with
// no trailing dividend history contributes zero income.
func (tracker *Tracker) ProjectedAnnualIncome(ctx context.Context, holdings map[string]float64, trailing []*data.DividendEvent) *ProjectionReport {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "dividend.ProjectedAnnualIncome")
	defer span.End()

	perShare := make(map[string]float64, len(holdings))
	for _, event := range trailing {
		if _, ok := holdings[event.Ticker]; !ok {
			continue
		}
		perShare[event.Ticker] += event.Amount
	}

	tickers := make([]string, 0, len(holdings))
	for ticker := range holdings {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	scale := float64(MonthsPerYear) / float64(tracker.TrailingMonths)
	report := &ProjectionReport{
		TrailingMonths: tracker.TrailingMonths,
		Symbols:        make([]*SymbolProjection, 0, len(tickers)),
	}

	for _, ticker := range tickers {
		trailingPerShare := perShare[ticker]
		annualPerShare := trailingPerShare * scale
		income := annualPerShare * holdings[ticker]

		report.Symbols = append(report.Symbols, &SymbolProjection{
			Ticker:           ticker,
			Shares:           holdings[ticker],
			TrailingPerShare: trailingPerShare,
			AnnualPerShare:   annualPerShare,
			ProjectedIncome:  income,
		})
		report.TotalIncome += income
	}

	log.Info().Object("ProjectionReport", report).Msg("computed projected dividend income")
	return report
}

// YieldReport relates projected income to market value. Mean and median are
// taken over the symbols that actually pay a dividend; non-payers would
// otherwise drag both toward zero.
func (tracker *Tracker) YieldReport(projection *ProjectionReport, marketValues map[string]float64) *YieldReport {
	report := &YieldReport{
		Symbols: make([]*SymbolYield, 0, len(projection.Symbols)),
	}

	var totalValue float64
	var totalIncome float64
	payerYields := make([]float64, 0, len(projection.Symbols))

	for _, proj := range projection.Symbols {
		value := marketValues[proj.Ticker]
		totalValue += value
		totalIncome += proj.ProjectedIncome

		symbolYield := &SymbolYield{
			Ticker:          proj.Ticker,
			MarketValue:     value,
			ProjectedIncome: proj.ProjectedIncome,
		}
		if value > 0 {
			symbolYield.Yield = proj.ProjectedIncome / value
		}

		report.Symbols = append(report.Symbols, symbolYield)
		if symbolYield.Yield > 0 {
			payerYields = append(payerYields, symbolYield.Yield)
		}
	}

	if totalValue > 0 {
		report.PortfolioYield = totalIncome / totalValue
	}

	if len(payerYields) > 0 {
		mean, err := stats.Mean(payerYields)
		if err != nil {
			log.Warn().Stack().Err(err).Msg("could not compute mean yield")
		}
		median, err := stats.Median(payerYields)
		if err != nil {
			log.Warn().Stack().Err(err).Msg("could not compute median yield")
		}
		report.MeanYield = mean
		report.MedianYield = median
	}

	return report
}
