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

// Package analytics computes portfolio risk statistics from daily price
// history: annualized volatility and expected return, sharpe ratio, pairwise
// correlations and per-symbol measures. Symbols without enough overlapping
// history are excluded and reported rather than failing the whole evaluation.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/dataframe"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily statistics
const TradingDaysPerYear = 250

// WeightPolicy controls how the market value of excluded symbols is handled
// when computing aggregate statistics
type WeightPolicy string

const (
	// RedistributeWeights spreads the weight of excluded symbols across the
	// included ones in proportion to their market value; included weights sum
	// to 1
	RedistributeWeights WeightPolicy = "redistribute"

	// ReportUncoveredOnly keeps each included symbol at its true share of
	// total portfolio value; the excluded share contributes no risk or return
	// and is surfaced as the uncovered weight fraction
	ReportUncoveredOnly WeightPolicy = "report"
)

// RiskEngine evaluates portfolio risk over a lookback window. MinObservations
// is the minimum number of overlapping daily return observations a symbol
// needs to be included in the evaluation.
type RiskEngine struct {
	LookbackDays           int
	MinObservations        int
	RiskFreeRate           float64
	WeightPolicy           WeightPolicy
	ConcentrationThreshold float64
}

// NewRiskEngine creates a risk engine from configuration, falling back to the
// package defaults for any unset value
func NewRiskEngine() *RiskEngine {
	engine := &RiskEngine{
		LookbackDays:           viper.GetInt("risk.lookback_days"),
		MinObservations:        viper.GetInt("risk.min_observations"),
		WeightPolicy:           WeightPolicy(viper.GetString("risk.weight_policy")),
		ConcentrationThreshold: viper.GetFloat64("risk.concentration_threshold"),
	}

	if engine.LookbackDays <= 0 {
		engine.LookbackDays = 365
	}
	if engine.MinObservations <= 0 {
		engine.MinObservations = 20
	}
	if engine.WeightPolicy != RedistributeWeights && engine.WeightPolicy != ReportUncoveredOnly {
		engine.WeightPolicy = RedistributeWeights
	}
	if engine.ConcentrationThreshold <= 0 {
		engine.ConcentrationThreshold = 0.8
	}

	return engine
}

// ComputeRiskSnapshot evaluates the portfolio described by marketValues
// against the price history in prices. Portfolio volatility is the square
// root of w'Σw annualized by √250, where Σ is the covariance matrix of daily
// returns over the shared date range and w is the weight vector chosen by the
// weight policy. The sharpe ratio is the annualized excess return over the
// risk free rate per unit of volatility.
//
// A symbol with no price frame or too little overlapping history is excluded
// and reported in the snapshot; ErrInsufficientData is only returned when no
// symbol at all can be evaluated.
func (engine *RiskEngine) ComputeRiskSnapshot(ctx context.Context, marketValues map[string]float64, prices dataframe.DataFrameMap) (*RiskSnapshot, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "analytics.ComputeRiskSnapshot")
	defer span.End()

	tickers := make([]string, 0, len(marketValues))
	var totalValue float64
	for ticker, value := range marketValues {
		tickers = append(tickers, ticker)
		totalValue += value
	}
	sort.Strings(tickers)

	if len(tickers) == 0 || totalValue <= 0 {
		return nil, ErrNoHoldings
	}

	// a symbol needs MinObservations return observations, i.e. one more
	// price row
	minRows := engine.MinObservations + 1

	excluded := make([]string, 0)
	candidates := make(dataframe.DataFrameMap, len(tickers))
	for _, ticker := range tickers {
		frame, ok := prices[ticker]
		if !ok || frame.Len() < minRows {
			excluded = append(excluded, ticker)
			continue
		}
		candidates[ticker] = frame
	}

	// the shared date range shrinks as symbols with disjoint histories are
	// joined; drop the thinnest series until enough overlap remains
	aligned := candidates.Align()
	for len(candidates) > 0 && alignedRows(aligned) < minRows {
		thinnest := thinnestSeries(candidates)
		log.Debug().Str("Ticker", thinnest).Int("SharedRows", alignedRows(aligned)).Msg("excluding symbol; joint history too short")
		delete(candidates, thinnest)
		excluded = append(excluded, thinnest)
		aligned = candidates.Align()
	}

	if len(candidates) == 0 {
		log.Warn().Strs("Tickers", tickers).Msg("no symbol has enough price history to evaluate risk")
		return nil, ErrInsufficientData
	}

	combined := aligned.DataFrame()
	returns := combined.PctChange()
	included := combined.ColNames
	k := len(included)

	var includedValue float64
	for _, ticker := range included {
		includedValue += marketValues[ticker]
	}
	uncovered := 1.0 - includedValue/totalValue

	weights := make([]float64, k)
	for idx, ticker := range included {
		switch engine.WeightPolicy {
		case ReportUncoveredOnly:
			weights[idx] = marketValues[ticker] / totalValue
		default:
			weights[idx] = marketValues[ticker] / includedValue
		}
	}

	// daily covariance and correlation of returns
	cov := mat.NewSymDense(k, nil)
	corr := make([][]float64, k)
	for i := range corr {
		corr[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		corr[i][i] = 1
		cov.SetSym(i, i, stat.Variance(returns.Vals[i], nil))
		for j := i + 1; j < k; j++ {
			cov.SetSym(i, j, stat.Covariance(returns.Vals[i], returns.Vals[j], nil))
			c := stat.Correlation(returns.Vals[i], returns.Vals[j], nil)
			corr[i][j] = c
			corr[j][i] = c
		}
	}

	w := mat.NewVecDense(k, weights)
	var tmp mat.VecDense
	tmp.MulVec(cov, w)
	volatility := math.Sqrt(mat.Dot(w, &tmp)) * math.Sqrt(TradingDaysPerYear)

	means := returns.Mean()
	stdevs := returns.Stdev()

	var dailyReturn float64
	var cumulativeReturn float64
	symbolStats := make([]*SymbolRisk, 0, k)
	for idx, ticker := range included {
		col := combined.Vals[idx]
		symbolCumulative := col[len(col)-1]/col[0] - 1

		dailyReturn += weights[idx] * means[idx]
		cumulativeReturn += weights[idx] * symbolCumulative

		symbolVolatility := stdevs[idx] * math.Sqrt(TradingDaysPerYear)
		symbolReturn := means[idx] * TradingDaysPerYear
		var symbolSharpe float64
		if symbolVolatility > 0 {
			symbolSharpe = (symbolReturn - engine.RiskFreeRate) / symbolVolatility
		}

		symbolStats = append(symbolStats, &SymbolRisk{
			Ticker:           ticker,
			Weight:           weights[idx],
			AnnualizedReturn: symbolReturn,
			Volatility:       symbolVolatility,
			SharpeRatio:      symbolSharpe,
			CumulativeReturn: symbolCumulative,
		})
	}

	expectedReturn := dailyReturn * TradingDaysPerYear
	var sharpe float64
	if volatility > 0 {
		sharpe = (expectedReturn - engine.RiskFreeRate) / volatility
	}

	warnings := make([]*ConcentrationWarning, 0)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if corr[i][j] > engine.ConcentrationThreshold {
				warnings = append(warnings, &ConcentrationWarning{
					TickerA:     included[i],
					TickerB:     included[j],
					Correlation: corr[i][j],
				})
			}
		}
	}

	sort.Strings(excluded)

	snapshot := &RiskSnapshot{
		Volatility:              volatility,
		ExpectedReturn:          expectedReturn,
		SharpeRatio:             sharpe,
		CumulativeReturn:        cumulativeReturn,
		RiskFreeRate:            engine.RiskFreeRate,
		Tickers:                 included,
		SymbolStats:             symbolStats,
		CorrelationMatrix:       corr,
		ExcludedTickers:         excluded,
		UncoveredWeightFraction: uncovered,
		ConcentrationWarnings:   warnings,
		Window: &data.Interval{
			Begin: combined.Start(),
			End:   combined.End(),
		},
		ComputedAt: time.Now(),
	}

	log.Info().Object("RiskSnapshot", snapshot).Msg("computed risk snapshot")
	return snapshot, nil
}

// Private Implementation

// alignedRows returns the shared row count; after Align every frame in the
// map has the same length
func alignedRows(dfMap dataframe.DataFrameMap) int {
	for _, df := range dfMap {
		return df.Len()
	}
	return 0
}

// thinnestSeries returns the ticker with the fewest rows; ties resolve to the
// first ticker in sorted order so repeated evaluations exclude the same symbol
func thinnestSeries(dfMap dataframe.DataFrameMap) string {
	var thinnest string
	rows := math.MaxInt
	for _, ticker := range dfMap.Keys() {
		if dfMap[ticker].Len() < rows {
			rows = dfMap[ticker].Len()
			thinnest = ticker
		}
	}
	return thinnest
}
