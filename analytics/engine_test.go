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

package analytics_test

import (
	"context"
	"time"

	"github.com/penny-vault/portfolio-tracker/analytics"
	"github.com/penny-vault/portfolio-tracker/dataframe"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// priceSeries builds a daily closing price series from an initial price and a
// list of daily returns
func priceSeries(initial float64, returns []float64) []float64 {
	prices := make([]float64, 0, len(returns)+1)
	prices = append(prices, initial)
	for _, ret := range returns {
		prices = append(prices, prices[len(prices)-1]*(1+ret))
	}
	return prices
}

// priceFrame builds a single-column dataframe of consecutive daily prices
func priceFrame(ticker string, begin time.Time, prices []float64) *dataframe.DataFrame {
	dates := make([]time.Time, len(prices))
	for idx := range prices {
		dates[idx] = begin.AddDate(0, 0, idx)
	}
	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{ticker},
		Vals:     [][]float64{prices},
	}
}

// alternatingReturns builds n daily returns that alternate between +magnitude
// and -magnitude
func alternatingReturns(n int, magnitude float64) []float64 {
	returns := make([]float64, n)
	for idx := range returns {
		if idx%2 == 0 {
			returns[idx] = magnitude
		} else {
			returns[idx] = -magnitude
		}
	}
	return returns
}

func negate(returns []float64) []float64 {
	negated := make([]float64, len(returns))
	for idx, ret := range returns {
		negated[idx] = -ret
	}
	return negated
}

var _ = Describe("RiskEngine", func() {
	var (
		begin  time.Time
		ctx    context.Context
		engine *analytics.RiskEngine
	)

	BeforeEach(func() {
		begin = time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
		ctx = context.Background()
		engine = &analytics.RiskEngine{
			LookbackDays:           365,
			MinObservations:        5,
			RiskFreeRate:           0,
			WeightPolicy:           analytics.RedistributeWeights,
			ConcentrationThreshold: 0.8,
		}
	})

	Context("when the portfolio has no holdings", func() {
		It("rejects an empty portfolio", func() {
			_, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{}, dataframe.DataFrameMap{})
			Expect(err).To(MatchError(analytics.ErrNoHoldings))
		})

		It("rejects a portfolio with no market value", func() {
			prices := dataframe.DataFrameMap{
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, alternatingReturns(10, .01))),
			}
			_, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 0}, prices)
			Expect(err).To(MatchError(analytics.ErrNoHoldings))
		})
	})

	Context("with a single symbol", func() {
		var prices dataframe.DataFrameMap

		BeforeEach(func() {
			// 10 daily returns alternating +2% / 0%; mean .01, cumulative
			// 1.02^5 - 1
			returns := make([]float64, 10)
			for idx := range returns {
				if idx%2 == 0 {
					returns[idx] = .02
				}
			}
			prices = dataframe.DataFrameMap{
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, returns)),
			}
			engine.RiskFreeRate = .02
		})

		It("computes annualized statistics", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 10_000}, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.Tickers).To(Equal([]string{"VFINX"}))
			Expect(snapshot.ExpectedReturn).To(BeNumerically("~", 2.5, 1e-6))
			// sample stdev of +/-1% deviations is .01*sqrt(10/9); annualized
			// by sqrt(250) that is exactly 1/6
			Expect(snapshot.Volatility).To(BeNumerically("~", 1.0/6.0, 1e-6))
			Expect(snapshot.SharpeRatio).To(BeNumerically("~", (2.5-.02)*6, 1e-4))
			Expect(snapshot.CumulativeReturn).To(BeNumerically("~", .1040808, 1e-6))
			Expect(snapshot.RiskFreeRate).To(Equal(.02))
			Expect(snapshot.UncoveredWeightFraction).To(BeNumerically("~", 0, 1e-9))
			Expect(snapshot.ExcludedTickers).To(BeEmpty())
			Expect(snapshot.ConcentrationWarnings).To(BeEmpty())
		})

		It("reports per-symbol statistics", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 10_000}, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.SymbolStats).To(HaveLen(1))
			Expect(snapshot.SymbolStats[0].Ticker).To(Equal("VFINX"))
			Expect(snapshot.SymbolStats[0].Weight).To(BeNumerically("~", 1.0, 1e-9))
			Expect(snapshot.SymbolStats[0].AnnualizedReturn).To(BeNumerically("~", 2.5, 1e-6))
			Expect(snapshot.SymbolStats[0].Volatility).To(BeNumerically("~", 1.0/6.0, 1e-6))
			Expect(snapshot.SymbolStats[0].CumulativeReturn).To(BeNumerically("~", .1040808, 1e-6))
		})

		It("records the evaluation window", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 10_000}, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.Window).NotTo(BeNil())
			Expect(snapshot.Window.Begin).To(Equal(begin))
			Expect(snapshot.Window.End).To(Equal(begin.AddDate(0, 0, 10)))
			Expect(snapshot.ComputedAt).NotTo(BeZero())
		})
	})

	Context("with two perfectly correlated symbols", func() {
		var (
			marketValues map[string]float64
			prices       dataframe.DataFrameMap
		)

		BeforeEach(func() {
			returns := alternatingReturns(10, .01)
			prices = dataframe.DataFrameMap{
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, returns)),
				"VUSTX": priceFrame("VUSTX", begin, priceSeries(50, returns)),
			}
			marketValues = map[string]float64{"VFINX": 7_000, "VUSTX": 3_000}
		})

		It("reports a correlation of one", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.CorrelationMatrix[0][0]).To(Equal(1.0))
			Expect(snapshot.CorrelationMatrix[1][1]).To(Equal(1.0))
			Expect(snapshot.CorrelationMatrix[0][1]).To(BeNumerically("~", 1.0, 1e-9))
			Expect(snapshot.CorrelationMatrix[1][0]).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("flags the pair as concentrated", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.ConcentrationWarnings).To(HaveLen(1))
			Expect(snapshot.ConcentrationWarnings[0].TickerA).To(Equal("VFINX"))
			Expect(snapshot.ConcentrationWarnings[0].TickerB).To(Equal("VUSTX"))
			Expect(snapshot.ConcentrationWarnings[0].Correlation).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("computes the same volatility for any weight split", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			flipped, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 3_000, "VUSTX": 7_000}, prices)
			Expect(err).To(BeNil())

			single, err := engine.ComputeRiskSnapshot(ctx, map[string]float64{"VFINX": 10_000}, dataframe.DataFrameMap{"VFINX": prices["VFINX"]})
			Expect(err).To(BeNil())

			Expect(snapshot.Volatility).To(BeNumerically("~", single.Volatility, 1e-9))
			Expect(flipped.Volatility).To(BeNumerically("~", single.Volatility, 1e-9))
		})

		It("is deterministic", func() {
			first, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			second, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(second.Tickers).To(Equal(first.Tickers))
			Expect(second.Volatility).To(Equal(first.Volatility))
			Expect(second.ExpectedReturn).To(Equal(first.ExpectedReturn))
		})
	})

	Context("with two perfectly anti-correlated symbols", func() {
		var (
			marketValues map[string]float64
			prices       dataframe.DataFrameMap
		)

		BeforeEach(func() {
			returns := alternatingReturns(10, .01)
			prices = dataframe.DataFrameMap{
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, returns)),
				"VUSTX": priceFrame("VUSTX", begin, priceSeries(50, negate(returns))),
			}
			marketValues = map[string]float64{"VFINX": 5_000, "VUSTX": 5_000}
		})

		It("cancels the portfolio volatility", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.CorrelationMatrix[0][1]).To(BeNumerically("~", -1.0, 1e-9))
			Expect(snapshot.Volatility).To(BeNumerically("~", 0, 1e-6))
			Expect(snapshot.SharpeRatio).To(BeZero())
			Expect(snapshot.ConcentrationWarnings).To(BeEmpty())
		})
	})

	Context("when a symbol lacks price history", func() {
		var (
			marketValues map[string]float64
			prices       dataframe.DataFrameMap
		)

		BeforeEach(func() {
			prices = dataframe.DataFrameMap{
				"PRIDX": priceFrame("PRIDX", begin, priceSeries(40, alternatingReturns(2, .01))),
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, alternatingReturns(10, .01))),
			}
			marketValues = map[string]float64{"PRIDX": 2_500, "VFINX": 7_500}
		})

		It("excludes the symbol and reports the uncovered weight", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.Tickers).To(Equal([]string{"VFINX"}))
			Expect(snapshot.ExcludedTickers).To(Equal([]string{"PRIDX"}))
			Expect(snapshot.UncoveredWeightFraction).To(BeNumerically("~", .25, 1e-9))
		})

		It("redistributes the excluded weight by default", func() {
			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.SymbolStats[0].Weight).To(BeNumerically("~", 1.0, 1e-9))
			Expect(snapshot.Volatility).To(BeNumerically("~", 1.0/6.0, 1e-6))
		})

		It("keeps true weights under the report policy", func() {
			engine.WeightPolicy = analytics.ReportUncoveredOnly

			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.SymbolStats[0].Weight).To(BeNumerically("~", .75, 1e-9))
			Expect(snapshot.Volatility).To(BeNumerically("~", .75/6.0, 1e-6))
			Expect(snapshot.UncoveredWeightFraction).To(BeNumerically("~", .25, 1e-9))
		})

		It("excludes a symbol with no price frame at all", func() {
			delete(prices, "PRIDX")

			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.Tickers).To(Equal([]string{"VFINX"}))
			Expect(snapshot.ExcludedTickers).To(Equal([]string{"PRIDX"}))
		})
	})

	Context("when symbol histories do not overlap", func() {
		It("drops the thinner series until the survivors share enough dates", func() {
			prices := dataframe.DataFrameMap{
				"PRIDX": priceFrame("PRIDX", begin.AddDate(0, 0, 60), priceSeries(40, alternatingReturns(7, .01))),
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, alternatingReturns(10, .01))),
			}
			marketValues := map[string]float64{"PRIDX": 2_500, "VFINX": 7_500}

			snapshot, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(BeNil())

			Expect(snapshot.Tickers).To(Equal([]string{"VFINX"}))
			Expect(snapshot.ExcludedTickers).To(Equal([]string{"PRIDX"}))
			Expect(snapshot.UncoveredWeightFraction).To(BeNumerically("~", .25, 1e-9))
		})
	})

	Context("when no symbol has enough history", func() {
		It("returns an insufficient data error", func() {
			prices := dataframe.DataFrameMap{
				"PRIDX": priceFrame("PRIDX", begin, priceSeries(40, alternatingReturns(2, .01))),
				"VFINX": priceFrame("VFINX", begin, priceSeries(100, alternatingReturns(3, .01))),
			}
			marketValues := map[string]float64{"PRIDX": 2_500, "VFINX": 7_500}

			_, err := engine.ComputeRiskSnapshot(ctx, marketValues, prices)
			Expect(err).To(MatchError(analytics.ErrInsufficientData))
		})

		It("returns an insufficient data error when no prices are known", func() {
			marketValues := map[string]float64{"PRIDX": 2_500, "VFINX": 7_500}

			_, err := engine.ComputeRiskSnapshot(ctx, marketValues, dataframe.DataFrameMap{})
			Expect(err).To(MatchError(analytics.ErrInsufficientData))
		})
	})
})
