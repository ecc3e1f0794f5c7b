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

package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/rs/zerolog"
)

// SymbolRisk holds the per-symbol statistics over the evaluation window.
// Return, volatility and sharpe are annualized; cumulative return is over the
// window as-is.
type SymbolRisk struct {
	Ticker           string  `json:"ticker"`
	Weight           float64 `json:"weight"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	CumulativeReturn float64 `json:"cumulativeReturn"`
}

// ConcentrationWarning flags a pair of symbols whose return correlation
// exceeds the configured threshold; the pair behaves closer to a single
// position than to two independent ones
type ConcentrationWarning struct {
	TickerA     string  `json:"tickerA"`
	TickerB     string  `json:"tickerB"`
	Correlation float64 `json:"correlation"`
}

// RiskSnapshot is a point-in-time risk evaluation of the portfolio. Statistics
// only cover the included tickers; symbols without enough overlapping history
// are listed in ExcludedTickers and their share of portfolio value is reported
// as UncoveredWeightFraction.
type RiskSnapshot struct {
	Volatility       float64 `json:"volatility"`
	ExpectedReturn   float64 `json:"expectedReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	CumulativeReturn float64 `json:"cumulativeReturn"`
	RiskFreeRate     float64 `json:"riskFreeRate"`

	Tickers           []string      `json:"tickers"`
	SymbolStats       []*SymbolRisk `json:"symbolStats"`
	CorrelationMatrix [][]float64   `json:"correlationMatrix"`

	ExcludedTickers         []string                `json:"excludedTickers"`
	UncoveredWeightFraction float64                 `json:"uncoveredWeightFraction"`
	ConcentrationWarnings   []*ConcentrationWarning `json:"concentrationWarnings"`

	Window     *data.Interval `json:"window"`
	ComputedAt time.Time      `json:"computedAt"`
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (snapshot *RiskSnapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("Volatility", snapshot.Volatility).
		Float64("ExpectedReturn", snapshot.ExpectedReturn).
		Float64("SharpeRatio", snapshot.SharpeRatio).
		Strs("Tickers", snapshot.Tickers).
		Strs("ExcludedTickers", snapshot.ExcludedTickers).
		Float64("UncoveredWeightFraction", snapshot.UncoveredWeightFraction)
}

// Table renders the snapshot as a table for display on the console
func (snapshot *RiskSnapshot) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Ticker", "Weight", "Ann. Return", "Volatility", "Sharpe", "Cum. Return"})
	table.SetBorder(false)

	for _, stats := range snapshot.SymbolStats {
		table.Append([]string{
			stats.Ticker,
			fmt.Sprintf("%.2f%%", stats.Weight*100),
			fmt.Sprintf("%.2f%%", stats.AnnualizedReturn*100),
			fmt.Sprintf("%.2f%%", stats.Volatility*100),
			fmt.Sprintf("%.2f", stats.SharpeRatio),
			fmt.Sprintf("%.2f%%", stats.CumulativeReturn*100),
		})
	}

	table.SetFooter([]string{
		"Portfolio",
		fmt.Sprintf("%.2f%%", (1-snapshot.UncoveredWeightFraction)*100),
		fmt.Sprintf("%.2f%%", snapshot.ExpectedReturn*100),
		fmt.Sprintf("%.2f%%", snapshot.Volatility*100),
		fmt.Sprintf("%.2f", snapshot.SharpeRatio),
		fmt.Sprintf("%.2f%%", snapshot.CumulativeReturn*100),
	})

	table.Render()
	return s.String()
}

// CorrelationTable renders the pairwise correlation matrix as a table for
// display on the console
func (snapshot *RiskSnapshot) CorrelationTable() string {
	if len(snapshot.Tickers) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(append([]string{""}, snapshot.Tickers...))
	table.SetBorder(false)

	for idx, ticker := range snapshot.Tickers {
		row := make([]string, 0, len(snapshot.Tickers)+1)
		row = append(row, ticker)
		for _, corr := range snapshot.CorrelationMatrix[idx] {
			row = append(row, fmt.Sprintf("%.4f", corr))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}
