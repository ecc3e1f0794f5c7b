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
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Holding is an open position valued at its most recent closing price
type Holding struct {
	Ticker                string    `json:"ticker"`
	Shares                float64   `json:"shares"`
	CostBasis             float64   `json:"costBasis"`
	Price                 float64   `json:"price"`
	PriceDate             time.Time `json:"priceDate"`
	MarketValue           float64   `json:"marketValue"`
	UnrealizedGain        float64   `json:"unrealizedGain"`
	UnrealizedGainPercent float64   `json:"unrealizedGainPercent"`
	Weight                float64   `json:"weight"`
}

// HoldingsReport values the portfolio's open positions. Tickers whose price
// could not be retrieved are listed in Unpriced and carry no market value.
type HoldingsReport struct {
	Holdings    []*Holding `json:"holdings"`
	TotalValue  float64    `json:"totalValue"`
	TotalGain   float64    `json:"totalGain"`
	Unpriced    []string   `json:"unpriced"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// CurrentHoldings values the ledger's open positions at their most recent
// closing price. A failed price lookup does not fail the report; the ticker is
// reported as unpriced instead.
func (model *Model) CurrentHoldings(ctx context.Context) *HoldingsReport {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.CurrentHoldings")
	defer span.End()

	positions := model.Ledger.CurrentHoldings()
	report := &HoldingsReport{
		Holdings:    make([]*Holding, 0, len(positions)),
		Unpriced:    make([]string, 0),
		GeneratedAt: time.Now(),
	}

	for _, pos := range positions {
		price, priceDate, err := model.dataProxy.GetLatestClose(ctx, pos.Ticker)
		if err != nil {
			log.Warn().Err(err).Str("Ticker", pos.Ticker).Msg("no current price for holding")
			report.Unpriced = append(report.Unpriced, pos.Ticker)
			continue
		}

		holding := &Holding{
			Ticker:         pos.Ticker,
			Shares:         pos.Shares,
			CostBasis:      pos.CostBasis,
			Price:          price,
			PriceDate:      priceDate,
			MarketValue:    pos.Shares * price,
			UnrealizedGain: (price - pos.CostBasis) * pos.Shares,
		}
		if pos.CostBasis > 0 {
			holding.UnrealizedGainPercent = price/pos.CostBasis - 1
		}

		report.Holdings = append(report.Holdings, holding)
		report.TotalValue += holding.MarketValue
		report.TotalGain += holding.UnrealizedGain
	}

	if report.TotalValue > 0 {
		for _, holding := range report.Holdings {
			holding.Weight = holding.MarketValue / report.TotalValue
		}
	}

	log.Info().Object("HoldingsReport", report).Msg("valued current holdings")
	return report
}

// MarketValues returns the market value of each priced holding by ticker
func (report *HoldingsReport) MarketValues() map[string]float64 {
	values := make(map[string]float64, len(report.Holdings))
	for _, holding := range report.Holdings {
		values[holding.Ticker] = holding.MarketValue
	}
	return values
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (report *HoldingsReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("NumHoldings", len(report.Holdings)).
		Float64("TotalValue", report.TotalValue).
		Float64("TotalGain", report.TotalGain).
		Strs("Unpriced", report.Unpriced)
}

// Table renders the holdings report for display on the console
func (report *HoldingsReport) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Ticker", "Shares", "Cost Basis", "Price", "Market Value", "Gain", "Weight"})
	table.SetBorder(false)

	for _, holding := range report.Holdings {
		table.Append([]string{
			holding.Ticker,
			fmt.Sprintf("%.2f", holding.Shares),
			fmt.Sprintf("$%.2f", holding.CostBasis),
			fmt.Sprintf("$%.2f", holding.Price),
			fmt.Sprintf("$%.2f", holding.MarketValue),
			fmt.Sprintf("$%.2f", holding.UnrealizedGain),
			fmt.Sprintf("%.2f%%", holding.Weight*100),
		})
	}

	for _, ticker := range report.Unpriced {
		table.Append([]string{ticker, "", "", "<NO PRICE>", "", "", ""})
	}

	table.SetFooter([]string{
		"Total", "", "", "",
		fmt.Sprintf("$%.2f", report.TotalValue),
		fmt.Sprintf("$%.2f", report.TotalGain),
		"",
	})

	table.Render()
	return s.String()
}
