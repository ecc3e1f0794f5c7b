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

package dividend

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/rs/zerolog"
)

// IncomeRecord is the income produced by a single dividend event
type IncomeRecord struct {
	Ticker         string    `json:"ticker"`
	ExDate         time.Time `json:"exDate"`
	AmountPerShare float64   `json:"amountPerShare"`
	Shares         float64   `json:"shares"`
	Income         float64   `json:"income"`
}

// IncomeReport is the realized dividend income over a period
type IncomeReport struct {
	Period         *data.Interval     `json:"period"`
	Records        []*IncomeRecord    `json:"records"`
	IncomeByTicker map[string]float64 `json:"incomeByTicker"`
	TotalIncome    float64            `json:"totalIncome"`
}

// SymbolProjection is the estimated forward annual income for a single holding
type SymbolProjection struct {
	Ticker           string  `json:"ticker"`
	Shares           float64 `json:"shares"`
	TrailingPerShare float64 `json:"trailingPerShare"`
	AnnualPerShare   float64 `json:"annualPerShare"`
	ProjectedIncome  float64 `json:"projectedIncome"`
}

// ProjectionReport is the estimated forward annual income for the portfolio
type ProjectionReport struct {
	TrailingMonths int                 `json:"trailingMonths"`
	Symbols        []*SymbolProjection `json:"symbols"`
	TotalIncome    float64             `json:"totalIncome"`
}

// SymbolYield relates a holding's projected income to its market value
type SymbolYield struct {
	Ticker          string  `json:"ticker"`
	MarketValue     float64 `json:"marketValue"`
	ProjectedIncome float64 `json:"projectedIncome"`
	Yield           float64 `json:"yield"`
}

// YieldReport summarizes forward yield across the portfolio. Mean and median
// only consider dividend payers; portfolio yield is income over total value.
type YieldReport struct {
	PortfolioYield float64        `json:"portfolioYield"`
	MeanYield      float64        `json:"meanYield"`
	MedianYield    float64        `json:"medianYield"`
	Symbols        []*SymbolYield `json:"symbols"`
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (report *IncomeReport) MarshalZerologObject(e *zerolog.Event) {
	e.Object("Period", report.Period).
		Int("NumRecords", len(report.Records)).
		Float64("TotalIncome", report.TotalIncome)
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (report *ProjectionReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("TrailingMonths", report.TrailingMonths).
		Int("NumSymbols", len(report.Symbols)).
		Float64("TotalIncome", report.TotalIncome)
}

// Table renders the realized income report for display on the console
func (report *IncomeReport) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Ticker", "Ex-Date", "Per Share", "Shares", "Income"})
	table.SetBorder(false)

	for _, record := range report.Records {
		table.Append([]string{
			record.Ticker,
			record.ExDate.Format("2006-01-02"),
			fmt.Sprintf("$%.4f", record.AmountPerShare),
			fmt.Sprintf("%.2f", record.Shares),
			fmt.Sprintf("$%.2f", record.Income),
		})
	}

	table.SetFooter([]string{"Total", "", "", "", fmt.Sprintf("$%.2f", report.TotalIncome)})
	table.Render()
	return s.String()
}

// Table renders the projection report for display on the console
func (report *ProjectionReport) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Ticker", "Shares", "Trailing Per Share", "Annual Per Share", "Projected Income"})
	table.SetBorder(false)

	for _, proj := range report.Symbols {
		table.Append([]string{
			proj.Ticker,
			fmt.Sprintf("%.2f", proj.Shares),
			fmt.Sprintf("$%.4f", proj.TrailingPerShare),
			fmt.Sprintf("$%.4f", proj.AnnualPerShare),
			fmt.Sprintf("$%.2f", proj.ProjectedIncome),
		})
	}

	table.SetFooter([]string{"Total", "", "", "", fmt.Sprintf("$%.2f", report.TotalIncome)})
	table.Render()
	return s.String()
}
