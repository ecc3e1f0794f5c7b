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

package dividend_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/dividend"
	"github.com/penny-vault/portfolio-tracker/ledger"
	"github.com/spf13/viper"
)

func mustRecord(ctx context.Context, l *ledger.Ledger, date time.Time, ticker string, kind string, shares float64, price float64) {
	trx, err := ledger.NewTransaction(date, ticker, kind, shares, price, "")
	Expect(err).To(BeNil())
	Expect(l.AddTransaction(ctx, trx)).To(Succeed())
}

var _ = Describe("Tracker", func() {
	var (
		ctx     context.Context
		l       *ledger.Ledger
		tracker *dividend.Tracker
		tz      *time.Location

		jan    time.Time
		mar    time.Time
		march  *data.Interval
		exDate time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		tz = common.GetTimezone()
		l = ledger.New(ledger.NewMemoryStore())
		tracker = &dividend.Tracker{TrailingMonths: 12}

		jan = time.Date(2021, time.January, 4, 0, 0, 0, 0, tz)
		mar = time.Date(2021, time.March, 1, 0, 0, 0, 0, tz)
		exDate = time.Date(2021, time.March, 15, 0, 0, 0, 0, tz)
		march = &data.Interval{
			Begin: mar,
			End:   time.Date(2021, time.March, 31, 0, 0, 0, 0, tz),
		}
	})

	Describe("realized income", func() {
		It("pays the per-share amount on the shares held at the ex-date", func() {
			mustRecord(ctx, l, jan, "VFINX", ledger.BuyTransaction, 100, 300)
			events := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: exDate, Amount: .5},
			}

			report, err := tracker.RealizedIncome(ctx, events, march, l.HeldAsOf)
			Expect(err).To(BeNil())

			Expect(report.TotalIncome).To(BeNumerically("~", 50, 1e-9))
			Expect(report.Records).To(HaveLen(1))
			Expect(report.Records[0].Ticker).To(Equal("VFINX"))
			Expect(report.Records[0].Shares).To(BeNumerically("~", 100, 1e-5))
			Expect(report.Records[0].Income).To(BeNumerically("~", 50, 1e-9))
			Expect(report.IncomeByTicker["VFINX"]).To(BeNumerically("~", 50, 1e-9))
		})

		It("keeps income recognized before a later sale", func() {
			mustRecord(ctx, l, jan, "VFINX", ledger.BuyTransaction, 100, 300)
			mustRecord(ctx, l, time.Date(2021, time.March, 20, 0, 0, 0, 0, tz), "VFINX", ledger.SellTransaction, 100, 310)
			events := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: exDate, Amount: .5},
			}

			report, err := tracker.RealizedIncome(ctx, events, march, l.HeldAsOf)
			Expect(err).To(BeNil())

			Expect(l.CurrentHoldings()).To(BeEmpty())
			Expect(report.TotalIncome).To(BeNumerically("~", 50, 1e-9))
		})

		It("pays nothing on a position opened after the ex-date", func() {
			mustRecord(ctx, l, time.Date(2021, time.March, 20, 0, 0, 0, 0, tz), "VFINX", ledger.BuyTransaction, 100, 300)
			events := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: exDate, Amount: .5},
			}

			report, err := tracker.RealizedIncome(ctx, events, march, l.HeldAsOf)
			Expect(err).To(BeNil())

			Expect(report.Records).To(BeEmpty())
			Expect(report.TotalIncome).To(BeZero())
		})

		It("ignores events whose ex-date falls outside the period", func() {
			mustRecord(ctx, l, jan, "VFINX", ledger.BuyTransaction, 100, 300)
			events := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: time.Date(2021, time.February, 10, 0, 0, 0, 0, tz), Amount: .5},
				{Ticker: "VFINX", ExDate: exDate, Amount: .25},
			}

			report, err := tracker.RealizedIncome(ctx, events, march, l.HeldAsOf)
			Expect(err).To(BeNil())

			Expect(report.Records).To(HaveLen(1))
			Expect(report.TotalIncome).To(BeNumerically("~", 25, 1e-9))
		})

		It("accumulates income per ticker and orders records by ex-date", func() {
			mustRecord(ctx, l, jan, "VFINX", ledger.BuyTransaction, 100, 300)
			mustRecord(ctx, l, jan, "VUSTX", ledger.BuyTransaction, 200, 11)
			events := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: time.Date(2021, time.March, 25, 0, 0, 0, 0, tz), Amount: .5},
				{Ticker: "VUSTX", ExDate: exDate, Amount: .1},
				{Ticker: "VFINX", ExDate: exDate, Amount: .5},
			}

			report, err := tracker.RealizedIncome(ctx, events, march, l.HeldAsOf)
			Expect(err).To(BeNil())

			Expect(report.Records).To(HaveLen(3))
			Expect(report.Records[0].Ticker).To(Equal("VFINX"))
			Expect(report.Records[1].Ticker).To(Equal("VUSTX"))
			Expect(report.Records[2].ExDate).To(Equal(time.Date(2021, time.March, 25, 0, 0, 0, 0, tz)))
			Expect(report.IncomeByTicker["VFINX"]).To(BeNumerically("~", 100, 1e-9))
			Expect(report.IncomeByTicker["VUSTX"]).To(BeNumerically("~", 20, 1e-9))
			Expect(report.TotalIncome).To(BeNumerically("~", 120, 1e-9))
		})

		It("rejects an inverted period", func() {
			_, err := tracker.RealizedIncome(ctx, nil, &data.Interval{Begin: march.End, End: march.Begin}, l.HeldAsOf)
			Expect(err).To(MatchError(data.ErrBeginAfterEnd))
		})
	})

	Describe("projected annual income", func() {
		It("annualizes a year of trailing dividends against the current position", func() {
			trailing := make([]*data.DividendEvent, 0, 4)
			for month := 0; month < 12; month += 3 {
				trailing = append(trailing, &data.DividendEvent{
					Ticker: "VFINX",
					ExDate: exDate.AddDate(0, -month, 0),
					Amount: .5,
				})
			}

			report := tracker.ProjectedAnnualIncome(ctx, map[string]float64{"VFINX": 100}, trailing)

			Expect(report.Symbols).To(HaveLen(1))
			Expect(report.Symbols[0].TrailingPerShare).To(BeNumerically("~", 2, 1e-9))
			Expect(report.Symbols[0].AnnualPerShare).To(BeNumerically("~", 2, 1e-9))
			Expect(report.Symbols[0].ProjectedIncome).To(BeNumerically("~", 200, 1e-9))
			Expect(report.TotalIncome).To(BeNumerically("~", 200, 1e-9))
		})

		It("scales a shorter trailing window to a full year", func() {
			tracker.TrailingMonths = 6
			trailing := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: exDate, Amount: 1},
			}

			report := tracker.ProjectedAnnualIncome(ctx, map[string]float64{"VFINX": 100}, trailing)

			Expect(report.TrailingMonths).To(Equal(6))
			Expect(report.Symbols[0].AnnualPerShare).To(BeNumerically("~", 2, 1e-9))
			Expect(report.TotalIncome).To(BeNumerically("~", 200, 1e-9))
		})

		It("projects zero income for a symbol with no dividend history", func() {
			trailing := []*data.DividendEvent{
				{Ticker: "VFINX", ExDate: exDate, Amount: .5},
			}

			report := tracker.ProjectedAnnualIncome(ctx, map[string]float64{"PRIDX": 50, "VFINX": 100}, trailing)

			Expect(report.Symbols).To(HaveLen(2))
			Expect(report.Symbols[0].Ticker).To(Equal("PRIDX"))
			Expect(report.Symbols[0].ProjectedIncome).To(BeZero())
			Expect(report.Symbols[1].Ticker).To(Equal("VFINX"))
			Expect(report.TotalIncome).To(BeNumerically("~", 50, 1e-9))
		})

		It("ignores dividends for symbols no longer held", func() {
			trailing := []*data.DividendEvent{
				{Ticker: "VUSTX", ExDate: exDate, Amount: .5},
			}

			report := tracker.ProjectedAnnualIncome(ctx, map[string]float64{"VFINX": 100}, trailing)
			Expect(report.TotalIncome).To(BeZero())
		})
	})

	Describe("yield report", func() {
		It("summarizes yields over the dividend payers", func() {
			projection := &dividend.ProjectionReport{
				TrailingMonths: 12,
				Symbols: []*dividend.SymbolProjection{
					{Ticker: "PRIDX", ProjectedIncome: 0},
					{Ticker: "VFINX", ProjectedIncome: 200},
					{Ticker: "VUSTX", ProjectedIncome: 400},
				},
				TotalIncome: 600,
			}
			marketValues := map[string]float64{"PRIDX": 5_000, "VFINX": 10_000, "VUSTX": 10_000}

			report := tracker.YieldReport(projection, marketValues)

			Expect(report.PortfolioYield).To(BeNumerically("~", .024, 1e-9))
			Expect(report.MeanYield).To(BeNumerically("~", .03, 1e-9))
			Expect(report.MedianYield).To(BeNumerically("~", .03, 1e-9))
			Expect(report.Symbols).To(HaveLen(3))
			Expect(report.Symbols[0].Yield).To(BeZero())
			Expect(report.Symbols[1].Yield).To(BeNumerically("~", .02, 1e-9))
			Expect(report.Symbols[2].Yield).To(BeNumerically("~", .04, 1e-9))
		})

		It("returns zeros for an empty portfolio", func() {
			report := tracker.YieldReport(&dividend.ProjectionReport{}, map[string]float64{})
			Expect(report.PortfolioYield).To(BeZero())
			Expect(report.MeanYield).To(BeZero())
			Expect(report.MedianYield).To(BeZero())
		})
	})

	Describe("configuration", func() {
		It("builds the trailing window from the tracker settings", func() {
			asOf := time.Date(2022, time.June, 1, 0, 0, 0, 0, tz)
			window := tracker.TrailingWindow(asOf)
			Expect(window.Begin).To(Equal(time.Date(2021, time.June, 1, 0, 0, 0, 0, tz)))
			Expect(window.End).To(Equal(asOf))
		})

		It("reads the trailing window length from configuration", func() {
			viper.Set("dividend.trailing_months", 6)
			defer viper.Set("dividend.trailing_months", 0)

			Expect(dividend.NewTracker().TrailingMonths).To(Equal(6))
		})

		It("defaults to a one year trailing window", func() {
			viper.Set("dividend.trailing_months", 0)
			Expect(dividend.NewTracker().TrailingMonths).To(Equal(12))
		})
	})
})
