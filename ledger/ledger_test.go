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

package ledger_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/ledger"
)

func mustTransaction(date time.Time, ticker string, kind string, shares float64, price float64) *ledger.Transaction {
	trx, err := ledger.NewTransaction(date, ticker, kind, shares, price, "")
	Expect(err).To(BeNil())
	return trx
}

var _ = Describe("Ledger", func() {
	var (
		ctx   context.Context
		store *ledger.MemoryStore
		l     *ledger.Ledger
		tz    *time.Location

		jan time.Time
		feb time.Time
		mar time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		tz = common.GetTimezone()
		store = ledger.NewMemoryStore()
		l = ledger.New(store)

		jan = time.Date(2021, time.January, 4, 0, 0, 0, 0, tz)
		feb = time.Date(2021, time.February, 1, 0, 0, 0, 0, tz)
		mar = time.Date(2021, time.March, 1, 0, 0, 0, 0, tz)
	})

	Describe("recording buys", func() {
		It("opens a position with a single lot", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))).To(Succeed())

			holdings := l.CurrentHoldings()
			Expect(holdings).To(HaveLen(1))
			Expect(holdings[0].Ticker).To(Equal("VFINX"))
			Expect(holdings[0].Shares).Should(BeNumerically("~", 10, 1e-5))
			Expect(holdings[0].CostBasis).Should(BeNumerically("~", 100, 1e-5))
			Expect(holdings[0].Lots).To(HaveLen(1))
		})

		It("averages the cost basis across lots", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(feb, "VFINX", ledger.BuyTransaction, 10, 200))).To(Succeed())

			holdings := l.CurrentHoldings()
			Expect(holdings).To(HaveLen(1))
			Expect(holdings[0].Shares).Should(BeNumerically("~", 20, 1e-5))
			Expect(holdings[0].CostBasis).Should(BeNumerically("~", 150, 1e-5))
			Expect(holdings[0].Lots).To(HaveLen(2))
		})

		It("orders holdings by ticker", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VUSTX", ledger.BuyTransaction, 5, 10))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "PRIDX", ledger.BuyTransaction, 5, 10))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 5, 10))).To(Succeed())

			holdings := l.CurrentHoldings()
			Expect(holdings).To(HaveLen(3))
			Expect(holdings[0].Ticker).To(Equal("PRIDX"))
			Expect(holdings[1].Ticker).To(Equal("VFINX"))
			Expect(holdings[2].Ticker).To(Equal("VUSTX"))
		})
	})

	Describe("selling shares", func() {
		BeforeEach(func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(feb, "VFINX", ledger.BuyTransaction, 10, 200))).To(Succeed())
		})

		It("consumes the oldest lot first", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 12, 250))).To(Succeed())

			holdings := l.CurrentHoldings()
			Expect(holdings).To(HaveLen(1))
			Expect(holdings[0].Shares).Should(BeNumerically("~", 8, 1e-5))
			Expect(holdings[0].CostBasis).Should(BeNumerically("~", 200, 1e-5))
			Expect(holdings[0].Lots).To(HaveLen(1))
			Expect(holdings[0].Lots[0].Date).To(Equal(feb))
			Expect(holdings[0].Lots[0].Shares).Should(BeNumerically("~", 8, 1e-5))
		})

		It("keeps a partially consumed lot open", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 4, 250))).To(Succeed())

			holdings := l.CurrentHoldings()
			Expect(holdings[0].Lots).To(HaveLen(2))
			Expect(holdings[0].Lots[0].Date).To(Equal(jan))
			Expect(holdings[0].Lots[0].Shares).Should(BeNumerically("~", 6, 1e-5))
			Expect(holdings[0].CostBasis).Should(BeNumerically("~", (6*100.0+10*200.0)/16.0, 1e-5))
		})

		It("closes the position when every share is sold", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 20, 250))).To(Succeed())
			Expect(l.CurrentHoldings()).To(BeEmpty())
		})

		It("rejects a sell that exceeds the position", func() {
			version := l.Version()
			err := l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 25, 250))

			var insufficient *ledger.InsufficientPositionError
			Expect(errors.As(err, &insufficient)).To(BeTrue())
			Expect(insufficient.Ticker).To(Equal("VFINX"))
			Expect(insufficient.Requested).Should(BeNumerically("~", 25, 1e-5))
			Expect(insufficient.Available).Should(BeNumerically("~", 20, 1e-5))

			// nothing was persisted or applied
			Expect(l.Version()).To(Equal(version))
			Expect(l.Transactions()).To(HaveLen(2))
			Expect(l.CurrentHoldings()[0].Shares).Should(BeNumerically("~", 20, 1e-5))
		})

		It("rejects a sell for a ticker that was never bought", func() {
			err := l.AddTransaction(ctx, mustTransaction(mar, "PRIDX", ledger.SellTransaction, 1, 50))

			var insufficient *ledger.InsufficientPositionError
			Expect(errors.As(err, &insufficient)).To(BeTrue())
			Expect(insufficient.Available).Should(BeNumerically("~", 0, 1e-5))
		})

		It("rejects a duplicate of an already recorded trade", func() {
			err := l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))
			Expect(err).To(MatchError(ledger.ErrDuplicateTransaction))
		})
	})

	Describe("replaying the log", func() {
		BeforeEach(func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VUSTX", ledger.BuyTransaction, 25, 11.5))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(feb, "VFINX", ledger.BuyTransaction, 10, 200))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 12, 250))).To(Succeed())
		})

		It("reproduces identical positions in a fresh ledger", func() {
			restored := ledger.New(store)
			Expect(restored.Load(ctx)).To(Succeed())

			Expect(restored.CurrentHoldings()).To(Equal(l.CurrentHoldings()))
			Expect(restored.HeldAsOf("VFINX", feb)).Should(BeNumerically("~", l.HeldAsOf("VFINX", feb), 1e-5))
			Expect(restored.Transactions()).To(HaveLen(4))
		})

		It("continues the sequence after a reload", func() {
			restored := ledger.New(store)
			Expect(restored.Load(ctx)).To(Succeed())
			Expect(restored.AddTransaction(ctx, mustTransaction(mar, "VUSTX", ledger.BuyTransaction, 5, 12))).To(Succeed())

			transactions := restored.Transactions()
			Expect(transactions[len(transactions)-1].SequenceNum).To(Equal(uint64(5)))
		})

		It("reports a log that does not replay cleanly", func() {
			orphan, err := ledger.NewTransaction(jan, "PRIDX", ledger.SellTransaction, 5, 70, "")
			Expect(err).To(BeNil())
			orphan.SequenceNum = 99
			Expect(store.Append(ctx, orphan)).To(Succeed())

			restored := ledger.New(store)
			Expect(restored.Load(ctx)).To(MatchError(ledger.ErrCorruptLog))
		})
	})

	Describe("removing transactions", func() {
		var sell *ledger.Transaction

		BeforeEach(func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 10, 100))).To(Succeed())
			sell = mustTransaction(feb, "VFINX", ledger.SellTransaction, 4, 150)
			Expect(l.AddTransaction(ctx, sell)).To(Succeed())
		})

		It("removes the most recent transaction for a ticker", func() {
			removed, err := l.RemoveTransaction(ctx, sell.ID)
			Expect(err).To(BeNil())
			Expect(removed.ID).To(Equal(sell.ID))

			holdings := l.CurrentHoldings()
			Expect(holdings).To(HaveLen(1))
			Expect(holdings[0].Shares).Should(BeNumerically("~", 10, 1e-5))
		})

		It("refuses to remove an entry with later activity on the same ticker", func() {
			buy := l.Transactions()[0]
			_, err := l.RemoveTransaction(ctx, buy.ID)

			var nonReversible *ledger.NonReversibleEditError
			Expect(errors.As(err, &nonReversible)).To(BeTrue())
			Expect(nonReversible.Ticker).To(Equal("VFINX"))
			Expect(l.Transactions()).To(HaveLen(2))
		})

		It("allows removal when later activity is on other tickers", func() {
			buy := mustTransaction(mar, "VUSTX", ledger.BuyTransaction, 5, 12)
			Expect(l.AddTransaction(ctx, buy)).To(Succeed())

			_, err := l.RemoveTransaction(ctx, sell.ID)
			Expect(err).To(BeNil())
			Expect(l.CurrentHoldings()).To(HaveLen(2))
		})

		It("reports an unknown transaction ID", func() {
			_, err := l.RemoveTransaction(ctx, []byte{0xde, 0xad, 0xbe, 0xef})
			Expect(err).To(MatchError(ledger.ErrTransactionNotFound))
		})

		It("lets the removed trade be recorded again", func() {
			_, err := l.RemoveTransaction(ctx, sell.ID)
			Expect(err).To(BeNil())
			Expect(l.AddTransaction(ctx, mustTransaction(feb, "VFINX", ledger.SellTransaction, 4, 150))).To(Succeed())
		})
	})

	Describe("querying history", func() {
		BeforeEach(func() {
			Expect(l.AddTransaction(ctx, mustTransaction(jan, "VFINX", ledger.BuyTransaction, 100, 100))).To(Succeed())
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 40, 150))).To(Succeed())
		})

		It("returns the shares held as of a date", func() {
			Expect(l.HeldAsOf("VFINX", jan.AddDate(0, 0, -7))).Should(BeNumerically("~", 0, 1e-5))
			Expect(l.HeldAsOf("VFINX", feb)).Should(BeNumerically("~", 100, 1e-5))
			Expect(l.HeldAsOf("VFINX", mar)).Should(BeNumerically("~", 60, 1e-5))
			Expect(l.HeldAsOf("vfinx", mar)).Should(BeNumerically("~", 60, 1e-5))
		})

		It("lists every ticker that ever traded", func() {
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VFINX", ledger.SellTransaction, 60, 150))).To(Succeed())
			Expect(l.CurrentHoldings()).To(BeEmpty())
			Expect(l.Tickers()).To(Equal([]string{"VFINX"}))
		})

		It("bumps the version on every mutation", func() {
			version := l.Version()
			Expect(l.AddTransaction(ctx, mustTransaction(mar, "VUSTX", ledger.BuyTransaction, 5, 12))).To(Succeed())
			Expect(l.Version()).To(Equal(version + 1))
		})
	})
})
