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

package ledger

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// share quantities are compared at 1e-5 resolution; brokerages report
// fractional shares to 5 decimal places
const sharesEpsilon = 1e-5

// Lot is an open parcel of shares acquired by a single buy. A sell consumes
// lots oldest acquisition date first; a partially consumed lot keeps its
// original acquisition date and price.
type Lot struct {
	TransactionID []byte    `json:"transactionID"`
	Date          time.Time `json:"date"`
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"pricePerShare"`
}

// Position is the aggregate holding for a single ticker: total shares, the
// weighted average cost per share, and the open lots backing them
type Position struct {
	Ticker    string  `json:"ticker"`
	Shares    float64 `json:"shares"`
	CostBasis float64 `json:"costBasis"`
	Lots      []*Lot  `json:"lots"`
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (pos *Position) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", pos.Ticker).Float64("Shares", pos.Shares).Float64("CostBasis", pos.CostBasis).Int("NumLots", len(pos.Lots))
}

// Copy returns a deep copy of the position
func (pos *Position) Copy() *Position {
	lots := make([]*Lot, 0, len(pos.Lots))
	for _, lot := range pos.Lots {
		dup := *lot
		lots = append(lots, &dup)
	}
	return &Position{
		Ticker:    pos.Ticker,
		Shares:    pos.Shares,
		CostBasis: pos.CostBasis,
		Lots:      lots,
	}
}

// applyBuy opens a new lot for the buy. Lots are kept ordered by acquisition
// date so an out-of-order entry still lands in its FIFO slot.
func (pos *Position) applyBuy(trx *Transaction) {
	pos.Lots = append(pos.Lots, &Lot{
		TransactionID: trx.ID,
		Date:          trx.Date,
		Shares:        trx.Shares,
		PricePerShare: trx.PricePerShare,
	})

	sort.SliceStable(pos.Lots, func(i, j int) bool {
		return pos.Lots[i].Date.Before(pos.Lots[j].Date)
	})

	pos.recompute()
}

// applySell consumes open lots using the first-in, first-out method where the
// oldest shares acquired are sold first
func (pos *Position) applySell(trx *Transaction) error {
	if trx.Shares > pos.Shares+sharesEpsilon {
		return &InsufficientPositionError{
			Ticker:    pos.Ticker,
			Requested: trx.Shares,
			Available: pos.Shares,
		}
	}

	numSharesToFind := trx.Shares
	remainingLots := make([]*Lot, 0, len(pos.Lots))

	for idx, lot := range pos.Lots {
		numSharesToFind -= lot.Shares
		if numSharesToFind < 0 {
			sharesLeft := math.Abs(numSharesToFind)
			lot.Shares = sharesLeft
			if sharesLeft > sharesEpsilon {
				remainingLots = append(remainingLots, lot)
			}
		}

		// once all shares are linked with lots we are done
		if numSharesToFind <= 0 {
			if len(pos.Lots) > idx+1 {
				remainingLots = append(remainingLots, pos.Lots[idx+1:]...)
			}
			break
		}
	}

	// double check that all lots are applied
	if numSharesToFind >= sharesEpsilon {
		return &InsufficientPositionError{
			Ticker:    pos.Ticker,
			Requested: trx.Shares,
			Available: pos.Shares,
		}
	}

	pos.Lots = remainingLots
	pos.recompute()
	return nil
}

// recompute re-derives total shares and the weighted average cost basis from
// the open lots
func (pos *Position) recompute() {
	var shares float64
	var cost float64
	for _, lot := range pos.Lots {
		shares += lot.Shares
		cost += lot.Shares * lot.PricePerShare
	}

	pos.Shares = shares
	if shares > sharesEpsilon {
		pos.CostBasis = cost / shares
	} else {
		pos.CostBasis = 0
	}
}
