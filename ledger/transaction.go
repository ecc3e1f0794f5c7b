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
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

const (
	SourceName = "PVT"
)

const (
	BuyTransaction  = "BUY"
	SellTransaction = "SELL"
)

// Transaction is a single entry in the append-only transaction log. The log is
// the source of truth for the ledger; positions and cost basis are always
// derived from it by replay.
type Transaction struct {
	ID            []byte    `json:"id"`
	SequenceNum   uint64    `json:"sequenceNum"`
	Date          time.Time `json:"date"`
	Ticker        string    `json:"ticker"`
	Kind          string    `json:"kind"`
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"pricePerShare"`
	TotalValue    float64   `json:"totalValue"`
	Memo          string    `json:"memo"`
	Source        string    `json:"source"`
	SourceID      string    `json:"sourceID"`
}

// NewTransaction builds a validated transaction for the given trade. Dates are
// truncated to midnight in the market timezone; tickers are uppercased.
func NewTransaction(date time.Time, ticker string, kind string, shares float64, pricePerShare float64, memo string) (*Transaction, error) {
	trxID, err := uuid.New().MarshalBinary()
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not marshal uuid to binary")
		return nil, err
	}

	nyc := common.GetTimezone()
	date = date.In(nyc)

	trx := &Transaction{
		ID:            trxID,
		Date:          time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, nyc),
		Ticker:        strings.ToUpper(strings.TrimSpace(ticker)),
		Kind:          kind,
		Shares:        shares,
		PricePerShare: pricePerShare,
		TotalValue:    shares * pricePerShare,
		Memo:          memo,
		Source:        SourceName,
	}

	if err := trx.Validate(); err != nil {
		return nil, err
	}

	if err := computeTransactionSourceID(trx); err != nil {
		log.Warn().Stack().Err(err).Time("TransactionDate", trx.Date).Str("TransactionTicker", trx.Ticker).Str("TransactionType", trx.Kind).Msg("couldn't compute SourceID for transaction")
		return nil, err
	}

	return trx, nil
}

// Validate checks the transaction fields for malformed input
func (t *Transaction) Validate() error {
	if t.Ticker == "" {
		return ErrEmptyTicker
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Kind != BuyTransaction && t.Kind != SellTransaction {
		return fmt.Errorf("%w: %s", ErrUnknownKind, t.Kind)
	}
	if t.Shares <= 0 {
		return fmt.Errorf("%w: %.5f", ErrInvalidShares, t.Shares)
	}
	if t.PricePerShare <= 0 {
		return fmt.Errorf("%w: %.5f", ErrInvalidPrice, t.PricePerShare)
	}
	return nil
}

// IDString returns the transaction ID formatted as a UUID
func (t *Transaction) IDString() string {
	id, err := uuid.FromBytes(t.ID)
	if err != nil {
		return hex.EncodeToString(t.ID)
	}
	return id.String()
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (t *Transaction) MarshalZerologObject(e *zerolog.Event) {
	e.Str("ID", t.IDString()).
		Uint64("SequenceNum", t.SequenceNum).
		Time("Date", t.Date).
		Str("Ticker", t.Ticker).
		Str("Kind", t.Kind).
		Float64("Shares", t.Shares).
		Float64("PricePerShare", t.PricePerShare).
		Float64("TotalValue", t.TotalValue).
		Str("Source", t.Source).
		Str("SourceID", t.SourceID)
}

// computeTransactionSourceID calculates a repeatable fingerprint over the
// transaction fields. Recording the same trade twice produces the same
// SourceID, which is what makes appends to the persistent log idempotent.
func computeTransactionSourceID(t *Transaction) error {
	h := blake3.New()

	// Date as UTC text (second precision)
	d, err := t.Date.UTC().MarshalText()
	if err != nil {
		return err
	}

	if _, err := h.Write(d); err != nil {
		log.Error().Stack().Err(err).Msg("could not write date to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Source)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write source to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Ticker)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write ticker to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Kind)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write kind to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.PricePerShare))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write price per share to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.Shares))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write shares to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.TotalValue))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write total value to blake3 hasher")
		return err
	}

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		return err
	}
	if n != 16 {
		return ErrGenerateHash
	}

	t.SourceID = hex.EncodeToString(buf)
	return nil
}
