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

package handler

import (
	"strconv"
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/filter"
	"github.com/penny-vault/portfolio-tracker/ledger"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type transactionParams struct {
	Date          string  `json:"date"`
	Ticker        string  `json:"ticker"`
	Kind          string  `json:"kind"`
	Shares        float64 `json:"shares"`
	PricePerShare float64 `json:"pricePerShare"`
	Memo          string  `json:"memo"`
}

// transactionResponse renders the transaction id as a uuid string instead of
// base64-encoded bytes
type transactionResponse struct {
	*ledger.Transaction
	ID string `json:"id"`
}

// ListTransactions returns the transaction log filtered by the query
// parameters, e.g. ?ticker=eq.VFINX&date=gte.2021-01-01&order=date&desc=true
func ListTransactions(c *fiber.Ctx) error {
	where := make(map[string]string)
	for field := range filter.TransactionFields {
		if clause := c.Query(field); clause != "" {
			where[field] = clause
		}
	}

	descending, err := strconv.ParseBool(c.Query("desc", "false"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "desc must be a boolean")
	}

	doc, err := filter.Transactions(c.Context(), where, c.Query("order"), descending)
	if err != nil {
		return httpError(err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(doc)
}

// CreateTransaction records a new trade in the ledger
func CreateTransaction(c *fiber.Ctx) error {
	params := transactionParams{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		log.Warn().Err(err).Msg("cannot parse create transaction request body")
		return fiber.ErrBadRequest
	}

	nyc := common.GetTimezone()
	date, err := time.ParseInLocation("2006-01-02", params.Date, nyc)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be formatted as 2006-01-02")
	}

	trx, err := portfolio.GetModelInstance().RecordTransaction(c.Context(), date, params.Ticker, params.Kind, params.Shares, params.PricePerShare, params.Memo)
	if err != nil {
		return httpError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(transactionResponse{
		Transaction: trx,
		ID:          trx.IDString(),
	})
}

// DeleteTransaction removes the identified transaction from the ledger and
// returns the removed transaction
func DeleteTransaction(c *fiber.Ctx) error {
	trx, err := portfolio.GetModelInstance().RemoveTransaction(c.Context(), c.Params("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(transactionResponse{
		Transaction: trx,
		ID:          trx.IDString(),
	})
}
