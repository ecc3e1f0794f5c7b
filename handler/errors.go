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
	"errors"

	"github.com/penny-vault/portfolio-tracker/analytics"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/filter"
	"github.com/penny-vault/portfolio-tracker/ledger"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// httpError translates domain errors into http status codes. Client mistakes
// map to 4xx; upstream market data failures map to 502 so callers can tell
// them apart from faults in this service.
func httpError(err error) error {
	var insufficientPosition *ledger.InsufficientPositionError
	var nonReversibleEdit *ledger.NonReversibleEditError

	switch {
	case ledger.IsValidationError(err),
		errors.Is(err, portfolio.ErrInvalidTransactionID),
		errors.Is(err, data.ErrBeginAfterEnd),
		errors.Is(err, filter.ErrMalformedWhere),
		errors.Is(err, filter.ErrUnknownOperator),
		errors.Is(err, filter.ErrUnknownField):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, analytics.ErrProfileNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateTransaction),
		errors.As(err, &nonReversibleEdit):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.As(err, &insufficientPosition),
		errors.Is(err, analytics.ErrNoHoldings):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analytics.ErrInsufficientData),
		errors.Is(err, data.ErrDataUnavailable),
		errors.Is(err, data.ErrNotFound):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	log.Error().Stack().Err(err).Msg("unhandled error while serving request")
	return fiber.ErrInternalServerError
}
