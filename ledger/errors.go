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
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEmptyTicker          = errors.New("ticker empty")
	ErrInvalidDate          = errors.New("transaction date not set")
	ErrInvalidShares        = errors.New("shares must be a positive number")
	ErrInvalidPrice         = errors.New("price per share must be a positive number")
	ErrUnknownKind          = errors.New("unknown transaction kind")
	ErrGenerateHash         = errors.New("could not create a new hash")
	ErrDuplicateTransaction = errors.New("an identical transaction is already recorded")
	ErrTransactionNotFound  = errors.New("could not find transaction ID in ledger")
	ErrCorruptLog           = errors.New("transaction log does not replay cleanly")
)

// InsufficientPositionError is returned when a sell would consume more shares
// than the ledger currently holds for the ticker
type InsufficientPositionError struct {
	Ticker    string
	Requested float64
	Available float64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("cannot sell %.5f shares of %s; only %.5f held", e.Requested, e.Ticker, e.Available)
}

// NonReversibleEditError is returned when removing a transaction would
// invalidate transactions recorded after it
type NonReversibleEditError struct {
	ID     []byte
	Ticker string
	Reason string
}

func (e *NonReversibleEditError) Error() string {
	id, err := uuid.FromBytes(e.ID)
	if err != nil {
		return fmt.Sprintf("cannot remove transaction for %s: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("cannot remove transaction %s for %s: %s", id.String(), e.Ticker, e.Reason)
}

// IsValidationError reports whether err describes malformed transaction input
// as opposed to a state conflict or a persistence failure
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyTicker) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidShares) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrUnknownKind)
}
