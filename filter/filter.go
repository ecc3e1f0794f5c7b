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

// Package filter builds constrained sql queries over the transaction log from
// client supplied filter expressions. Field names and operators are
// whitelisted and identifiers are sanitized; values are always bound as query
// arguments.
package filter

import "errors"

var (
	ErrEmptyFrom       = errors.New("from cannot be empty")
	ErrMalformedWhere  = errors.New("where clauses must take the form [OP].[value]")
	ErrUnknownOperator = errors.New("unrecognized operator")
	ErrUnknownField    = errors.New("field cannot be filtered")
)

// TransactionFields maps the query fields clients may filter or order by to
// their columns in the transactions table
var TransactionFields = map[string]string{
	"date":          "event_date",
	"kind":          "transaction_type",
	"memo":          "memo",
	"pricePerShare": "price_per_share",
	"sequenceNum":   "sequence_num",
	"shares":        "num_shares",
	"source":        "source",
	"ticker":        "ticker",
	"totalValue":    "total_value",
}
