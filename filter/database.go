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

package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/rs/zerolog/log"
)

// BuildQuery constructs a select statement over from. Plain fields are
// sanitized; safeFields are trusted expressions and pass through untouched.
// Each where clause takes the form [OP].[value], e.g. gte.2021-01-01, and its
// value is bound as a query argument.
func BuildQuery(from string, fields []string, safeFields []string, where map[string]string, order string) (string, []interface{}, error) {
	if from == "" {
		return "", nil, ErrEmptyFrom
	}

	stmt := &pgsql.SelectStatement{}
	for _, ff := range fields {
		stmt.Select(pgx.Identifier{ff}.Sanitize())
	}

	for _, ff := range safeFields {
		stmt.Select(ff)
	}

	stmt.From(pgx.Identifier{from}.Sanitize())

	for k, v := range where {
		p := strings.SplitN(v, ".", 2)
		if len(p) != 2 {
			return "", nil, ErrMalformedWhere
		}
		op, val := p[0], p[1]
		k = pgx.Identifier{k}.Sanitize()
		switch op {
		case "eq":
			stmt.Where(fmt.Sprintf("%s = ?", k), val)
		case "gt":
			stmt.Where(fmt.Sprintf("%s > ?", k), val)
		case "gte":
			stmt.Where(fmt.Sprintf("%s >= ?", k), val)
		case "lt":
			stmt.Where(fmt.Sprintf("%s < ?", k), val)
		case "lte":
			stmt.Where(fmt.Sprintf("%s <= ?", k), val)
		case "neq":
			stmt.Where(fmt.Sprintf("%s <> ?", k), val)
		case "like":
			stmt.Where(fmt.Sprintf("%s like ?", k), val)
		case "ilike":
			stmt.Where(fmt.Sprintf("%s ilike ?", k), val)
		case "in":
			stmt.Where(fmt.Sprintf("%s in ?", k), val)
		case "is":
			stmt.Where(fmt.Sprintf("%s is ?", k), val)
		case "not":
			stmt.Where(fmt.Sprintf("%s not ?", k), val)
		default:
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
		}
	}

	if order != "" {
		stmt.Order(order)
	}

	sql, args := pgsql.Build(stmt)
	return sql, args, nil
}

// Transactions returns the filtered transaction log as a json document. Keys
// of where and the order field use the client field names from
// TransactionFields; unknown names are rejected.
func Transactions(ctx context.Context, where map[string]string, orderField string, descending bool) ([]byte, error) {
	fields := []string{
		"sequence_num",
		"event_date",
		"ticker",
		"transaction_type",
		"num_shares",
		"price_per_share",
		"total_value",
		"memo",
		"source",
	}
	safeFields := []string{
		"id::text AS id",
		"encode(source_id, 'hex') AS source_id",
	}

	translated := make(map[string]string, len(where))
	for field, clause := range where {
		column, ok := TransactionFields[field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		translated[column] = clause
	}

	order := "sequence_num"
	if orderField != "" {
		column, ok := TransactionFields[orderField]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, orderField)
		}
		order = column
	}
	if descending {
		order += " DESC"
	}

	sql, args, err := BuildQuery("transactions", fields, safeFields, translated, order)
	if err != nil {
		log.Warn().Err(err).Msg("could not build transaction query")
		return nil, err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin database transaction")
		return nil, err
	}

	var doc pgtype.Text
	err = trx.QueryRow(ctx, fmt.Sprintf(`select array_to_json(array_agg(row_to_json(tbl))) as res
    from (
		%s
    ) tbl
	`, sql), args...).Scan(&doc)
	if err != nil {
		log.Warn().Err(err).Str("Query", sql).Msg("transaction query failed")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	// no matching rows aggregate to a sql null
	if doc.Status != pgtype.Present {
		return []byte("[]"), nil
	}

	return []byte(doc.String), nil
}
