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

package database

import (
	"context"

	"github.com/jackc/pgtype"
	"github.com/penny-vault/portfolio-tracker/ledger"
	"github.com/rs/zerolog/log"
)

// TransactionStore persists the transaction log to the transactions table.
// Appends are keyed on source_id so a retried write updates the existing row
// instead of inserting a duplicate.
type TransactionStore struct{}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{}
}

// LoadAll reads the complete transaction log in sequence order
func (store *TransactionStore) LoadAll(ctx context.Context) ([]*ledger.Transaction, error) {
	trx, err := Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin database transaction")
		return nil, err
	}

	transactionSQL := `SELECT
		id,
		sequence_num,
		event_date,
		ticker,
		transaction_type,
		num_shares::double precision,
		price_per_share::double precision,
		total_value::double precision,
		memo,
		source,
		encode(source_id, 'hex')
	FROM transactions
	ORDER BY sequence_num`
	rows, err := trx.Query(ctx, transactionSQL)
	if err != nil {
		log.Error().Stack().Err(err).Str("Query", transactionSQL).Msg("could not load transactions from database")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	transactions := make([]*ledger.Transaction, 0, 1000)
	for rows.Next() {
		t := ledger.Transaction{}

		var sequenceNum int64
		var memo pgtype.Text
		var source pgtype.Text
		var sourceID pgtype.Text

		err := rows.Scan(&t.ID, &sequenceNum, &t.Date, &t.Ticker, &t.Kind,
			&t.Shares, &t.PricePerShare, &t.TotalValue, &memo, &source, &sourceID)
		if err != nil {
			log.Warn().Stack().Err(err).Str("Query", transactionSQL).Msg("failed scanning row into transaction fields")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		t.SequenceNum = uint64(sequenceNum)
		if memo.Status == pgtype.Present {
			t.Memo = memo.String
		}
		if source.Status == pgtype.Present {
			t.Source = source.String
		}
		if sourceID.Status == pgtype.Present {
			t.SourceID = sourceID.String
		}

		transactions = append(transactions, &t)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	return transactions, nil
}

// Append writes a single transaction; re-writing a transaction with the same
// source fingerprint updates the stored row
func (store *TransactionStore) Append(ctx context.Context, t *ledger.Transaction) error {
	trx, err := Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin database transaction")
		return err
	}

	transactionSQL := `INSERT INTO transactions (
		"id",
		"sequence_num",
		"event_date",
		"ticker",
		"transaction_type",
		"num_shares",
		"price_per_share",
		"total_value",
		"memo",
		"source",
		"source_id"
	) VALUES (
		$1,
		$2,
		$3,
		$4,
		$5,
		$6,
		$7,
		$8,
		$9,
		$10,
		decode($11, 'hex')
	) ON CONFLICT ON CONSTRAINT transactions_source_id_key
	DO UPDATE SET
		sequence_num=$2,
		event_date=$3,
		ticker=$4,
		transaction_type=$5,
		num_shares=$6,
		price_per_share=$7,
		total_value=$8,
		memo=$9,
		source=$10`

	_, err = trx.Exec(ctx, transactionSQL,
		t.ID,            // 1
		t.SequenceNum,   // 2
		t.Date,          // 3
		t.Ticker,        // 4
		t.Kind,          // 5
		t.Shares,        // 6
		t.PricePerShare, // 7
		t.TotalValue,    // 8
		t.Memo,          // 9
		t.Source,        // 10
		t.SourceID,      // 11
	)
	if err != nil {
		log.Error().Stack().Err(err).Object("Transaction", t).Str("Query", transactionSQL).Msg("failed to save transaction")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	return nil
}

// Remove deletes the transaction with the given ID from the log
func (store *TransactionStore) Remove(ctx context.Context, id []byte) error {
	trx, err := Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin database transaction")
		return err
	}

	deleteSQL := `DELETE FROM transactions WHERE id=$1`
	tag, err := trx.Exec(ctx, deleteSQL, id)
	if err != nil {
		log.Error().Stack().Err(err).Str("Query", deleteSQL).Msg("failed to delete transaction")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if tag.RowsAffected() == 0 {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return ledger.ErrTransactionNotFound
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	return nil
}
