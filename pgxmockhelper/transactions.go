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

package pgxmockhelper

import (
	"github.com/jackc/pgtype"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/portfolio-tracker/ledger"
)

// TransactionColumns returns the columns of the transactions table in the
// order the ledger store selects them
func TransactionColumns() []string {
	return []string{"id", "sequence_num", "event_date", "ticker", "transaction_type",
		"num_shares", "price_per_share", "total_value", "memo", "source", "source_id"}
}

// TransactionRows builds a mock result set holding the given transactions
func TransactionRows(transactions ...*ledger.Transaction) *pgxmock.Rows {
	rows := pgxmock.NewRows(TransactionColumns())
	for _, t := range transactions {
		rows.AddRow(
			t.ID,
			int64(t.SequenceNum),
			t.Date,
			t.Ticker,
			t.Kind,
			t.Shares,
			t.PricePerShare,
			t.TotalValue,
			pgtype.Text{String: t.Memo, Status: pgtype.Present},
			pgtype.Text{String: t.Source, Status: pgtype.Present},
			pgtype.Text{String: t.SourceID, Status: pgtype.Present},
		)
	}
	return rows
}

// MockLedgerLoad sets expectations for reading the complete transaction log
func MockLedgerLoad(db pgxmock.PgxConnIface, rows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT (.+) FROM transactions").WillReturnRows(rows)
	db.ExpectCommit()
}

// MockLedgerAppend sets expectations for persisting a single transaction
func MockLedgerAppend(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectExec("INSERT INTO transactions").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectCommit()
}

// MockLedgerRemove sets expectations for deleting a transaction; when found is
// false the delete matches no rows and the transaction rolls back
func MockLedgerRemove(db pgxmock.PgxConnIface, found bool) {
	db.ExpectBegin()
	if found {
		db.ExpectExec("DELETE FROM transactions").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		db.ExpectCommit()
	} else {
		db.ExpectExec("DELETE FROM transactions").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		db.ExpectRollback()
	}
}
