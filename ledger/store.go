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
	"bytes"
	"context"
	"sync"
)

// Store persists the transaction log. Appends must be idempotent on SourceID
// so a retried write cannot duplicate a transaction.
type Store interface {
	LoadAll(ctx context.Context) ([]*Transaction, error)
	Append(ctx context.Context, trx *Transaction) error
	Remove(ctx context.Context, id []byte) error
}

// MemoryStore keeps the transaction log in process memory. It backs tests and
// ad-hoc use where no database is configured; state is lost on exit.
type MemoryStore struct {
	lock         sync.Mutex
	transactions []*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make([]*Transaction, 0, 16),
	}
}

func (store *MemoryStore) LoadAll(_ context.Context) ([]*Transaction, error) {
	store.lock.Lock()
	defer store.lock.Unlock()

	transactions := make([]*Transaction, 0, len(store.transactions))
	for _, trx := range store.transactions {
		dup := *trx
		transactions = append(transactions, &dup)
	}
	return transactions, nil
}

func (store *MemoryStore) Append(_ context.Context, trx *Transaction) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	for idx, existing := range store.transactions {
		if existing.SourceID == trx.SourceID {
			dup := *trx
			store.transactions[idx] = &dup
			return nil
		}
	}

	dup := *trx
	store.transactions = append(store.transactions, &dup)
	return nil
}

func (store *MemoryStore) Remove(_ context.Context, id []byte) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	for idx, trx := range store.transactions {
		if bytes.Equal(trx.ID, id) {
			store.transactions = append(store.transactions[:idx], store.transactions[idx+1:]...)
			return nil
		}
	}
	return ErrTransactionNotFound
}
