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

package cmd

import (
	"context"
	"fmt"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:   "remove <transactionID>",
	Short: "Remove a transaction from the transaction log",
	Long:  `Remove the identified transaction from the transaction log and rebuild positions without it`,
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		model := portfolio.GetModelInstance()
		if err := model.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		trx, err := model.RemoveTransaction(ctx, args[0])
		if err != nil {
			log.Fatal().Err(err).Str("TransactionID", args[0]).Msg("could not remove transaction")
		}

		fmt.Printf("removed transaction %s\n", trx.IDString())
	},
}
