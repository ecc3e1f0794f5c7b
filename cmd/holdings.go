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
	rootCmd.AddCommand(holdingsCmd)
}

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "Display current holdings valued at their latest close",
	Run: func(_ *cobra.Command, _ []string) {
		common.SetupLogging()
		common.SetupCache()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		model := portfolio.GetModelInstance()
		if err := model.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		report := model.CurrentHoldings(ctx)
		fmt.Println(report.Table())
	},
}
