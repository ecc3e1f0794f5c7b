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

var riskLookbackDays int
var riskFreeRate float64
var riskProfile string

func init() {
	riskCmd.Flags().IntVar(&riskLookbackDays, "lookback-days", 0, "Calendar days of history to evaluate (default from config)")
	riskCmd.Flags().Float64Var(&riskFreeRate, "risk-free-rate", -1, "Annual risk free rate as a fraction; negative fetches the current 3-month treasury rate")
	riskCmd.Flags().StringVar(&riskProfile, "profile", "", "Risk profile to evaluate with (conservative, balanced, aggressive)")
	rootCmd.AddCommand(riskCmd)
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Compute risk statistics for the current holdings",
	Long:  `Compute volatility, expected return, sharpe ratio, and pairwise correlations for the current holdings`,
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

		snapshot, err := model.RiskSnapshot(ctx, riskLookbackDays, riskFreeRate, riskProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute risk snapshot")
		}

		fmt.Println(snapshot.Table())
		fmt.Println(snapshot.CorrelationTable())
	},
}
