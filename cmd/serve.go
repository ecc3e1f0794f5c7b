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
	"os"
	"os/signal"
	"runtime/pprof"
	"runtime/trace"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/penny-vault/portfolio-tracker/middleware"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/penny-vault/portfolio-tracker/portfolio"
	"github.com/penny-vault/portfolio-tracker/router"

	"github.com/go-co-op/gocron"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	bindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	if err := viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		log.Panic().Err(err).Msg("could not bind server.port")
	}

	viper.SetDefault("server.allowed_origins", "http://localhost:8080")

	// warm market data caches before the market opens, New York time
	viper.SetDefault("server.warm_schedule", "0 7 * * *")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pvtracker server",
	Long:  `Run HTTP server that implements the portfolio tracker API`,
	Run: func(_ *cobra.Command, _ []string) {
		if Profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile.out")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start CPU profile")
			}
			defer pprof.StopCPUProfile()
		}

		if Trace {
			f, err := os.Create("trace.out")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create trace output file")
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.Fatal().Err(err).Msg("failed to close trace file")
				}
			}()

			if err := trace.Start(f); err != nil {
				log.Fatal().Err(err).Msg("failed to start trace")
			}
			defer trace.Stop()
		}

		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		ctx := context.Background()

		var otelShutdown func(context.Context) error
		if viper.GetString("otlp.endpoint") != "" {
			var err error
			otelShutdown, err = opentelemetry.Setup()
			if err != nil {
				log.Error().Err(err).Msg("could not setup opentelemetry tracing")
			}
		}

		// setup database
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		// replay the transaction log
		model := portfolio.GetModelInstance()
		if err := model.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}
		log.Info().Msg("initialized portfolio ledger")

		go model.WarmCaches(ctx)

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		go func() {
			sig := <-quit // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("could not shutdown server")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.allowed_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app)

		// refresh market data caches on a schedule so requests don't block on
		// the data provider
		warmSchedule := viper.GetString("server.warm_schedule")
		if _, err := cron.ParseStandard(warmSchedule); err != nil {
			log.Fatal().Err(err).Str("Schedule", warmSchedule).Msg("server.warm_schedule is not a valid cron expression")
		}

		scheduler := gocron.NewScheduler(common.GetTimezone())
		if _, err := scheduler.Cron(warmSchedule).Do(func() {
			model.WarmCaches(context.Background())
		}); err != nil {
			log.Error().Err(err).Msg("could not schedule cache warming")
		}
		scheduler.StartAsync()

		// Start server on http://localhost:${port}
		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Err(err).Msg("server exited with error")
		}

		scheduler.Stop()
		if otelShutdown != nil {
			if err := otelShutdown(ctx); err != nil {
				log.Error().Err(err).Msg("could not shutdown opentelemetry tracing")
			}
		}
	},
}
