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

package analytics

import (
	"embed"
	"fmt"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

//go:embed profiles/*.toml
var resources embed.FS

// Profile is a named bundle of risk engine settings. Profiles ship embedded
// in the binary and are selected by name at evaluation time.
type Profile struct {
	Name                   string  `toml:"name" json:"name"`
	Description            string  `toml:"description" json:"description"`
	LookbackDays           int     `toml:"lookback_days" json:"lookbackDays"`
	MinObservations        int     `toml:"min_observations" json:"minObservations"`
	WeightPolicy           string  `toml:"weight_policy" json:"weightPolicy"`
	ConcentrationThreshold float64 `toml:"concentration_threshold" json:"concentrationThreshold"`
}

// ProfileList List of all risk profiles
var ProfileList = []*Profile{}

// ProfileMap Map of risk profiles by name
var ProfileMap = make(map[string]*Profile)

var profileOnce sync.Once

// InitializeProfileMap loads the embedded risk profiles
func InitializeProfileMap() {
	profileOnce.Do(func() {
		registerProfile("conservative")
		registerProfile("balanced")
		registerProfile("aggressive")
	})
}

// ProfileNamed returns the profile with the given name
func ProfileNamed(name string) (*Profile, error) {
	InitializeProfileMap()
	if profile, ok := ProfileMap[strings.ToLower(name)]; ok {
		return profile, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ApplyProfile overrides the engine settings with those the profile sets
func (engine *RiskEngine) ApplyProfile(profile *Profile) {
	if profile.LookbackDays > 0 {
		engine.LookbackDays = profile.LookbackDays
	}
	if profile.MinObservations > 0 {
		engine.MinObservations = profile.MinObservations
	}
	if profile.WeightPolicy != "" {
		engine.WeightPolicy = WeightPolicy(profile.WeightPolicy)
	}
	if profile.ConcentrationThreshold > 0 {
		engine.ConcentrationThreshold = profile.ConcentrationThreshold
	}
}

func registerProfile(name string) {
	fn := fmt.Sprintf("profiles/%s.toml", name)
	subLog := log.With().Str("File", fn).Logger()

	file, err := resources.Open(fn)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to open file")
		return
	}
	defer file.Close()

	doc, err := ioutil.ReadAll(file)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to read file")
		return
	}

	profile := &Profile{}
	if err := toml.Unmarshal(doc, profile); err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to parse toml file")
		return
	}

	ProfileList = append(ProfileList, profile)
	ProfileMap[profile.Name] = profile
}
