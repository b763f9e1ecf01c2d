/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/valpere/pseudotran/internal/assemble"
	"github.com/valpere/pseudotran/internal/stream"
	"github.com/valpere/pseudotran/internal/translator"
)

// loadStreamConfig merges the "streaming" config section over the defaults.
func loadStreamConfig() stream.Config {
	cfg := stream.DefaultConfig()
	if sub := viper.Sub("streaming"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			log.Warn("invalid streaming config, using defaults", "error", err)
			cfg = stream.DefaultConfig()
		}
	}
	return cfg
}

// loadAssembleConfig merges the "assembly" config section over the defaults.
func loadAssembleConfig() assemble.Config {
	cfg := assemble.DefaultConfig()
	if sub := viper.Sub("assembly"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			log.Warn("invalid assembly config, using defaults", "error", err)
			cfg = assemble.DefaultConfig()
		}
	}
	return cfg
}

// buildTranslator constructs the translator chain from CLI parameters: the
// Ollama backend (or the deterministic mock), optionally wrapped in the
// sqlite translation memory. The returned closer releases the memory store.
func buildTranslator(useMock bool, ollamaURL, model, dbPath string, noMemory bool) (translator.Translator, func(), error) {
	var inner translator.Translator
	if useMock {
		inner = &translator.MockTranslator{}
	} else {
		inner = translator.NewOllamaTranslator(ollamaURL, model)
	}

	if noMemory || dbPath == "" {
		return inner, func() {}, nil
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	mem, err := translator.NewMemory(dbPath, inner)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open translation memory: %w", err)
	}
	return mem, func() { _ = mem.Close() }, nil
}
