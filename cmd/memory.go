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
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/pseudotran/internal/translator"
)

var memoryDBPath string

func openMemory() (*translator.Memory, error) {
	mem, err := translator.NewMemory(memoryDBPath, &translator.MockTranslator{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return mem, nil
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the translation memory",
	Long:  `List, inspect, and clear the SQLite translation memory.`,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all translation memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openMemory()
		if err != nil {
			return err
		}
		defer mem.Close()

		entries, err := mem.List(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries in translation memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTARGET\tMODEL\tUSED\tLAST USED\tTEXT")
		for _, e := range entries {
			snippet := e.SourceText
			if len(snippet) > 40 {
				snippet = snippet[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				e.ID, e.TargetLang, e.Model, e.UsageCount,
				e.LastUsed.Format("2006-01-02 15:04"), snippet)
		}
		return w.Flush()
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openMemory()
		if err != nil {
			return err
		}
		defer mem.Close()

		n, err := mem.Entries(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		fmt.Printf("Total entries: %d\n", n)
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a translation memory entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openMemory()
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.Delete(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Printf("Deleted entry: %s\n", args[0])
		return nil
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all entries from translation memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openMemory()
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.Clear(context.Background()); err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Println("Translation memory cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryListCmd, memoryStatsCmd, memoryDeleteCmd, memoryClearCmd)

	memoryCmd.PersistentFlags().StringVar(&memoryDBPath, "db", "./data/pseudotran.db", "Database path for translation memory")
}
