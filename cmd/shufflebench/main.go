// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command shufflebench drives a sort-based shuffle repartitioner
// against a generated workload and reports whether the output holds
// the properties a shuffle run must: every row is preserved exactly
// once, every row lands in the partition its key hashes to, and the
// index file's offsets cover the data file with no gaps or overlaps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/SnellerInc/shuffle"
	"github.com/SnellerInc/shuffle/diskmgr"
	"github.com/SnellerInc/shuffle/memmgr"
	"github.com/SnellerInc/shuffle/spilltier"
)

var (
	dashv    bool
	dasho    string
	dashtemp string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.StringVar(&dasho, "o", ".", "output directory for data/index files")
	flag.StringVar(&dashtemp, "tmp", "", "parent directory for managed spill temp files (default: OS temp dir)")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func run(workloadPath string) error {
	w, err := loadWorkload(workloadPath)
	if err != nil {
		return err
	}

	var logger *log.Logger
	if dashv {
		logger = log.New(os.Stderr, "shufflebench: ", log.LstdFlags)
	}

	schema := buildSchema(w.Columns)
	dm, err := diskmgr.New(dashtemp)
	if err != nil {
		return fmt.Errorf("creating disk manager: %w", err)
	}
	defer dm.Close()

	mm := memmgr.New(w.MemoryLimitBytes)
	store := spilltier.NewOffheapSpillStore(w.L2BudgetBytes)

	dataPath := filepath.Join(dasho, "shuffle.data")
	indexPath := filepath.Join(dasho, "shuffle.index")

	r, err := shuffle.New(shuffle.Config{
		DataPath:      dataPath,
		IndexPath:     indexPath,
		Schema:        schema,
		NumPartitions: w.NumPartitions,
		Partitioner:   shuffle.KeyColumnPartitioner{KeyColumns: w.KeyColumns},
		BatchSize:     w.BatchSize,
		MemoryManager: mm,
		DiskManager:   dm,
		SpillStore:    store,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("constructing repartitioner: %w", err)
	}

	ctx := context.Background()
	gen := newRowGenerator(schema, w.Columns, w.Seed)

	inserted := 0
	batches := 0
	for inserted < w.Rows {
		n := w.BatchRows
		if remaining := w.Rows - inserted; n > remaining {
			n = remaining
		}
		if err := r.InsertBatch(ctx, gen.next(n)); err != nil {
			r.Close()
			return fmt.Errorf("insert_batch: %w", err)
		}
		inserted += n
		batches++

		if w.SpillEveryBatches > 0 && batches%w.SpillEveryBatches == 0 {
			freed, err := r.Spill(ctx)
			if err != nil {
				r.Close()
				return fmt.Errorf("spill: %w", err)
			}
			if dashv {
				log.Printf("shufflebench: explicit spill after %d batches freed %d bytes", batches, freed)
			}
		}
	}

	if err := r.ShuffleWrite(ctx); err != nil {
		return fmt.Errorf("shuffle_write: %w", err)
	}

	if dashv {
		log.Printf("shufflebench: %s", r)
	}

	return report(dataPath, indexPath, schema, w.KeyColumns, w.NumPartitions, w.Rows)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] [-o <dir>] <workload.yaml>\n", os.Args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err := run(args[0]); err != nil {
		exitf("shufflebench: %s\n", err)
	}
}
