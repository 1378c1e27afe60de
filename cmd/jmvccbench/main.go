// Command jmvccbench drives a concurrent counters workload against a
// jmvcc Runtime and reports throughput and conflict count.
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/umairsheikh/libjmvcc"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jmvccbench",
		Short: "jmvccbench exercises a jmvcc runtime under concurrent load",
	}

	rootCmd.AddCommand(newCountersCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCountersCommand() *cobra.Command {
	var workers int
	var incrementsPerWorker int

	cmd := &cobra.Command{
		Use:   "counters",
		Short: "run a fixed number of workers incrementing a shared counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounters(workers, incrementsPerWorker)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent workers")
	cmd.Flags().IntVar(&incrementsPerWorker, "increments", 10000, "increments performed by each worker")

	return cmd
}

func runCounters(workers, incrementsPerWorker int) error {
	rt := jmvcc.NewRuntime()
	counter := jmvcc.NewVersioned(0)

	var conflicts atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsPerWorker; j++ {
				for {
					tx := rt.Begin()
					cur := jmvcc.Read(tx, counter)
					jmvcc.Write(tx, counter, cur+1)
					if tx.Commit() {
						break
					}
					conflicts.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	final := rt.Begin()
	total := jmvcc.Read(final, counter)
	final.Rollback()

	expected := workers * incrementsPerWorker
	fmt.Printf("workers=%d increments_per_worker=%d final=%d expected=%d conflicts=%d elapsed=%s ops_per_sec=%.0f\n",
		workers, incrementsPerWorker, total, expected, conflicts.Load(), elapsed,
		float64(expected)/elapsed.Seconds())

	if total != expected {
		return fmt.Errorf("final counter value %d does not match expected %d", total, expected)
	}
	return nil
}
