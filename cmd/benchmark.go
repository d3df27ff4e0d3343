package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DuKro90/draftcraft/internal/model"
)

var (
	benchmarkBusiness string
	benchmarkAll      bool
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [project-type]",
	Short: "Compute benchmark statistics over historical calculations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		business := benchmarkBusiness
		if business == "" {
			business = cfg.Benchmark.DefaultBusinessID
		}
		if business == "" {
			return eris.New("a business id is required (--business or benchmark.default_business_id)")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var benchmarks []*model.Benchmark
		switch {
		case benchmarkAll:
			types, err := e.Store.ListProjectTypes(cmd.Context(), business)
			if err != nil {
				return err
			}

			benchmarks = make([]*model.Benchmark, len(types))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(4)
			var mu sync.Mutex
			for i, projectType := range types {
				g.Go(func() error {
					b, err := e.Benchmark.Benchmark(gctx, business, projectType)
					if err != nil {
						return err
					}
					mu.Lock()
					benchmarks[i] = b
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

		case len(args) == 1:
			b, err := e.Benchmark.Benchmark(cmd.Context(), business, args[0])
			if err != nil {
				return err
			}
			benchmarks = append(benchmarks, b)

		default:
			return eris.New("provide a project type or --all")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(benchmarks); err != nil {
			return eris.Wrap(err, "encode benchmarks")
		}
		return nil
	},
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchmarkBusiness, "business", "", "business id (default from config)")
	benchmarkCmd.Flags().BoolVar(&benchmarkAll, "all", false, "benchmark every project type with history")
	rootCmd.AddCommand(benchmarkCmd)
}
