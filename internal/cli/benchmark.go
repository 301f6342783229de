package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/ingest"
	"github.com/basalytics/basalytics/internal/query"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Seed fake events and time queries against them",
	RunE: func(cmd *cobra.Command, args []string) error {
		insertCount, _ := cmd.Flags().GetInt("insert-count")
		queryCount, _ := cmd.Flags().GetInt("query-count")
		nameCount, _ := cmd.Flags().GetInt("name-count")

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		faker := gofakeit.New(0)
		names := make([]string, nameCount)
		for i := range names {
			names[i] = fmt.Sprintf("%s-%d", faker.Verb(), i)
		}

		svc := ingest.NewService(st)
		start := time.Now()
		for i := 0; i < insertCount; i++ {
			properties := map[string]event.Value{
				"browser":  event.String(faker.RandomString([]string{"Chrome", "Firefox", "Safari"})),
				"plan":     event.String(faker.RandomString([]string{"free", "pro", "team"})),
				"seats":    event.Integer(int64(faker.Number(1, 50))),
				"trial":    event.Boolean(faker.Bool()),
				"referrer": event.String(faker.DomainName()),
			}
			sessionID := faker.UUID()
			if err := svc.Ingest(ctx, names[rand.Intn(len(names))], properties, sessionID); err != nil {
				return fmt.Errorf("insert %d failed: %w", i, err)
			}
		}
		insertDuration := time.Since(start)
		fmt.Printf("Inserting %d events took %s\n", insertCount, insertDuration)

		from := start.Add(-time.Minute)
		to := time.Now().Add(time.Minute)
		start = time.Now()
		for i := 0; i < queryCount; i++ {
			params := query.Params{
				From:   from,
				To:     to,
				Filter: query.Leaf("name", event.String(names[rand.Intn(len(names))])),
			}
			if _, err := st.CountEvents(ctx, params); err != nil {
				return fmt.Errorf("query %d failed: %w", i, err)
			}
		}
		queryDuration := time.Since(start)
		fmt.Printf("Running %d queries took %s\n", queryCount, queryDuration)
		return nil
	},
}

func init() {
	benchmarkCmd.Flags().Int("insert-count", 1000, "events to insert")
	benchmarkCmd.Flags().Int("query-count", 100, "queries to run")
	benchmarkCmd.Flags().Int("name-count", 10, "distinct event names to spread inserts over")
	rootCmd.AddCommand(benchmarkCmd)
}
