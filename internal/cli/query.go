package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basalytics/basalytics/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query FROM TO [FILTER]",
	Short: "Count events in a date window",
	Long: `Count events whose date lies in [FROM, TO] (both inclusive, RFC 3339)
and which satisfy the optional FILTER, a JSON boolean expression:

  {"filter": {"name": "browser", "eq": "Chrome"}}
  {"and": [{"filter": {"name": "plan", "eq": "pro"}},
           {"or": [{"filter": {"name": "seats", "eq": 5}},
                   {"filter": {"name": "trial", "eq": true}}]}]}

Without FILTER every event in the window is counted.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := query.Request{FromDate: args[0], ToDate: args[1], Filter: query.And()}
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &req.Filter); err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
		}
		params, err := req.Params()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		count, err := st.CountEvents(ctx, params)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Println(count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
