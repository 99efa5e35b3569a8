package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/doclens/doclens/internal/analytics"
	"github.com/spf13/cobra"
)

var (
	statsServer string
	statsJSON   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch aggregated session metrics from a running doclens server",
	Long: `Fetch the aggregated quality metrics of the session hosted by a
running doclens server and print them.

Examples:
  doclens stats
  doclens stats --server http://localhost:8000
  doclens stats --json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsServer, "server", "s", "", "server base URL (default from config)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	base := statsServer
	if base == "" {
		base = "http://" + cfg.ServerAddr
	}
	base = strings.TrimRight(base, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/stats", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch stats: server returned %s", resp.Status)
	}

	if statsJSON {
		_, err = os.Stdout.Write(append(body, '\n'))
		return err
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}

	printAggregatedStats(stats)
	return nil
}
