package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"document retrieval",
	"search engine",
	"ranking",
	"term frequency",
	"inverse document frequency",
	"cosine similarity",
	`"machine learning"`,
	"keyword extraction",
	"text processing",
	"query",
}

type loadOptions struct {
	url         string
	concurrency int
	duration    time.Duration
	limit       int
	method      string
	queries     []string
}

func newLoadtestCmd() *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Replay search queries against a running server",
		Long: `Send search requests from concurrent workers to a running 'docvista serve'
for a fixed duration and report throughput, latency percentiles and status codes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.concurrency <= 0 {
				return errors.New("concurrency must be positive")
			}
			if len(opts.queries) == 0 {
				opts.queries = defaultLoadQueries
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target %s, %d workers for %s, %d queries\n\n",
				opts.url, opts.concurrency, opts.duration, len(opts.queries))

			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        opts.concurrency * 2,
					MaxIdleConnsPerHost: opts.concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			}
			stats, err := runLoad(cmd.Context(), client, opts)
			if err != nil {
				return err
			}
			stats.report(out, stylesFor(out))
			if stats.total == 0 {
				return errors.New("no requests completed; is the server running?")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080", "Base URL of the search server")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "Number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Second, "Test duration")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Results requested per query")
	cmd.Flags().StringVarP(&opts.method, "method", "m", "", "Ranking method sent with each query")
	cmd.Flags().StringArrayVarP(&opts.queries, "query", "q", nil, "Query to replay (repeatable)")

	return cmd
}

// loadStats accumulates the outcome of every request of a run.
type loadStats struct {
	mu        sync.Mutex
	total     int
	failed    int
	statuses  map[int]int
	latencies []time.Duration
	elapsed   time.Duration
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if err != nil {
		s.failed++
		return
	}
	if status < 200 || status >= 300 {
		s.failed++
	}
	s.statuses[status]++
	s.latencies = append(s.latencies, d)
}

// runLoad drives opts.concurrency workers until opts.duration elapses or
// ctx is cancelled. Request failures are counted, never returned.
func runLoad(ctx context.Context, client *http.Client, opts loadOptions) (*loadStats, error) {
	base, err := url.Parse(opts.url)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	base = base.JoinPath("/api/v1/search")

	stats := &loadStats{statuses: make(map[int]int)}
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				target := *base
				params := url.Values{}
				params.Set("q", opts.queries[i%len(opts.queries)])
				params.Set("limit", strconv.Itoa(opts.limit))
				if opts.method != "" {
					params.Set("method", opts.method)
				}
				target.RawQuery = params.Encode()

				status, d, err := fire(ctx, client, target.String())
				if ctx.Err() != nil {
					return nil
				}
				stats.record(d, status, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	stats.elapsed = time.Since(start)
	return stats, nil
}

func fire(ctx context.Context, client *http.Client, target string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func (s *loadStats) report(w io.Writer, st styles) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, st.Title.Render("Results"))
	fmt.Fprintf(w, "  Requests     %s\n", humanize.Comma(int64(s.total)))
	fmt.Fprintf(w, "  Failed       %s\n", humanize.Comma(int64(s.failed)))
	if s.total > 0 && s.elapsed > 0 {
		fmt.Fprintf(w, "  Error rate   %.2f%%\n", float64(s.failed)/float64(s.total)*100)
		fmt.Fprintf(w, "  Requests/sec %.2f\n", float64(s.total)/s.elapsed.Seconds())
	}

	if len(s.latencies) > 0 {
		sorted := append([]time.Duration(nil), s.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Title.Render("Latency"))
		fmt.Fprintf(w, "  min %s  avg %s  max %s\n", sorted[0], sum/time.Duration(len(sorted)), sorted[len(sorted)-1])
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "  p%-3g %s\n", p, percentile(sorted, p))
		}
	}

	if len(s.statuses) > 0 {
		codes := make([]int, 0, len(s.statuses))
		for code := range s.statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Title.Render("Status codes"))
		for _, code := range codes {
			fmt.Fprintf(w, "  %d  %s\n", code, st.Dim.Render(humanize.Comma(int64(s.statuses[code]))))
		}
	}
}

// percentile expects sorted ascending.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
