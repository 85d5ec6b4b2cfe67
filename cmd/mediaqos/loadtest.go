package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type loadTestOptions struct {
	baseURL     string
	uploads     int
	viewsPer    int
	concurrency int
	timeout     time.Duration
}

func newLoadTestCmd() *cobra.Command {
	opts := loadTestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Exercise a running API with upload-grant requests and view tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().IntVar(&opts.uploads, "uploads", 50, "Number of upload grants to request")
	cmd.Flags().IntVar(&opts.viewsPer, "views", 5, "View tracking calls per video")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "Concurrent requests")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	return cmd
}

type loadTestStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int
}

func (s *loadTestStats) record(d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return
	}
	s.latencies = append(s.latencies, d)
}

func (s *loadTestStats) report(out func(format string, args ...any), label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		out("%s: 0 ok, %d failed\n", label, s.failures)
		return
	}
	sorted := make([]time.Duration, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	avg := total / time.Duration(len(sorted))
	p95 := sorted[len(sorted)*95/100]
	out("%s: %d ok, %d failed, avg %s, p95 %s, max %s\n",
		label, len(sorted), s.failures, avg, p95, sorted[len(sorted)-1])
}

func runLoadTest(cmd *cobra.Command, opts loadTestOptions) error {
	ctx := cmd.Context()
	client := &http.Client{Timeout: opts.timeout}

	uploadStats := &loadTestStats{}
	var videoIDs []string
	var idMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i := 0; i < opts.uploads; i++ {
		i := i
		g.Go(func() error {
			body, _ := json.Marshal(map[string]string{
				"filename":    fmt.Sprintf("load-test-video-%d.mp4", i),
				"contentType": "video/mp4",
			})
			start := time.Now()
			req, err := http.NewRequestWithContext(gctx, http.MethodPost, opts.baseURL+"/upload", bytes.NewReader(body))
			if err != nil {
				uploadStats.record(0, err)
				return nil
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				uploadStats.record(0, err)
				return nil
			}
			defer resp.Body.Close()
			var parsed struct {
				Success bool   `json:"success"`
				VideoID string `json:"videoId"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || !parsed.Success {
				uploadStats.record(0, fmt.Errorf("upload %d: status %d", i, resp.StatusCode))
				return nil
			}
			uploadStats.record(time.Since(start), nil)
			idMu.Lock()
			videoIDs = append(videoIDs, parsed.VideoID)
			idMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	viewStats := &loadTestStats{}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for _, id := range videoIDs {
		id := id
		for v := 0; v < opts.viewsPer; v++ {
			g.Go(func() error {
				body, _ := json.Marshal(map[string]string{"videoId": id})
				start := time.Now()
				req, err := http.NewRequestWithContext(gctx, http.MethodPost, opts.baseURL+"/analytics/track", bytes.NewReader(body))
				if err != nil {
					viewStats.record(0, err)
					return nil
				}
				req.Header.Set("Content-Type", "application/json")
				resp, err := client.Do(req)
				if err != nil {
					viewStats.record(0, err)
					return nil
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					viewStats.record(0, fmt.Errorf("track: status %d", resp.StatusCode))
					return nil
				}
				viewStats.record(time.Since(start), nil)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	uploadStats.report(cmd.Printf, "upload grants")
	viewStats.report(cmd.Printf, "view tracking")
	return nil
}
