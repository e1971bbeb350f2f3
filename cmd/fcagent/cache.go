package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type cacheSettings struct {
	DefaultTTL             int64  `json:"defaultTTL"`
	PreviewSize            int    `json:"previewSize"`
	LargeResponseThreshold int    `json:"largeResponseThreshold"`
	IDPrefix               string `json:"idPrefix"`
	CleanupInterval        int64  `json:"cleanupInterval"`
}

type cacheStats struct {
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	TotalEntries   int64         `json:"totalEntries"`
	TotalBytes     int64         `json:"totalBytes"`
	ActiveEntries  int           `json:"activeEntries"`
	ExpiredEntries int           `json:"expiredEntries"`
	HitRatio       float64       `json:"hitRatio"`
	Config         cacheSettings `json:"config"`
}

type cacheKey struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	ExpiresAt     int64  `json:"expiresAt"`
	TimeRemaining int64  `json:"timeRemaining"`
	Size          int    `json:"size"`
}

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }

func newCacheCmd() *cobra.Command {
	var server, token, apiKey string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache of a running server",
	}
	client := func() *adminClient { return newAdminClient(server, token, apiKey) }

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Stats cacheStats `json:"stats"`
			}
			if err := client().do(context.Background(), http.MethodGet, "/api/cache/stats", nil, &out); err != nil {
				return err
			}
			printStats(out.Stats)
			return nil
		},
	}

	var all bool
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Keys []cacheKey `json:"keys"`
			}
			path := fmt.Sprintf("/api/cache/keys?activeOnly=%t", !all)
			if err := client().do(context.Background(), http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			if len(out.Keys) == 0 {
				fmt.Println("No cache entries.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSIZE\tEXPIRES\tREMAINING")
			for _, k := range out.Keys {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					k.ID, k.Type, k.Size,
					time.UnixMilli(k.ExpiresAt).Format("2006-01-02T15:04:05"),
					ms(k.TimeRemaining).Round(time.Second))
			}
			return w.Flush()
		},
	}
	keysCmd.Flags().BoolVar(&all, "all", false, "include expired entries awaiting cleanup")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				RemovedCount int `json:"removedCount"`
			}
			if err := client().do(context.Background(), http.MethodPost, "/api/cache/cleanup", nil, &out); err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries.\n", out.RemovedCount)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a cached response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Response string `json:"response"`
			}
			if err := client().do(context.Background(), http.MethodGet, "/api/response/"+url.PathEscape(args[0]), nil, &out); err != nil {
				return err
			}
			fmt.Println(out.Response)
			return nil
		},
	}

	var renewTTL time.Duration
	renewCmd := &cobra.Command{
		Use:   "renew <id>",
		Short: "Extend the lifetime of a cached response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if renewTTL > 0 {
				body["ttl"] = renewTTL.Milliseconds()
			}
			var out struct {
				ExpiresAt int64 `json:"expiresAt"`
			}
			if err := client().do(context.Background(), http.MethodPost, "/api/response/renew/"+url.PathEscape(args[0]), body, &out); err != nil {
				return err
			}
			fmt.Printf("Renewed %s until %s\n", args[0], time.UnixMilli(out.ExpiresAt).Format(time.RFC3339))
			return nil
		},
	}
	renewCmd.Flags().DurationVar(&renewTTL, "ttl", 0, "new lifetime (default: server default TTL)")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().do(context.Background(), http.MethodDelete, "/api/cache/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:3001", "fcagent server URL")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("FCAGENT_TOKEN"), "bearer token (see 'fcagent token')")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("FCAGENT_API_KEY"), "API key")
	cmd.AddCommand(statsCmd, keysCmd, cleanupCmd, getCmd, renewCmd, deleteCmd, newCacheConfigureCmd(client))
	return cmd
}

func newCacheConfigureCmd(client func() *adminClient) *cobra.Command {
	var (
		defaultTTL      time.Duration
		previewSize     int
		threshold       int
		idPrefix        string
		cleanupInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Change cache settings at runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("default-ttl") {
				patch["defaultTTL"] = defaultTTL.Milliseconds()
			}
			if flags.Changed("preview-size") {
				patch["previewSize"] = previewSize
			}
			if flags.Changed("threshold") {
				patch["largeResponseThreshold"] = threshold
			}
			if flags.Changed("id-prefix") {
				patch["idPrefix"] = idPrefix
			}
			if flags.Changed("cleanup-interval") {
				patch["cleanupInterval"] = cleanupInterval.Milliseconds()
			}
			if len(patch) == 0 {
				return fmt.Errorf("no settings given")
			}

			var out struct {
				Config cacheSettings `json:"config"`
			}
			if err := client().do(context.Background(), http.MethodPost, "/api/cache/configure", map[string]any{"config": patch}, &out); err != nil {
				return err
			}
			printSettings(os.Stdout, out.Config)
			return nil
		},
	}

	cmd.Flags().DurationVar(&defaultTTL, "default-ttl", 0, "default entry lifetime")
	cmd.Flags().IntVar(&previewSize, "preview-size", 0, "preview length in characters")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "large response threshold in characters")
	cmd.Flags().StringVar(&idPrefix, "id-prefix", "", "prefix for generated IDs")
	cmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", 0, "periodic cleanup interval")
	return cmd
}

func printStats(s cacheStats) {
	fmt.Printf("Entries:   %d (%d active, %d expired)\n", s.TotalEntries, s.ActiveEntries, s.ExpiredEntries)
	fmt.Printf("Bytes:     %d\n", s.TotalBytes)
	fmt.Printf("Hits:      %d\nMisses:    %d\nHit ratio: %.2f\n", s.Hits, s.Misses, s.HitRatio)
	printSettings(os.Stdout, s.Config)
}

func printSettings(f io.Writer, c cacheSettings) {
	fmt.Fprintf(f, "Default TTL:      %s\n", ms(c.DefaultTTL))
	fmt.Fprintf(f, "Preview size:     %d\n", c.PreviewSize)
	fmt.Fprintf(f, "Large threshold:  %d\n", c.LargeResponseThreshold)
	fmt.Fprintf(f, "ID prefix:        %s\n", c.IDPrefix)
	fmt.Fprintf(f, "Cleanup interval: %s\n", ms(c.CleanupInterval))
}
