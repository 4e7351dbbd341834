package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/viant/mediasnap/engine"
	"github.com/viant/mediasnap/internal/config"
	"github.com/viant/mediasnap/internal/logger"
	"github.com/viant/mediasnap/mediaid"
	"github.com/viant/mediasnap/mediasync"
	"github.com/viant/mediasnap/snapshot"
)

// app carries what every subcommand opens.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *sql.DB
	store *snapshot.SQLiteStore
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	engine.RegisterMediaFunctions()
	db, err := engine.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	store, err := snapshot.NewSQLiteStore(db,
		snapshot.WithLogger(log),
		snapshot.WithStageBatchSize(cfg.StageBatchSize))
	if err != nil {
		_ = db.Close()
		return err
	}
	a.cfg, a.log, a.db, a.store = cfg, log, db, store
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mediasnap",
		Short: "Generational media inventory snapshots",
		Long: `mediasnap keeps a versioned snapshot of locally retained media and
reconciles it against what the remote backend reports.

Configuration is read from MEDIASNAP_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().String("db", "", "SQLite database path (overrides MEDIASNAP_DB_PATH)")

	root.AddCommand(
		newStatsCommand(a),
		newVersionCommand(a),
		newCollectCommand(a),
		newStaleCommand(a),
		newSyncCommand(a),
		newVerifyCommand(a),
		newServeMetricsCommand(a),
	)
	return root
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot statistics and the last sync cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}
			history, err := mediasync.NewHistory(ctx, a.db)
			if err != nil {
				return err
			}
			last, err := history.Last(ctx)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), st, last)
		},
	}
}

func printStats(w io.Writer, st snapshot.Stats, last *mediasync.CycleState) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%d\n", st.Version)
	fmt.Fprintf(tw, "pending\t%d\n", st.Pending)
	fmt.Fprintf(tw, "current\t%d\n", st.Current)
	fmt.Fprintf(tw, "current full size\t%d\n", st.CurrentFullSize)
	fmt.Fprintf(tw, "current thumbnails\t%d\n", st.CurrentThumbnails)
	fmt.Fprintf(tw, "superseded\t%d\n", st.Superseded)
	fmt.Fprintf(tw, "total\t%d\n", st.Total)
	if last != nil {
		fmt.Fprintf(tw, "last cycle\t%s (version %d, %s)\n", last.RunID, last.Version, last.FinishedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(tw, "last cycle drift\t%d cdn mismatches, %d not found, %d stale\n", last.CdnMismatches, last.NotFound, last.Stale)
	}
	return tw.Flush()
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current snapshot version (0 when nothing was committed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.store.CurrentSnapshotVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newCollectCommand(a *app) *cobra.Command {
	var pageSize int
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Delete superseded snapshot rows without touching the remote backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageSize <= 0 {
				pageSize = a.cfg.CollectPageSize
			}
			n, err := collectLocal(cmd.Context(), a.store, pageSize)
			if err != nil {
				return err
			}
			a.log.Info().Int("collected", n).Msg("collection finished")
			fmt.Fprintf(cmd.OutOrStdout(), "collected %d rows\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per collection page (defaults to MEDIASNAP_COLLECT_PAGE_SIZE)")
	return cmd
}

// collectLocal drains superseded rows page by page.
func collectLocal(ctx context.Context, store snapshot.Store, pageSize int) (int, error) {
	total := 0
	for {
		page, err := store.PageOfOldMediaObjects(ctx, pageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}
		if err := store.DeleteOldMediaObjects(ctx, page); err != nil {
			return total, err
		}
		total += len(page)
	}
}

func newStaleCommand(a *app) *cobra.Command {
	var versions int64
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List current media not confirmed by the remote listing recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if versions <= 0 {
				versions = a.cfg.StaleAfterVersions
			}
			current, err := a.store.CurrentSnapshotVersion(ctx)
			if err != nil {
				return err
			}
			if current == snapshot.UnknownVersion {
				return nil
			}
			candidates, err := a.store.MediaObjectsLastSeenOnCdnBefore(ctx, current)
			if err != nil {
				return err
			}
			history, err := mediasync.NewHistory(ctx, a.db)
			if err != nil {
				return err
			}
			stale, err := history.Unconfirmed(ctx, candidates, current, versions)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MEDIA ID\tCDN\tTHUMBNAIL\tLAST SEEN")
			for _, e := range stale {
				fmt.Fprintf(tw, "%s\t%d\t%t\t%d\n", e.MediaID, e.Cdn, e.IsThumbnail, e.LastSeenVersion)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&versions, "versions", 0, "versions without confirmation (defaults to MEDIASNAP_STALE_AFTER_VERSIONS)")
	return cmd
}

func newSyncCommand(a *app) *cobra.Command {
	var (
		localPath   string
		remotePath  string
		orphansPath string
		keyHex      string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle from local and remote inventory manifests",
		Long: `Run one sync cycle. The local manifest is a JSON array of
{"media_id", "cdn", "plaintext_hash", "remote_key", "thumbnail"} objects with
hex encoded hashes and keys; media ids are derived from --key when omitted.
The remote manifest is a JSON array of {"media_id", "cdn"} objects.
Orphaned remote objects are appended to --orphans as JSON lines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var deriver *mediaid.Deriver
			if keyHex != "" {
				key, err := hex.DecodeString(keyHex)
				if err != nil {
					return fmt.Errorf("decode --key: %w", err)
				}
				if deriver, err = mediaid.NewDeriver(key); err != nil {
					return err
				}
			}
			history, err := mediasync.NewHistory(ctx, a.db)
			if err != nil {
				return err
			}
			opts := []mediasync.Option{
				mediasync.WithConfig(mediasync.Config{
					StageBatchSize:     a.cfg.StageBatchSize,
					CollectPageSize:    a.cfg.CollectPageSize,
					StaleAfterVersions: a.cfg.StaleAfterVersions,
					DeleteRemote:       a.cfg.DeleteRemote,
				}),
				mediasync.WithHistory(history),
				mediasync.WithLogger(a.log),
			}
			if orphansPath != "" {
				opts = append(opts, mediasync.WithRemoteDeleter(orphanFile(orphansPath)))
			}
			syncer, err := mediasync.New(a.store, localManifest{path: localPath, deriver: deriver}, remoteManifest(remotePath), opts...)
			if err != nil {
				return err
			}
			stopMetrics := a.serveMetricsInBackground()
			defer stopMetrics()

			report, err := syncer.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: version %d, staged %d, cdn mismatches %d, not found %d, collected %d, stale %d\n",
				report.RunID, report.Version, report.Staged, len(report.CdnMismatches), len(report.NotFound), report.Collected, len(report.Stale))
			return nil
		},
	}
	cmd.Flags().StringVar(&localPath, "local", "", "local inventory manifest (JSON)")
	cmd.Flags().StringVar(&remotePath, "remote", "", "remote listing manifest (JSON)")
	cmd.Flags().StringVar(&orphansPath, "orphans", "", "file receiving orphaned remote objects")
	cmd.Flags().StringVar(&keyHex, "key", "", "hex encoded backup key used to derive media ids")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("remote")
	return cmd
}

func newServeMetricsCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr == "" {
				return fmt.Errorf("metrics address is required (--addr or MEDIASNAP_METRICS_ADDR)")
			}
			srv := metricsServer(addr)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.log.Info().Str("addr", addr).Msg("serving metrics")

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to MEDIASNAP_METRICS_ADDR)")
	return cmd
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// serveMetricsInBackground exposes metrics while a command runs when
// MEDIASNAP_METRICS_ADDR is set. The returned func stops the server.
func (a *app) serveMetricsInBackground() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := metricsServer(a.cfg.MetricsAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func newVerifyCommand(a *app) *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report snapshot rows whose media id does not match the derived id",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hex.DecodeString(keyHex)
			if err != nil || len(key) == 0 {
				return fmt.Errorf("--key must be a non-empty hex string")
			}
			n, err := verifyMediaIDs(cmd.Context(), a.db, key, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d rows have unexpected media ids", n)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all media ids match")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "hex encoded backup key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// verifyMediaIDs recomputes ids with the media_id SQL function and writes
// every mismatching row to w.
func verifyMediaIDs(ctx context.Context, db *sql.DB, key []byte, w io.Writer) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT media_id, snapshot_version, media_id(?, plaintext_hash, remote_key, is_thumbnail)
FROM `+snapshot.TableName+`
WHERE media_id != media_id(?, plaintext_hash, remote_key, is_thumbnail)
ORDER BY id`, key, key)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var id, derived string
		var version int64
		if err := rows.Scan(&id, &version, &derived); err != nil {
			return n, err
		}
		fmt.Fprintf(w, "%s@%d: derived %s\n", id, version, derived)
		n++
	}
	return n, rows.Err()
}
