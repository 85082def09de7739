package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/api"
	"github.com/JakeFAU/ntsb-publisher/internal/assembler"
	"github.com/JakeFAU/ntsb-publisher/internal/clock/system"
	"github.com/JakeFAU/ntsb-publisher/internal/config"
	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/fetcher/avdata"
	"github.com/JakeFAU/ntsb-publisher/internal/ledger"
	"github.com/JakeFAU/ntsb-publisher/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/ntsb-publisher/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/ntsb-publisher/internal/publisher/pubsub"
	sourcepg "github.com/JakeFAU/ntsb-publisher/internal/source/postgres"
	"github.com/JakeFAU/ntsb-publisher/internal/storage"
	gcsstorage "github.com/JakeFAU/ntsb-publisher/internal/storage/gcs"
	localstorage "github.com/JakeFAU/ntsb-publisher/internal/storage/local"
	memorystorage "github.com/JakeFAU/ntsb-publisher/internal/storage/memory"
	runstorepg "github.com/JakeFAU/ntsb-publisher/internal/storage/postgres"
	"github.com/JakeFAU/ntsb-publisher/internal/store"
)

// closer releases a resource acquired during wiring.
type closer func() error

func nopCloser() error { return nil }

// openBlobStore builds the blob store holding the ledger and feed description.
func openBlobStore(ctx context.Context, cfg config.LedgerConfig) (storage.BlobStore, closer, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Path})
		if err != nil {
			return nil, nil, fmt.Errorf("init local ledger store: %w", err)
		}
		return blobs, nopCloser, nil
	case config.BackendGCS:
		blobs, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs ledger store: %w", err)
		}
		return blobs, blobs.Close, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nopCloser, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ledger backend %q", cfg.Backend)
	}
}

// openPublisher builds the publishing service adapter, throttled when
// max_per_minute is set. The pubsub adapter keeps the feed description next
// to the ledger.
func openPublisher(
	ctx context.Context,
	cfg config.PublisherConfig,
	descriptions storage.BlobStore,
	logger *zap.Logger,
) (feed.Publisher, closer, error) {
	pub, closeFn, err := openAdapter(ctx, cfg, descriptions)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxPerMinute > 0 {
		pub = ratelimit.New(pub, ratelimit.Config{PerMinute: cfg.MaxPerMinute, Burst: cfg.Burst}, logger)
	}
	return pub, closeFn, nil
}

func openAdapter(ctx context.Context, cfg config.PublisherConfig, descriptions storage.BlobStore) (feed.Publisher, closer, error) {
	switch cfg.Kind {
	case config.PublisherPubSub:
		pub, err := pubsubpublisher.Dial(ctx, cfg.ProjectID, cfg.Topic, descriptions, pubsubpublisher.Config{
			DescriptionObject: cfg.DescriptionObject,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		return pub, pub.Close, nil
	case config.PublisherMemory:
		return memorypublisher.New(), nopCloser, nil
	default:
		return nil, nil, fmt.Errorf("unsupported publisher kind %q", cfg.Kind)
	}
}

// openRunStore returns the run history repository and its readiness check.
// Without a DSN, history lives in memory for the life of the process.
func openRunStore(ctx context.Context, cfg config.RunsConfig) (store.RunRepository, api.ReadinessCheck, closer, error) {
	if cfg.DSN == "" {
		return memorystorage.NewRunStore(), nil, nopCloser, nil
	}
	runs, err := runstorepg.NewRunStore(ctx, runstorepg.RunStoreConfig{
		DSN:             cfg.DSN,
		Table:           cfg.Table,
		MaxConns:        2,
		MaxConnLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init run store: %w", err)
	}
	if err := runs.EnsureSchema(ctx); err != nil {
		runs.Close()
		return nil, nil, nil, err
	}
	return runs, runs.Ping, func() error { runs.Close(); return nil }, nil
}

func newOpener(cfg config.SourceConfig) (*sourcepg.Opener, error) {
	opener, err := sourcepg.NewOpener(sourcepg.Config{
		DSN:             cfg.DSN,
		MaxConns:        int32(cfg.MaxConns), //nolint:gosec // validated non-negative
		MaxConnLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	return opener, nil
}

// openLedger builds and loads the publish ledger. A read-only ledger never
// writes to the blob store.
func openLedger(ctx context.Context, blobs storage.BlobStore, cfg config.LedgerConfig, readOnly bool, logger *zap.Logger) (*ledger.Ledger, error) {
	led, err := ledger.New(blobs, ledger.Config{
		Object:     cfg.Object,
		WriteAhead: cfg.WriteAhead,
		ReadOnly:   readOnly,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	if err := led.Load(ctx); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return led, nil
}

// schemaChecker reports which extracts have no schema in the source database.
type schemaChecker interface {
	Missing(ctx context.Context, extracts []string) ([]string, error)
}

// checkExtracts verifies every extract is loaded before the run starts.
// Freshly fetched extracts that are not loaded yet are skipped with a warning;
// a missing configured extract is an error.
func checkExtracts(ctx context.Context, checker schemaChecker, extracts []string, fetched bool, logger *zap.Logger) ([]string, error) {
	missing, err := checker.Missing(ctx, extracts)
	if err != nil {
		return nil, fmt.Errorf("check extract schemas: %w", err)
	}
	if len(missing) == 0 {
		return extracts, nil
	}
	if !fetched {
		return nil, fmt.Errorf("extracts not loaded into the source database: %s", strings.Join(missing, ", "))
	}

	skip := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		skip[name] = struct{}{}
		logger.Warn("fetched extract is not loaded into the source database, skipping",
			zap.String("extract", name),
			zap.String("hint", "load "+name+".mdb into schema "+name),
		)
	}
	var ready []string
	for _, name := range extracts {
		if _, ok := skip[name]; !ok {
			ready = append(ready, name)
		}
	}
	if len(ready) == 0 {
		return nil, fmt.Errorf("none of the fetched extracts are loaded into the source database: %s", strings.Join(missing, ", "))
	}
	return ready, nil
}

func assemblerFactory(maxBodyLen int, logger *zap.Logger) func(feed.RecordQueries) feed.Assembler {
	return func(queries feed.RecordQueries) feed.Assembler {
		return assembler.New(queries, assembler.Config{MaxBodyLen: maxBodyLen}, logger)
	}
}

// fetchExtracts refreshes this month's archives and returns their names.
func fetchExtracts(ctx context.Context, cfg config.Config, out io.Writer, logger *zap.Logger) ([]string, error) {
	fetcher, err := avdata.New(avdata.Config{
		ListingURL: cfg.Fetcher.ListingURL,
		DataDir:    cfg.Fetcher.DataDir,
		UserAgent:  cfg.Fetcher.UserAgent,
		Timeout:    cfg.FetchTimeout(),
	}, system.New(), out, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	extracts, err := fetcher.Update(ctx)
	if err != nil {
		return nil, fmt.Errorf("update extracts: %w", err)
	}
	return extracts, nil
}
