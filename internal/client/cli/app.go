package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/nexuscloud/drivesync/internal/client/config"
	"github.com/nexuscloud/drivesync/internal/client/remote"
	"github.com/nexuscloud/drivesync/internal/client/repositories/records"
	"github.com/nexuscloud/drivesync/internal/client/store"
	"github.com/nexuscloud/drivesync/internal/client/upload"
	"github.com/nexuscloud/drivesync/internal/logging"

	_ "modernc.org/sqlite"
)

// crumb is one step of the navigation path shown in the prompt.
type crumb struct {
	id   string
	name string
}

// App wires the client components together behind the REPL. All drive logic
// lives in store and upload; the App only translates commands.
type App struct {
	config *config.Config
	api    *remote.HTTPClient
	store  *store.Store
	queue  *upload.Queue
	db     *sql.DB
	log    logging.Logger

	userName string
	path     []crumb
	reader   *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.Default())

	db, err := records.OpenDatabase(ctx, c.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	cache := records.NewSQLiteRepository(db)

	api := remote.NewHTTPClient(c.ServerEndpointAddr, c.RequestTimeout)

	var svc remote.Service = api
	if c.UseS3() {
		svc, err = remote.NewS3Transport(ctx, remote.S3Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			KeyPrefix: c.S3KeyPrefix,
		}, api)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing s3 transport: %w", err)
		}
	}

	st := store.New(svc, cache, log)

	q := upload.New(upload.Config{
		Workers:     c.UploadWorkers,
		MaxAttempts: c.UploadMaxAttempts,
		RetryBase:   c.UploadRetryBase,
	}, svc, cache, st, log)

	return &App{
		config: c,
		api:    api,
		store:  st,
		queue:  q,
		db:     db,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

// Run recovers interrupted state, starts the workers, and enters the REPL.
func (a *App) Run(ctx context.Context) error {
	defer a.db.Close()

	// Uploads that died mid-flight in a previous run go back to pending.
	if n, err := a.queue.Recover(ctx); err != nil {
		return fmt.Errorf("recovering interrupted uploads: %w", err)
	} else if n > 0 {
		fmt.Printf("Recovered %d interrupted upload(s); use 'put' to resend.\n", n)
	}

	if err := a.store.Load(ctx); err != nil {
		return fmt.Errorf("loading cached state: %w", err)
	}

	a.queue.Start(ctx)
	defer a.queue.Stop()

	go a.watchEvents(ctx)

	a.Root(ctx)
	return nil
}

// watchEvents prints upload progress as it happens.
func (a *App) watchEvents(ctx context.Context) {
	for {
		select {
		case e, ok := <-a.queue.Events():
			if !ok {
				return
			}
			printEvent(e)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

// cwd is the identifier of the folder the REPL is currently in.
func (a *App) cwd() string {
	if len(a.path) == 0 {
		return ""
	}
	return a.path[len(a.path)-1].id
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " /"
		for _, c := range a.path {
			s += c.name + "/"
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
