// souqctl is the operator tool for the permission catalog, actor grants and
// the notification queue.
//
//	souqctl catalog [--json]
//	souqctl grants --actor ID
//	souqctl sync --file grants.yml [--dry-run]
//	souqctl queue [--retry-archived TYPE]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/odyssey-erp/souq/cmd/souqctl/cli"
	"github.com/odyssey-erp/souq/internal/app"
	"github.com/odyssey-erp/souq/internal/platform/cache"
	"github.com/odyssey-erp/souq/internal/platform/db"
	"github.com/odyssey-erp/souq/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, connectStore); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// storeFactory opens the configured permission store and the actor
// directory; the returned func releases their connections.
type storeFactory func(ctx context.Context) (rbac.Store, rbac.Directory, func(), error)

func connectStore(ctx context.Context) (rbac.Store, rbac.Directory, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	actors := rbac.NewPostgresDirectory(pool)
	closers := []func(){pool.Close}
	release := func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg.PermissionStore == app.StoreRedis {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			release()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		store, err := app.NewPermissionStore(ctx, cfg, pool, client, rbac.DefaultCatalog())
		if err != nil {
			release()
			return nil, nil, nil, err
		}
		return store, actors, release, nil
	}
	store, err := app.NewPermissionStore(ctx, cfg, pool, nil, rbac.DefaultCatalog())
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	return store, actors, release, nil
}

func run(ctx context.Context, args []string, out io.Writer, open storeFactory) error {
	if len(args) == 0 {
		return errors.New("usage: souqctl <catalog|grants|sync|queue> [flags]")
	}
	command, rest := args[0], args[1:]
	switch command {
	case "catalog":
		return runCatalog(rest, out)
	case "grants":
		return runGrants(ctx, rest, out, open)
	case "sync":
		return runSync(ctx, rest, out, open)
	case "queue":
		return runQueue(rest, out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runCatalog(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("catalog", pflag.ContinueOnError)
	asJSON := flags.Bool("json", false, "print the catalog as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}
	perms := rbac.DefaultCatalog().Permissions()
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(perms)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCONTROLLED\tDESCRIPTION")
	for _, p := range perms {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Name, p.Kind, p.IsControlledVariant, p.Description)
	}
	return tw.Flush()
}

func runGrants(ctx context.Context, args []string, out io.Writer, open storeFactory) error {
	flags := pflag.NewFlagSet("grants", pflag.ContinueOnError)
	actorID := flags.Int64("actor", 0, "actor ID to inspect")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *actorID <= 0 {
		return errors.New("--actor is required")
	}
	store, _, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	names, err := store.PermissionNames(ctx, *actorID)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func runSync(ctx context.Context, args []string, out io.Writer, open storeFactory) error {
	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	path := flags.StringP("file", "f", "", "YAML grants file")
	dryRun := flags.Bool("dry-run", false, "print the changes without writing")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("--file is required")
	}
	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()
	grants, err := cli.ParseGrants(f, rbac.DefaultCatalog())
	if err != nil {
		return err
	}

	store, actors, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	results, err := cli.Apply(ctx, store, actors, grants, *dryRun)
	for _, r := range results {
		if !r.Changed() {
			fmt.Fprintf(out, "actor %d: unchanged\n", r.ActorID)
			continue
		}
		fmt.Fprintf(out, "actor %d: +%v -%v\n", r.ActorID, r.Added, r.Removed)
	}
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Fprintln(out, "dry run, nothing written")
	}
	return nil
}

func runQueue(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("queue", pflag.ContinueOnError)
	retry := flags.String("retry-archived", "", "requeue archived tasks of this type")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	queue := cli.NewQueueCLI(cfg.RedisAddr)
	defer queue.Close()

	if *retry != "" {
		n, err := queue.RetryArchived(*retry)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %d %s task(s)\n", n, *retry)
		return nil
	}
	stats, err := queue.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return nil
}
