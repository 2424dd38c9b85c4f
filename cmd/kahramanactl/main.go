// Command kahramanactl is the operator tool for the site: it applies cart storage
// migrations and previews order messages for a persisted cart.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/platform/observability"
	"kahramana.bh/site/internal/repositories/memory"
	"kahramana.bh/site/internal/repositories/sqlstore"
	"kahramana.bh/site/internal/site"
)

func main() {
	logger, err := observability.NewDevelopmentLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := newApp(logger.Named("ctl"), os.Stdout).Run(os.Args); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newApp(logger *zap.Logger, out io.Writer) *cli.App {
	siteFlag := &cli.StringFlag{
		Name:    "site",
		Usage:   "site data YAML (defaults to the embedded catalog)",
		EnvVars: []string{"KAHRAMANA_SITE_DATA"},
	}
	return &cli.App{
		Name:      "kahramanactl",
		Usage:     "operate the Kahramana site",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply cart storage migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "driver", Value: string(sqlstore.Postgres), Usage: "postgres or mysql", EnvVars: []string{"KAHRAMANA_STORAGE_BACKEND"}},
					&cli.StringFlag{Name: "dsn", Required: true, EnvVars: []string{"KAHRAMANA_STORAGE_DSN"}},
				},
				Action: func(c *cli.Context) error {
					return runMigrate(c.Context, logger, c.String("driver"), c.String("dsn"), c.App.Writer)
				},
			},
			{
				Name:  "preview",
				Usage: "print the order message for a persisted cart",
				Flags: []cli.Flag{
					siteFlag,
					&cli.StringFlag{Name: "cart", Required: true, Usage: "file holding the stored cart JSON, or - for stdin"},
					&cli.StringFlag{Name: "lang", Value: "ar"},
					&cli.StringFlag{Name: "branch", Usage: "override the cart's branch"},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "type", Value: string(order.Delivery), Usage: "delivery or pickup"},
					&cli.StringFlag{Name: "payment", Value: string(order.Cash), Usage: "cash or benefit"},
					&cli.BoolFlag{Name: "link", Usage: "print the chat deep link instead of the text"},
				},
				Action: func(c *cli.Context) error {
					catalog, err := site.Load(c.String("site"))
					if err != nil {
						return err
					}
					raw, err := readInput(c.String("cart"), os.Stdin)
					if err != nil {
						return err
					}
					draft := order.Draft{
						Name:      c.String("name"),
						Address:   c.String("address"),
						OrderType: order.OrderType(c.String("type")),
						Payment:   order.Payment(c.String("payment")),
					}
					return runPreview(catalog, raw, draft, c.String("branch"), c.String("lang"), c.Bool("link"), c.App.Writer)
				},
			},
			{
				Name:      "link",
				Usage:     "build a chat deep link for a branch",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					siteFlag,
					&cli.StringFlag{Name: "branch", Usage: "branch id (defaults to the site default)"},
				},
				Action: func(c *cli.Context) error {
					catalog, err := site.Load(c.String("site"))
					if err != nil {
						return err
					}
					branch := c.String("branch")
					if branch == "" {
						branch = catalog.DefaultBranchID()
					}
					link, err := order.DeepLink(catalog.ContactDigits(branch), strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, link)
					return err
				},
			},
		},
	}
}

func runMigrate(ctx context.Context, logger *zap.Logger, driver, dsn string, out io.Writer) error {
	dialect := sqlstore.Dialect(strings.ToLower(strings.TrimSpace(driver)))
	db, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := sqlstore.Migrate(db, dialect, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s schema at version %d (dirty=%t)\n", dialect, status.Version, status.Dirty)
	return err
}

func runPreview(catalog *site.Catalog, raw []byte, draft order.Draft, branch, lang string, link bool, out io.Writer) error {
	store, err := cart.NewStore(memory.NewSlot(), catalog, nil)
	if err != nil {
		return err
	}
	state := store.Decode(raw)
	if branch != "" {
		state.BranchID = branch
	}
	draft = draft.Normalize()
	if err := order.Validate(state, draft, catalog); err != nil {
		return err
	}

	msg := order.NewFormatter(catalog, nil).Format(state, draft, lang)
	if !link {
		_, err = fmt.Fprintln(out, msg.Text())
		return err
	}
	url, err := order.DeepLink(catalog.ContactDigits(state.BranchID), msg.Text())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, url)
	return err
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	return raw, nil
}
