package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/client"
	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/models"
)

var (
	remoteURL      string
	remoteAdminKey string
)

// operator runs collection commands against a local backend or a server.
type operator interface {
	List(ctx context.Context, name string, all bool) ([]content.Entry, error)
	Reorder(ctx context.Context, name string, ids []int64) error
	Normalize(ctx context.Context, name string) error
	Close()
}

// addRemoteFlags registers --url and --admin-key on cmd.
func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&remoteURL, "url", envOrDefault("ORDERSET_URL", ""),
		"Server base URL; empty works on the local backend (env: ORDERSET_URL)")
	cmd.Flags().StringVar(&remoteAdminKey, "admin-key", os.Getenv("ORDERSET_ADMIN_KEY"),
		"Admin key for mutations on a server (env: ORDERSET_ADMIN_KEY)")
}

func newOperator(ctx context.Context) operator {
	if remoteURL != "" {
		return &remoteOperator{client.NewRetryClient(client.NewHTTPClient(remoteURL, remoteAdminKey), nil)}
	}
	return &localOperator{initContext(ctx)}
}

type localOperator struct {
	*cmdContext
}

func (o *localOperator) lookup(name string) (content.Collection, error) {
	col, ok := o.Catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", collection.ErrNotFound, name)
	}
	return col, nil
}

func (o *localOperator) List(ctx context.Context, name string, all bool) ([]content.Entry, error) {
	col, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	f := models.ActiveOnly()
	if all {
		f = models.Filter{}
	}
	return col.List(ctx, f)
}

func (o *localOperator) Reorder(ctx context.Context, name string, ids []int64) error {
	col, err := o.lookup(name)
	if err != nil {
		return err
	}
	return col.Reorder(ctx, ids)
}

func (o *localOperator) Normalize(ctx context.Context, name string) error {
	col, err := o.lookup(name)
	if err != nil {
		return err
	}
	return col.Normalize(ctx)
}

type remoteOperator struct {
	client client.Client
}

func (o *remoteOperator) List(ctx context.Context, name string, all bool) ([]content.Entry, error) {
	return o.client.List(ctx, name, all)
}

func (o *remoteOperator) Reorder(ctx context.Context, name string, ids []int64) error {
	return o.client.Reorder(ctx, name, ids)
}

func (o *remoteOperator) Normalize(ctx context.Context, name string) error {
	return o.client.Normalize(ctx, name)
}

func (o *remoteOperator) Close() {}
