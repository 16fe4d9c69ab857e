package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/store"
	"github.com/jcooky/go-din"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errAborted = errors.New("aborted")

type clearOptions struct {
	UserID string
	Yes    bool
}

type remaining struct {
	Memories  int
	Relations int
}

func newCmd() *cobra.Command {
	opts := clearOptions{}

	cmd := &cobra.Command{
		Use:          "memory-clear",
		Short:        "Delete stored memories and their graph relations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			adapter := din.MustGetT[*store.Adapter](c)
			logger := din.MustGet[*slog.Logger](c, mylog.Key)

			err := clearMemories(c, adapter, logger, opts, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, errAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted, nothing was deleted")
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Only delete memories of this user")

	return cmd
}

func clearMemories(ctx context.Context, adapter *store.Adapter, logger *slog.Logger, opts clearOptions, in io.Reader, out io.Writer) error {
	scope := "ALL users"
	if opts.UserID != "" {
		scope = fmt.Sprintf("user %q", opts.UserID)
	}

	if !opts.Yes {
		fmt.Fprintf(out, "This permanently deletes every memory of %s. Continue? [y/N] ", scope)
		ok, err := confirm(in)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	n, err := adapter.DeleteAll(ctx, opts.UserID)
	if err != nil {
		return err
	}
	logger.Info("memories cleared", "user", opts.UserID, "count", n)
	fmt.Fprintf(out, "deleted %d memories of %s\n", n, scope)

	left, err := verify(ctx, adapter, opts.UserID)
	if err != nil {
		return errors.Wrapf(err, "failed to verify the wipe")
	}
	fmt.Fprintf(out, "remaining memories: %d\n", left.Memories)
	if adapter.GraphEnabled() {
		fmt.Fprintf(out, "remaining relations: %d\n", left.Relations)
	}
	if left.Memories > 0 || left.Relations > 0 {
		return errors.Errorf("%d memories and %d relations remain for %s", left.Memories, left.Relations, scope)
	}
	return nil
}

func confirm(in io.Reader) (bool, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrapf(err, "failed to read confirmation")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// verify counts what is left in both backends for the scope.
func verify(ctx context.Context, adapter *store.Adapter, userID string) (remaining, error) {
	var left remaining
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		records, err := adapter.List(ctx, store.Filter{UserID: userID})
		left.Memories = len(records)
		return err
	})
	eg.Go(func() error {
		relations, err := adapter.Relations(ctx, userID)
		left.Relations = len(relations)
		return err
	})
	return left, eg.Wait()
}
