package waipu

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// List prints the direct messages and group chats of the account.
func List(ctx context.Context, w io.Writer, cl Discorder) error {
	dests, err := cl.Destinations(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(dests, func(i, j int) bool {
		return dests[i].Title() < dests[j].Title()
	})
	for _, d := range dests {
		if _, err := fmt.Fprintf(w, "%20d - %s (%s)\n", d.ID(), d.Title(), d.Kind()); err != nil {
			return err
		}
	}
	return nil
}
