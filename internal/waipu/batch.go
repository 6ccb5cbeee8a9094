package waipu

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"
	"github.com/schollz/progressbar/v3"

	"github.com/rusq/wipemydiscord/internal/purge"
)

// progressOut is where the spinner is drawn.
var progressOut io.Writer = os.Stdout

// Batch runs the purge on each of the destinations, one after another.  A
// destination that can't be resolved or read is skipped.  Batch stops early
// if ctx is cancelled.
func Batch(ctx context.Context, cl purge.Resolver, eng *purge.Engine, kind purge.Kind, ids []snowflake.ID, target purge.Target) error {
	for _, id := range ids {
		if ctx.Err() != nil {
			dlog.Printf("interrupted, %s %s and the rest are not processed", kind, id)
			return nil
		}
		res, err := wipe(ctx, cl, eng, kind, id, target)
		if err != nil {
			dlog.Printf("SKIPPED: %s %s: %s", kind, id, err)
			continue
		}
		switch res.Reason {
		case purge.ReasonPermissionDenied, purge.ReasonUnavailable, purge.ReasonTooManyFailures:
			dlog.Printf("SKIPPED: %s %s: %s, messages deleted: %d", kind, id, res.Reason, res.Deleted)
		default:
			dlog.Printf("OK: %s %s: messages deleted: %d (%s)", kind, id, res.Deleted, res.Reason)
		}
	}
	return nil
}

func wipe(ctx context.Context, cl purge.Resolver, eng *purge.Engine, kind purge.Kind, id snowflake.ID, target purge.Target) (purge.Result, error) {
	dst, err := cl.Resolve(ctx, kind, id)
	if err != nil {
		return purge.Result{}, err
	}
	title := purge.Describe(dst)

	pb := progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription(fmt.Sprintf("wiping %s (%s)", id, title)),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSpinnerType(9),
	)
	_ = pb.RenderBlank()
	res := eng.Run(ctx, dst, target, purge.ReporterFunc(func(text string) {
		pb.Describe(title + ": " + text)
		_ = pb.Add(1)
	}))
	_ = pb.Finish()
	fmt.Fprint(progressOut, "\r")
	return res, nil
}
