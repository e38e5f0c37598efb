package stream

import (
	"context"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/framing"
)

// Update is one snapshot of a watched stream.
type Update struct {
	// Nodes is the tree after the latest chunk (nil until a parser is selected)
	Nodes []agentstream.Node

	// Format is the selected wire format ("" until selection)
	Format agentstream.Format

	// Done is set on the last update, after the input channel closed
	Done bool

	// Trailer is the decoded meta_final payload, if one has been seen
	Trailer *framing.Trailer

	// Error is ctx.Err() when watching stopped early; only set on a Done update
	Error error
}

// Watch drives a Session from a channel of chunks and emits an Update after
// every chunk. When chunks closes the session is flushed and a final Update
// with Done set is sent. If ctx is cancelled first, the final Update carries
// ctx.Err(); it is dropped if the consumer is not reading. The returned
// channel is closed when watching ends, so a consumer that stops reading must
// cancel ctx to release the goroutine.
func Watch(ctx context.Context, chunks <-chan string, opts ...Option) <-chan Update {
	out := make(chan Update, 10)
	s := NewSession(opts...)

	go func() {
		defer close(out)

		snapshot := func(done bool, err error) Update {
			return Update{
				Nodes:   s.Nodes(),
				Format:  s.Format(),
				Done:    done,
				Trailer: s.Trailer(),
				Error:   err,
			}
		}
		finish := func(err error) {
			s.Flush()
			u := snapshot(true, err)
			if err == nil {
				select {
				case out <- u:
				case <-ctx.Done():
				}
				return
			}
			// Cancelled: the consumer may have stopped reading.
			select {
			case out <- u:
			default:
			}
		}

		for {
			select {
			case <-ctx.Done():
				finish(ctx.Err())
				return
			case c, ok := <-chunks:
				if !ok {
					finish(nil)
					return
				}
				s.Ingest(c)
				select {
				case out <- snapshot(false, nil):
				case <-ctx.Done():
					finish(ctx.Err())
					return
				}
			}
		}
	}()

	return out
}
