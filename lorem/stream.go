package lorem

import (
	"context"
	"strings"
	"time"

	"github.com/aurosoni/agentstream"
)

// Delay returns the pause between chunks for a pacing name:
//   - slow: 500ms per chunk
//   - medium: 100ms per chunk
//   - fast: 33ms per chunk
//   - instant: no pause
//
// Any other name gets the medium pace.
func Delay(pace string) time.Duration {
	switch {
	case strings.Contains(pace, "instant"):
		return 0
	case strings.Contains(pace, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(pace, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// Stream delivers the encoded script over a channel, size bytes at a time,
// pausing delay between chunks. The channel is closed when the script is
// exhausted or ctx is done.
func (s Script) Stream(ctx context.Context, format agentstream.Format, size int, delay time.Duration) <-chan string {
	chunks := s.Chunks(format, size)
	out := make(chan string, 10)

	go func() {
		defer close(out)
		for i, c := range chunks {
			if i > 0 && delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- c:
			}
		}
	}()

	return out
}
