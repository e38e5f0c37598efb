package agentstream

// Parser is the one capability shared by the three wire-format parsers:
// accept stream text, expose the current tree.
//
// Implementations:
//   - parsers/rawevent: raw structured events
//   - parsers/tagged: tag-based text
//   - parsers/envelope: JSON envelopes
//
// A parser instance belongs to one logical stream and one caller; it is not
// safe for concurrent use. None of the methods block or perform I/O.
//
// Usage:
//
//	p := tagged.New()
//	for chunk := range chunks {
//	  p.Ingest(chunk)
//	  render(p.Materialize())
//	}
type Parser interface {
	// Ingest feeds the next chunk of stream text. Malformed input is
	// tolerated; it never fails.
	Ingest(chunk string)

	// Materialize returns the current, possibly partial, node list. It does
	// not change parser state and may be called any number of times.
	Materialize() []Node

	// Reset discards all accumulated state.
	Reset()

	// Format returns the wire format this parser consumes.
	Format() Format
}
