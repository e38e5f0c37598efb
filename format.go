package agentstream

// Format identifies one of the wire encodings an agent stream may use.
// Using a typed constant prevents typos in parser selection.
type Format string

// Known stream formats
const (
	// FormatRaw is a stream of raw structured events (message_start, content_block_delta, ...)
	FormatRaw Format = "raw"

	// FormatXML is tag-based streaming text (<content-block-text>...</content-block-text>)
	FormatXML Format = "xml"

	// FormatJSON is a stream of self-contained JSON envelopes
	FormatJSON Format = "json"
)

// String returns the string representation of the format
func (f Format) String() string {
	return string(f)
}

// IsValid returns true if the format is a known format
func (f Format) IsValid() bool {
	switch f {
	case FormatRaw, FormatXML, FormatJSON:
		return true
	default:
		return false
	}
}
