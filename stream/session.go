package stream

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/framing"
	"github.com/aurosoni/agentstream/parsers/envelope"
)

// Session owns the parser of one logical stream.
//
// Leading chunks are buffered until the initialization header is complete or
// ruled out. The header then selects the parser (DetectFormat is the fallback)
// and every later chunk passes through a TrailerScanner into it.
//
// A Session is not safe for concurrent use.
type Session struct {
	forced agentstream.Format

	pending   strings.Builder
	parser    agentstream.Parser
	format    agentstream.Format
	meta      *framing.Metadata
	headerErr error
	scanner   framing.TrailerScanner
	trailer   *framing.Trailer
	log       logrus.FieldLogger
}

// Option configures a Session.
type Option func(*Session)

// WithFormat skips format selection and always uses f. A header, if one is
// present, is still stripped and decoded.
func WithFormat(f agentstream.Format) Option {
	return func(s *Session) {
		s.forced = f
	}
}

// NewSession returns a session waiting for its first chunk.
func NewSession(opts ...Option) *Session {
	s := &Session{log: agentstream.Logger("stream")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest feeds the next chunk of stream text.
func (s *Session) Ingest(chunk string) {
	if s.parser != nil {
		s.route(chunk)
		return
	}

	s.pending.WriteString(chunk)
	buf := s.pending.String()
	if framing.ScanHeader(buf) == framing.HeaderPending {
		return
	}
	s.start(buf)
}

// Flush ends the stream: it selects a parser if none was selected yet and
// passes on any text held back while waiting for a trailer.
func (s *Session) Flush() {
	if s.parser == nil {
		s.start(s.pending.String())
	}
	if rest := s.scanner.Flush(); rest != "" {
		s.parser.Ingest(rest)
	}
}

func (s *Session) start(buf string) {
	s.pending.Reset()

	format := s.forced
	meta, err := framing.ParseHeader(buf)
	if err == nil {
		s.meta = meta
		if format == "" {
			format = meta.Format
		}
	} else {
		s.headerErr = err
	}
	buf = framing.StripHeader(buf)
	if format == "" {
		format = framing.DetectFormat(buf)
	}

	p, err := NewParser(format)
	if err != nil {
		s.log.WithError(err).Warn("falling back to tag-based parser")
		format = agentstream.FormatXML
		p, _ = NewParser(format)
	}
	if ep, ok := p.(*envelope.Parser); ok {
		ep.OnMeta(s.onEnvelopeMeta)
	}

	s.parser, s.format = p, format
	s.log.WithFields(logrus.Fields{"format": format, "header": s.meta != nil}).Debug("stream format selected")
	s.route(buf)
}

func (s *Session) route(text string) {
	out, t := s.scanner.Feed(text)
	if t != nil {
		s.trailer = t
	}
	if out != "" {
		s.parser.Ingest(out)
	}
}

// onEnvelopeMeta records framing carried as envelopes inside a JSON stream.
func (s *Session) onEnvelopeMeta(kind, payload string) {
	data := agentstream.PayloadJSON(payload)
	switch kind {
	case envelope.KindMetaInit:
		if s.meta != nil {
			return
		}
		if meta, err := framing.DecodeMetadata(data); err == nil {
			s.meta = meta
		} else {
			s.log.WithError(err).Debug("ignoring undecodable meta_init envelope")
		}
	case envelope.KindMetaFinal:
		if t, err := framing.DecodeTrailer(data); err == nil {
			s.trailer = t
		} else {
			s.log.WithError(err).Debug("ignoring undecodable meta_final envelope")
		}
	}
}

// Nodes returns the current tree. It is nil until a parser is selected.
func (s *Session) Nodes() []agentstream.Node {
	if s.parser == nil {
		return nil
	}
	return s.parser.Materialize()
}

// Format returns the selected format, or "" before selection.
func (s *Session) Format() agentstream.Format {
	return s.format
}

// Parser returns the selected parser, or nil before selection.
func (s *Session) Parser() agentstream.Parser {
	return s.parser
}

// Metadata returns the decoded header. The error explains why there is none.
func (s *Session) Metadata() (*framing.Metadata, error) {
	if s.meta != nil {
		return s.meta, nil
	}
	if s.headerErr != nil {
		return nil, s.headerErr
	}
	return nil, &agentstream.FramingError{
		Element: agentstream.TagMetaInit,
		Reason:  "stream format not selected yet",
		Err:     agentstream.ErrHeaderNotFound,
	}
}

// Trailer returns the decoded trailer, or nil if none has been seen.
func (s *Session) Trailer() *framing.Trailer {
	return s.trailer
}

// Continue returns a session for a continuation stream (e.g. after the agent
// paused for frontend tools). It uses the same format and starts with no
// block state; join the two outputs with Concat.
func (s *Session) Continue() *Session {
	next := NewSession(WithFormat(s.forced))
	if s.format != "" {
		next.forced = s.format
	}
	return next
}

// Concat joins the materialized outputs of consecutive stream segments.
func Concat(segments ...[]agentstream.Node) []agentstream.Node {
	var n int
	for _, seg := range segments {
		n += len(seg)
	}
	out := make([]agentstream.Node, 0, n)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}
