package logging

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
)

// filterEnv is the variable set available to filter expressions, e.g.
//
//	level >= WARNING && urn startsWith "urn:pkg:"
type filterEnv struct {
	Severity  string `expr:"severity"`
	Level     int    `expr:"level"`
	Message   string `expr:"message"`
	URN       string `expr:"urn"`
	StreamID  int64  `expr:"stream_id"`
	Ephemeral bool   `expr:"ephemeral"`

	Debug   int `expr:"DEBUG"`
	Info    int `expr:"INFO"`
	Warning int `expr:"WARNING"`
	Error   int `expr:"ERROR"`
}

func newFilterEnv(event *Event) filterEnv {
	return filterEnv{
		Severity:  string(event.Severity),
		Level:     event.Severity.Rank(),
		Message:   event.Message,
		URN:       event.URN,
		StreamID:  event.StreamID,
		Ephemeral: event.Ephemeral,
		Debug:     api.SeverityDebug.Rank(),
		Info:      api.SeverityInfo.Rank(),
		Warning:   api.SeverityWarning.Rank(),
		Error:     api.SeverityError.Rank(),
	}
}

// Filter is a compiled boolean expression over a record.
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles a boolean expression. Unknown identifiers and
// non-boolean expressions are rejected at compile time.
func CompileFilter(source string) (*Filter, error) {
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, errx.Wrap(ErrCompileFilter, err)
	}
	return &Filter{source: source, program: program}, nil
}

// Match reports whether event satisfies the filter.
func (f *Filter) Match(event *Event) (bool, error) {
	out, err := expr.Run(f.program, newFilterEnv(event))
	if err != nil {
		return false, errx.Wrap(ErrEvalFilter, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (f *Filter) String() string { return f.source }

// FilterSink forwards only the events matching a filter.
type FilterSink struct {
	filter *Filter
	next   Sink
}

// NewFilterSink wraps next so that it only receives events matching filter.
func NewFilterSink(filter *Filter, next Sink) *FilterSink {
	return &FilterSink{filter: filter, next: next}
}

func (s *FilterSink) Name() string { return SinkName(s.next) }

func (s *FilterSink) Write(event *Event) error {
	ok, err := s.filter.Match(event)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.next.Write(event)
}

func (s *FilterSink) Close() error { return s.next.Close() }
