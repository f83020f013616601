package oracle

// Kind tags how an oracle call ended.
type Kind int

const (
	// Parsed means the response contained a span that decoded into the schema.
	Parsed Kind = iota
	// Unparseable means the call succeeded but no usable JSON span was found.
	Unparseable
	// Failed means the call itself errored (network, quota, timeout).
	Failed
)

func (k Kind) String() string {
	switch k {
	case Parsed:
		return "parsed"
	case Unparseable:
		return "unparseable"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of one extraction. Only Parsed outcomes carry a value;
// Err explains Unparseable and Failed outcomes, and Raw keeps the response text
// when there was one.
type Outcome[T any] struct {
	Kind  Kind
	Err   error
	Raw   string
	value T
}

// Value returns the decoded value, or the zero value (nil record, empty slice)
// for anything but a Parsed outcome.
func (o Outcome[T]) Value() T {
	if o.Kind != Parsed {
		var zero T
		return zero
	}
	return o.value
}

// Ok reports whether the outcome is Parsed.
func (o Outcome[T]) Ok() bool { return o.Kind == Parsed }

func parsed[T any](v T, raw string) Outcome[T] {
	return Outcome[T]{Kind: Parsed, Raw: raw, value: v}
}

func unparseable[T any](raw string, err error) Outcome[T] {
	return Outcome[T]{Kind: Unparseable, Raw: raw, Err: err}
}

func failed[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Failed, Err: err}
}
