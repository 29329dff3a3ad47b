package expr

import "strings"

// Format identifies one of the accepted input notations.
type Format string

const (
	// FormatAuto asks the codec to classify the input itself.
	FormatAuto Format = "auto"
	// FormatLinear is algebraic/function notation: "C_0 * exp(-k*t)".
	FormatLinear Format = "linear"
	// FormatTypeset is LaTeX-style markup: `C_{0} e^{-kt}`.
	FormatTypeset Format = "typeset"
	// FormatRecord is the structured key/value form with variable metadata.
	FormatRecord Format = "record"
)

// ValidFormat reports whether f is an accepted format name.
func ValidFormat(f Format) bool {
	switch f {
	case FormatAuto, FormatLinear, FormatTypeset, FormatRecord:
		return true
	}
	return false
}

// Input carries one formula in whichever notation the caller used. Record
// takes precedence over Text when both are set.
type Input struct {
	Text   string
	Record map[string]any
}

// Classify picks the format for an input. It is a pure function of the
// input: the same input always classifies the same way.
func Classify(in Input) Format {
	if in.Record != nil {
		return FormatRecord
	}
	return classifyText(in.Text)
}

// Markup is recognized by characters linear notation never uses. "^" alone
// is not a signal since linear notation accepts it as a power alias.
func classifyText(s string) Format {
	if strings.ContainsAny(s, `\{}`) {
		return FormatTypeset
	}
	return FormatLinear
}

// Parse classifies an input and parses it with the matching parser.
func Parse(in Input) (*Expression, error) {
	return ParseAs(in, FormatAuto)
}

// ParseText parses plain text, classifying it first.
func ParseText(text string) (*Expression, error) {
	return Parse(Input{Text: text})
}

// ParseAs parses an input in an explicitly declared format. FormatAuto
// defers to Classify.
func ParseAs(in Input, format Format) (*Expression, error) {
	if format == FormatAuto {
		format = Classify(in)
	}
	switch format {
	case FormatLinear:
		root, perr := parseLinear(in.Text)
		if perr != nil {
			return nil, perr
		}
		return newExpression(root, in.Text, FormatLinear), nil
	case FormatTypeset:
		root, perr := parseTypeset(in.Text)
		if perr != nil {
			return nil, perr
		}
		return newExpression(root, in.Text, FormatTypeset), nil
	case FormatRecord:
		return parseRecord(in.Record)
	default:
		return nil, newParseError(KindMalformedSyntax, -1, in.Text,
			"unknown format %q", string(format))
	}
}
