package main

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/precision"
)

// runFormat formats one value the way a venue helper would.
func runFormat(args []string) (string, error) {
	fs := flag.NewFlagSet("format", flag.ContinueOnError)
	value := fs.String("value", "", "number to format")
	digits := fs.String("digits", "8", "places, significant digits or tick size depending on --count")
	mode := fs.String("mode", "round", "rounding mode: round or truncate")
	count := fs.String("count", "decimals", "count mode: decimals, significant or tick")
	pad := fs.Bool("pad", false, "pad with trailing zeros")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *value == "" {
		return "", errors.New("--value is required")
	}

	rounding, err := precision.ParseRoundingMode(*mode)
	if err != nil {
		return "", err
	}
	counting, err := precision.ParseCountMode(*count)
	if err != nil {
		return "", err
	}
	d, err := decimal.Parse(*digits)
	if err != nil {
		return "", errors.Wrap(err, "--digits")
	}

	padding := precision.NoPadding
	if *pad {
		padding = precision.PadWithZero
	}

	return precision.FormatString(*value, precision.Directive{
		Digits:   d,
		Rounding: rounding,
		Counting: counting,
		Padding:  padding,
	})
}
