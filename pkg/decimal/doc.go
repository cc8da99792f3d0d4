/*
Package decimal implements immutable arbitrary-precision decimal numbers used
for every monetary computation sent to a venue.

# Representation

A [Decimal] is an arbitrary-precision signed integer mantissa paired with a
decimal exponent:

	value = mantissa × 10^-exponent

The exponent may be negative, in which case the mantissa is scaled up by a
power of ten (1 with exponent -3 is 1000). The same value can have several
representations (1, 1.0 and 1.00); [Decimal.Reduce] returns the canonical one,
which has no trailing zero digits in the mantissa and an exponent of 0 for zero.

# Operations

Every operation returns a fresh value and never modifies its operands, so a
Decimal can be shared between goroutines without synchronization.

Division and remainder by zero do not panic and do not return an error: the
result is reported as absent through a second boolean return value.

# Conversions

Values enter the package through [Parse], [New], [NewFromInt], [NewFromFloat]
or the closed [Literal] union ([Int], [Float], [Text]) normalized by
[FromLiteral]. [Decimal.String] always renders fixed-point notation.
*/
package decimal
