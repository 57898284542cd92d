package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/shredder/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeUnknownField, `field "index" is not in the schema`).
		WithDetail("field", "index")

	fmt.Println(err.Error())

	// Output:
	// unknown_field: field "index" is not in the schema
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeMalformedDocument, "truncated document").
		WithDetail("offset", 4096)

	if errors.IsType(err, errors.ErrorTypeMalformedDocument) {
		fmt.Println("malformed")
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by EOF")
	}

	// Output:
	// malformed
	// caused by EOF
}

// Example_sentinel demonstrates matching by type with errors.Is.
func Example_sentinel() {
	err := fmt.Errorf("append: %w", errors.New(errors.ErrorTypeNumericOverflow, "4294967295 does not fit date32"))

	fmt.Println(stderrors.Is(err, errors.ErrNumericOverflow))
	fmt.Println(stderrors.Is(err, errors.ErrUnknownField))

	// Output:
	// true
	// false
}
