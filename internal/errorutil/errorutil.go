package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues, such as a document referencing an id
// missing from its table.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrResourceExhausted is a base error type for failures caused by running
// out of a resource (memory, disk) while encoding. Callers are expected to
// log and skip writing output rather than retry.
var ErrResourceExhausted = errors.New("resource exhausted")
