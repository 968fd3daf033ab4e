// Package transform binds transform programs to message state.
//
// A transform has up to two programs compiled by a named Engine. The property
// program runs first and emits command XML (see CommandSchemaVersion) that is
// parsed, converted to typed values and applied to the live message. The body
// program then runs against the updated message and its output replaces
// either the text body or the carried application context.
//
// Application is transactional: if anything fails, the changes already made
// are undone and the message is left as it was.
package transform
