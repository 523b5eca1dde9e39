package localize

import (
	"slices"

	"golang.org/x/text/language"
)

// ErrorID names a localizable error.
type ErrorID interface {
	// Code is the stable key looked up in bundles.
	Code() string
	// MessageTemplate is used when no bundle provides the code.
	MessageTemplate() string
}

type errorID struct {
	code     string
	template string
}

func (e errorID) Code() string {
	return e.code
}

func (e errorID) MessageTemplate() string {
	return e.template
}

// NewErrorID returns an ErrorID with the given code and fallback template.
func NewErrorID(code, template string) ErrorID {
	return errorID{code: code, template: template}
}

// Context selects the fallback bundle and locale used when rendering.
type Context struct {
	Bundle string
	Locale language.Tag
}

// Error is an error whose message is rendered from a bundle.
type Error struct {
	bundle string
	id     ErrorID
	args   []any
	cause  error
}

// New returns an Error for id, looked up in bundle first. It panics if id is nil.
func New(bundle string, id ErrorID, args ...any) *Error {
	return Wrap(nil, bundle, id, args...)
}

// Wrap is New with a cause.
func Wrap(cause error, bundle string, id ErrorID, args ...any) *Error {
	if id == nil {
		panic("localize: nil ErrorID")
	}
	return &Error{
		bundle: bundle,
		id:     id,
		args:   slices.Clone(args),
		cause:  cause,
	}
}

func (e *Error) ErrorID() ErrorID {
	return e.id
}

func (e *Error) Code() string {
	return e.id.Code()
}

func (e *Error) Bundle() string {
	return e.bundle
}

func (e *Error) Args() []any {
	return slices.Clone(e.args)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Message renders the error for lc using reg. A nil reg means Default().
func (e *Error) Message(reg *Registry, lc Context) string {
	if reg == nil {
		reg = Default()
	}

	code := e.id.Code()
	tmpl, found := "", false
	if e.bundle != "" {
		tmpl, found = reg.Lookup(e.bundle, lc.Locale, code)
	}
	if !found && lc.Bundle != "" {
		tmpl, found = reg.Lookup(lc.Bundle, lc.Locale, code)
	}
	if !found {
		tmpl = e.id.MessageTemplate()
	}

	msg := Format(tmpl, e.args...)
	if !reg.HasBundle(e.bundle) && !reg.HasBundle(lc.Bundle) {
		msg += " "
	}
	return msg
}

func (e *Error) Error() string {
	msg := e.Message(nil, Context{})
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.id.Code() == e.id.Code()
}
