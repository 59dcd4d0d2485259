package template

import "errors"

// Configuration errors. They abort the current Apply and propagate to the
// caller unchanged; test for them with errors.Is.
var (
	// ErrInvalidTemplate is returned when the template element does not exist
	// or one of its configuration values is malformed.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrUnknownTemplateType is returned when the template belongs to none of
	// the template kind classes.
	ErrUnknownTemplateType = errors.New("unknown template type")

	// ErrMissingStructure is returned when a template that evaluates a
	// pattern has no triples to evaluate.
	ErrMissingStructure = errors.New("template structure is missing or empty")

	// ErrMissingInitTemplate is returned when a fixed strategy template does
	// not name its init template.
	ErrMissingInitTemplate = errors.New("fixed strategy template has no init template")

	// ErrInvalidResults is returned when graph-backed operations run on a
	// Results value that was never configured.
	ErrInvalidResults = errors.New("results are not bound to a template")
)
