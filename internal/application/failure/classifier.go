package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type typedError interface {
	ErrorType() ErrorType
}

type kindError struct {
	err  error
	kind ErrorType
}

func (e *kindError) Error() string        { return e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) ErrorType() ErrorType { return e.kind }

// WithType attaches an explicit error type to err. Classification honours it
// before any keyword matching.
func WithType(err error, t ErrorType) error {
	if err == nil {
		return nil
	}
	return &kindError{err: err, kind: t}
}

// Errorf is fmt.Errorf with an attached error type.
func Errorf(t ErrorType, format string, args ...any) error {
	return WithType(fmt.Errorf(format, args...), t)
}

type Classification struct {
	Type     ErrorType
	Severity Severity
}

// KeywordRule matches when the lower-cased message contains any keyword.
type KeywordRule struct {
	Type     ErrorType
	Keywords []string
}

// ClassificationPolicy is an ordered rule list. The first matching rule wins.
type ClassificationPolicy []KeywordRule

// DefaultClassificationPolicy checks NETWORK, DATABASE, FILE_FORMAT, VALIDATION,
// PERMISSION, QUOTA and TIMEOUT in that order. A message such as
// "connection timeout" is therefore NETWORK while "request timeout" is TIMEOUT.
// QUOTA matches rate phrases only, since a bare "rate" also hits words like
// "generate".
var DefaultClassificationPolicy = ClassificationPolicy{
	{Type: TypeNetwork, Keywords: []string{
		"network", "connection", "econnrefused", "econnreset", "etimedout",
		"socket", "no such host", "dns", "unreachable", "broken pipe", "fetch failed",
	}},
	{Type: TypeDatabase, Keywords: []string{
		"database", "sql", "constraint", "duplicate", "deadlock", "violates",
	}},
	{Type: TypeFileFormat, Keywords: []string{
		"csv", "excel", "xlsx", "format", "parse", "malformed",
	}},
	{Type: TypeValidation, Keywords: []string{
		"validation", "invalid", "required", "missing",
	}},
	{Type: TypePermission, Keywords: []string{
		"permission", "unauthorized", "forbidden", "access",
	}},
	{Type: TypeQuota, Keywords: []string{
		"quota", "limit", "throttl", "too many requests",
		"rate exceeded", "ratelimit", "rate-limit",
	}},
	{Type: TypeTimeout, Keywords: []string{
		"timeout", "timed out", "deadline",
	}},
}

func (p ClassificationPolicy) Classify(err error) Classification {
	t := p.classifyType(err)
	return Classification{Type: t, Severity: SeverityOf(t)}
}

func (p ClassificationPolicy) classifyType(err error) ErrorType {
	if err == nil {
		return TypeUnknown
	}

	var typed typedError
	if errors.As(err, &typed) && typed.ErrorType().Valid() {
		return typed.ErrorType()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TypeTimeout
	}

	message := strings.ToLower(err.Error())
	for _, rule := range p {
		for _, keyword := range rule.Keywords {
			if strings.Contains(message, keyword) {
				return rule.Type
			}
		}
	}
	return TypeUnknown
}

// Classify uses DefaultClassificationPolicy.
func Classify(err error) Classification {
	return DefaultClassificationPolicy.Classify(err)
}
