package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller lacks membership or the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is matched by every specific not-found error.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySubmitted indicates a submitted review was asked to change.
	ErrAlreadySubmitted = errors.New("review already submitted")
	// ErrRateLimited indicates a public submission exceeded its quota.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCaptchaFailed indicates the CAPTCHA token did not verify.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrFormClosed indicates the form is not accepting submissions.
	ErrFormClosed = errors.New("form is not accepting submissions")
	// ErrSlugTaken indicates a form slug collides within its organization.
	ErrSlugTaken = errors.New("form slug already in use")
	// ErrOrganizationSlugTaken indicates an organization slug is already registered.
	ErrOrganizationSlugTaken = errors.New("organization slug already in use")
)

// Specific not-found errors. Each one matches ErrNotFound.
var (
	ErrSubmissionNotFound    = notFound("submission not found")
	ErrReviewNotFound        = notFound("review not found")
	ErrFormNotFound          = notFound("form not found")
	ErrRubricVersionNotFound = notFound("rubric version not found")
	ErrOrganizationNotFound  = notFound("organization not found")
)

type notFoundError struct {
	message string
}

func notFound(message string) error {
	return &notFoundError{message: message}
}

func (e *notFoundError) Error() string { return e.message }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a malformed payload, naming the offending question
// when one is involved.
type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for question %q: %s", e.QuestionID, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidQuestion(questionID, format string, args ...interface{}) error {
	return &ValidationError{QuestionID: questionID, Reason: fmt.Sprintf(format, args...)}
}

func invalidPayload(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AggregationError wraps a recompute failure that happened after the review
// itself was stored.
type AggregationError struct {
	SubmissionID uint
	Err          error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation for submission %d failed: %v", e.SubmissionID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }
