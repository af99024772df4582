package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRejected      = errors.New("admission rejected")
	ErrValidation    = errors.New("validation error")
	ErrExtraction    = errors.New("extraction failure")
	ErrInference     = errors.New("inference failure")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrInternal      = errors.New("internal fault")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
)

// Kind is the failure classification surfaced to callers and stored on failed jobs.
type Kind string

const (
	KindRejected      Kind = "rejected"
	KindValidation    Kind = "validation"
	KindExtraction    Kind = "extraction"
	KindInference     Kind = "inference"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindInternal      Kind = "internal"
	KindConfiguration Kind = "configuration"
)

// ErrorClassifier allows errors to declare their classification directly.
// Returned kinds should be one of the Kind constants; unknown kinds are
// treated as internal faults.
type ErrorClassifier interface {
	ErrorKind() string
}

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrRejected, KindRejected},
	{ErrValidation, KindValidation},
	{ErrExtraction, KindExtraction},
	{ErrInference, KindInference},
	{ErrNotFound, KindNotFound},
	{ErrConfiguration, KindConfiguration},
	{ErrInternal, KindInternal},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto its failure kind. Deadline expiry wins over the
// stage marker so a collaborator killed by the job ceiling reports a timeout.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch kind := Kind(strings.TrimSpace(classifier.ErrorKind())); kind {
		case KindRejected, KindValidation, KindExtraction, KindInference,
			KindNotFound, KindTimeout, KindConfiguration:
			return kind
		}
	}
	return KindInternal
}

// FailureMessage renders the text stored on a failed job: the kind followed
// by the error detail with the marker prefix removed.
func FailureMessage(err error) string {
	if err == nil {
		return string(KindInternal) + ": failed without error detail"
	}
	kind := Classify(err)
	detail := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrTimeout, ErrRejected, ErrValidation, ErrExtraction, ErrInference, ErrNotFound, ErrConfiguration, ErrInternal} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(detail, prefix) {
			detail = strings.TrimPrefix(detail, prefix)
			break
		}
	}
	if detail == "" {
		detail = "failed without error detail"
	}
	return string(kind) + ": " + detail
}

// Hint returns an operator-facing next step for a failure kind.
func Hint(kind Kind) string {
	switch kind {
	case KindRejected:
		return "caller exceeded the admission rate; retry after the window"
	case KindValidation:
		return "correct the upload before resubmitting"
	case KindExtraction:
		return "verify the upload contains a decodable audio stream"
	case KindInference:
		return "check whisperx output and model availability"
	case KindNotFound:
		return "job id unknown or expired"
	case KindTimeout:
		return "raise workflow.job_timeout_seconds or submit shorter media"
	case KindConfiguration:
		return "review scribe configuration"
	default:
		return "check daemon logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
