package limits

import "github.com/sluicelabs/sluice/internal/errs"

var (
	errTopicEmpty        = errs.New(errs.InvalidArgument, "limits.ValidateTopicName", "topic name must not be empty")
	errTopicTooLong      = errs.New(errs.InvalidArgument, "limits.ValidateTopicName", "topic name exceeds max length")
	errTopicNotPrintable = errs.New(errs.InvalidArgument, "limits.ValidateTopicName", "topic name must be printable non-whitespace")
	errPayloadTooLarge   = errs.New(errs.InvalidArgument, "limits.ValidatePayload", "payload exceeds max size")
	errTooManyAttrs      = errs.New(errs.InvalidArgument, "limits.ValidateAttributes", "too many attributes")
	errAttrKeyTooLarge   = errs.New(errs.InvalidArgument, "limits.ValidateAttributes", "attribute key exceeds max size")
	errAttrValueTooLarge = errs.New(errs.InvalidArgument, "limits.ValidateAttributes", "attribute value exceeds max size")
)
