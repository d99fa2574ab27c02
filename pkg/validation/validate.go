package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"whisperboard/pkg/models"
)

// Limits bounds user-supplied content. Zero values disable a bound.
type Limits struct {
	MaxTextLen     int
	MaxAttachments int
	MaxTopicLen    int
}

var limits = Limits{MaxTextLen: 4000, MaxAttachments: 8, MaxTopicLen: 64}

// SetLimits installs the process-wide validation limits.
func SetLimits(l Limits) { limits = l }

// ValidateContent checks the fundamental node-content invariant: a node
// with no text and no attachments must never be committed.
func ValidateContent(text string, attachments []models.Attachment) error {
	var errs []string
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		errs = append(errs, "text or at least one attachment is required")
	}
	if limits.MaxTextLen > 0 && utf8.RuneCountInString(text) > limits.MaxTextLen {
		errs = append(errs, fmt.Sprintf("text exceeds max length %d", limits.MaxTextLen))
	}
	if limits.MaxAttachments > 0 && len(attachments) > limits.MaxAttachments {
		errs = append(errs, fmt.Sprintf("too many attachments: %d > %d", len(attachments), limits.MaxAttachments))
	}
	for _, a := range attachments {
		if a.URL == "" {
			errs = append(errs, "attachment url is required")
			break
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateTopic checks the topic key used to group threads.
func ValidateTopic(topic string) error {
	t := strings.TrimSpace(topic)
	if t == "" {
		return errors.New("topic is required")
	}
	if limits.MaxTopicLen > 0 && utf8.RuneCountInString(t) > limits.MaxTopicLen {
		return fmt.Errorf("topic exceeds max length %d", limits.MaxTopicLen)
	}
	return nil
}
