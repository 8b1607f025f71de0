package suggestion

import (
	"strings"

	"suggest_server/core/domain"
)

const outlookIDPrefix = "outlook:"

// Source labels shown to the user
const (
	labelGmailInbox   = "Gmail Inbox"
	labelOutlookInbox = "Outlook Inbox"
	labelMultiInbox   = "Gmail + Outlook"
	labelEmailInbox   = "Email Inbox"
)

// EnrichSources stamps email-origin candidates with a provider source
// and human label derived from their message IDs. History candidates
// already carry their source and are left alone.
func EnrichSources(candidates []domain.Candidate) []domain.Candidate {
	enriched := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		if c.Source != "" {
			enriched[i] = c
			continue
		}

		source, label := inferEmailSource(c.SourceMessageIDs)
		c.Source = source
		c.SourceLabel = label
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		c.Metadata["source"] = source
		c.Metadata["sourceLabel"] = label
		enriched[i] = c
	}
	return enriched
}

func inferEmailSource(messageIDs []string) (string, string) {
	var hasGmail, hasOutlook bool
	for _, id := range messageIDs {
		if strings.HasPrefix(id, outlookIDPrefix) {
			hasOutlook = true
		} else if id != "" {
			hasGmail = true
		}
	}

	switch {
	case hasGmail && hasOutlook:
		return domain.SourceMulti, labelMultiInbox
	case hasOutlook:
		return domain.SourceOutlook, labelOutlookInbox
	case hasGmail:
		return domain.SourceGmail, labelGmailInbox
	default:
		return domain.SourceEmail, labelEmailInbox
	}
}
