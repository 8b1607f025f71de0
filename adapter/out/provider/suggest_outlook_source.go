package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/httputil"
	"suggest_server/pkg/logger"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

const outlookIDPrefix = "outlook:"

// OutlookSource reads the Outlook inbox through the Microsoft Graph
// REST API. Messages come back newest-first, the walk stops at the
// receivedDateTime watermark.
type OutlookSource struct {
	config *oauth2.Config
	log    *logger.Logger
}

func NewOutlookSource(config *oauth2.Config) *OutlookSource {
	return &OutlookSource{
		config: config,
		log:    logger.Default().WithField("component", "outlook_source"),
	}
}

func (s *OutlookSource) Name() domain.EmailProvider {
	return domain.ProviderOutlook
}

type graphMessage struct {
	ID               string `json:"id"`
	ConversationID   string `json:"conversationId"`
	Subject          string `json:"subject"`
	BodyPreview      string `json:"bodyPreview"`
	ReceivedDateTime string `json:"receivedDateTime"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphMessageList struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

func (s *OutlookSource) FetchMessages(ctx context.Context, conn *domain.OAuthConnection, cursor *domain.IngestCursor, opts out.FetchOptions) (*out.FetchResult, error) {
	// The oauth2 transport picks up the pooled client from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.OutlookClient())
	client := oauth2.NewClient(ctx, tokenSource(ctx, s.config, conn))

	result := &out.FetchResult{}
	var newestReceived *time.Time
	var newestID string
	var watermark time.Time
	if cursor != nil && cursor.LastReceivedAt != nil {
		watermark = *cursor.LastReceivedAt
	} else if opts.LookbackDays > 0 {
		watermark = time.Now().AddDate(0, 0, -opts.LookbackDays)
	}

	nextLink := s.firstPageURL(opts)

	for nextLink != "" {
		if expired(opts.Deadline) {
			result.TruncatedReason = domain.TruncatedTimeBudget
			break
		}

		var page graphMessageList
		if err := s.doGet(client, nextLink, &page); err != nil {
			return nil, err
		}

		stop := false
		for _, raw := range page.Value {
			if expired(opts.Deadline) {
				result.TruncatedReason = domain.TruncatedTimeBudget
				stop = true
				break
			}
			if len(result.Messages) >= opts.MaxMessages {
				result.TruncatedReason = domain.TruncatedManualCap
				stop = true
				break
			}

			received, err := time.Parse(time.RFC3339, raw.ReceivedDateTime)
			if err != nil {
				s.log.WithError(err).WithField("message_id", raw.ID).Warn("skipping message, bad receivedDateTime")
				result.Scanned++
				continue
			}

			// Descending order: the first message at or under the
			// watermark ends the walk
			if !watermark.IsZero() && !received.After(watermark) {
				stop = true
				break
			}

			result.Scanned++
			msg, ok := s.parseMessage(raw, received)
			if !ok {
				continue
			}
			result.Messages = append(result.Messages, msg)

			if newestReceived == nil || received.After(*newestReceived) {
				t := received
				newestReceived = &t
				newestID = raw.ID
			}
		}

		if stop || result.TruncatedReason != "" {
			break
		}
		nextLink = page.NextLink
	}

	if newestReceived != nil {
		result.NewCursor = &domain.IngestCursor{
			UserID:         conn.UserID.String(),
			Provider:       domain.ProviderOutlook,
			LastReceivedAt: newestReceived,
			LastMessageID:  newestID,
		}
	}

	return result, nil
}

func (s *OutlookSource) firstPageURL(opts out.FetchOptions) string {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	if opts.MaxMessages > 0 && pageSize > opts.MaxMessages {
		pageSize = opts.MaxMessages
	}

	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", pageSize))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", "id,conversationId,subject,bodyPreview,body,receivedDateTime")

	return graphBaseURL + "/me/mailFolders/Inbox/messages?" + params.Encode()
}

func (s *OutlookSource) parseMessage(raw graphMessage, received time.Time) (domain.EmailMessage, bool) {
	body := raw.Body.Content
	if strings.EqualFold(raw.Body.ContentType, "html") {
		body = stripHTML(body)
	}
	body = cleanText(body)
	snippet := strings.TrimSpace(raw.BodyPreview)

	if raw.Subject == "" && body == "" && snippet == "" {
		return domain.EmailMessage{}, false
	}

	receivedUTC := received.UTC()

	return domain.EmailMessage{
		MessageID: outlookIDPrefix + raw.ID,
		ThreadID:  raw.ConversationID,
		Subject:   raw.Subject,
		Snippet:   snippet,
		Body:      body,
		SentAt:    &receivedUTC,
		Metadata: map[string]any{
			"provider":       string(domain.ProviderOutlook),
			"conversationId": raw.ConversationID,
		},
	}, true
}

func (s *OutlookSource) doGet(client *http.Client, requestURL string, result interface{}) error {
	resp, err := client.Get(requestURL)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "invalid_grant") {
			return out.NewProviderError("outlook", out.ProviderErrInvalidGrant, "refresh token revoked", err, false)
		}
		return out.NewProviderError("outlook", out.ProviderErrNetwork, "graph request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return s.wrapHTTPError(resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (s *OutlookSource) wrapHTTPError(statusCode int, body string) error {
	if strings.Contains(strings.ToLower(body), "invalid_grant") {
		return out.NewProviderError("outlook", out.ProviderErrInvalidGrant, "refresh token revoked", nil, false)
	}

	switch statusCode {
	case 401:
		return out.NewProviderError("outlook", out.ProviderErrTokenExpired, "token expired", nil, false)
	case 403:
		return out.NewProviderError("outlook", out.ProviderErrAuth, "access denied", nil, false)
	case 404:
		return out.NewProviderError("outlook", out.ProviderErrNotFound, "not found", nil, false)
	case 429:
		return out.NewProviderError("outlook", out.ProviderErrRateLimit, "too many requests", nil, true)
	default:
		return out.NewProviderError("outlook", out.ProviderErrServer, fmt.Sprintf("HTTP %d: %s", statusCode, body), nil, true)
	}
}

var _ out.MailSource = (*OutlookSource)(nil)
