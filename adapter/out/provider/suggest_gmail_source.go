package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/httputil"
	"suggest_server/pkg/logger"
)

// GmailSource reads the Gmail inbox through the official API behind a
// circuit breaker. Per-message fetch failures are logged and skipped,
// a single bad message never sinks the run.
type GmailSource struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

func NewGmailSource(config *oauth2.Config) *GmailSource {
	log := logger.Default().WithField("component", "gmail_source")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("from", from.String()).WithField("to", to.String()).Warn("circuit breaker state changed")
		},
	}

	return &GmailSource{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    log,
	}
}

func (s *GmailSource) Name() domain.EmailProvider {
	return domain.ProviderGmail
}

func (s *GmailSource) FetchMessages(ctx context.Context, conn *domain.OAuthConnection, cursor *domain.IngestCursor, opts out.FetchOptions) (*out.FetchResult, error) {
	// The oauth2 transport picks up the pooled client from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GmailClient())
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource(ctx, s.config, conn)))
	if err != nil {
		return nil, s.wrapError(err, "failed to create gmail service")
	}

	query := s.buildQuery(cursor, opts)
	result := &out.FetchResult{}
	watermark := newGmailWatermark(cursor)
	pageToken := ""

	for {
		if expired(opts.Deadline) {
			result.TruncatedReason = domain.TruncatedTimeBudget
			break
		}

		remaining := opts.MaxMessages - len(result.Messages)
		if remaining <= 0 {
			result.TruncatedReason = domain.TruncatedManualCap
			break
		}

		pageSize := opts.PageSize
		if pageSize <= 0 || pageSize > remaining {
			pageSize = remaining
		}

		list, err := s.listPage(ctx, svc, query, pageToken, int64(pageSize))
		if err != nil {
			return nil, err
		}

		for _, ref := range list.Messages {
			if expired(opts.Deadline) {
				result.TruncatedReason = domain.TruncatedTimeBudget
				break
			}
			if len(result.Messages) >= opts.MaxMessages {
				result.TruncatedReason = domain.TruncatedManualCap
				break
			}

			result.Scanned++
			msg, err := s.getMessage(ctx, svc, ref.Id)
			if err != nil {
				s.log.WithError(err).WithField("message_id", ref.Id).Warn("skipping message, fetch failed")
				continue
			}

			parsed, ok := s.parseMessage(msg)
			if !ok {
				continue
			}
			result.Messages = append(result.Messages, parsed)

			watermark.observe(msg)
		}

		if result.TruncatedReason != "" {
			break
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	result.NewCursor = watermark.cursor(conn.UserID.String())

	return result, nil
}

// gmailWatermark tracks the newest internalDate seen during a fetch.
// It is seeded from the stored cursor, so a run that only sees older
// mail never moves the watermark backwards.
type gmailWatermark struct {
	prevInternalMs   int64
	newestInternalMs int64
	newestID         string
	newestHistoryID  uint64
}

func newGmailWatermark(cursor *domain.IngestCursor) *gmailWatermark {
	w := &gmailWatermark{}
	if cursor != nil {
		w.prevInternalMs = cursor.LastInternalMs
		w.newestInternalMs = cursor.LastInternalMs
		w.newestID = cursor.LastMessageID
		w.newestHistoryID = cursor.LastHistoryID
	}
	return w
}

func (w *gmailWatermark) observe(msg *gmail.Message) {
	if msg.InternalDate > w.newestInternalMs {
		w.newestInternalMs = msg.InternalDate
		w.newestID = msg.Id
		w.newestHistoryID = msg.HistoryId
	}
}

// cursor returns the advanced cursor, or nil when nothing newer than
// the stored watermark was seen
func (w *gmailWatermark) cursor(userID string) *domain.IngestCursor {
	if w.newestInternalMs <= w.prevInternalMs {
		return nil
	}
	return &domain.IngestCursor{
		UserID:         userID,
		Provider:       domain.ProviderGmail,
		LastInternalMs: w.newestInternalMs,
		LastHistoryID:  w.newestHistoryID,
		LastMessageID:  w.newestID,
	}
}

// buildQuery restricts the listing to the inbox window: past the
// cursor watermark, inside the lookback, excluded categories removed
func (s *GmailSource) buildQuery(cursor *domain.IngestCursor, opts out.FetchOptions) string {
	terms := make([]string, 0, 4)

	var afterSec int64
	if cursor != nil && cursor.LastInternalMs > 0 {
		afterSec = cursor.LastInternalMs / 1000
	} else if opts.LookbackDays > 0 {
		afterSec = time.Now().AddDate(0, 0, -opts.LookbackDays).Unix()
	}
	if afterSec > 0 {
		terms = append(terms, fmt.Sprintf("after:%d", afterSec))
	}

	for _, category := range opts.ExcludeCategories {
		category = strings.TrimSpace(category)
		if category != "" {
			terms = append(terms, "-category:"+category)
		}
	}

	return strings.Join(terms, " ")
}

func (s *GmailSource) listPage(ctx context.Context, svc *gmail.Service, query, pageToken string, pageSize int64) (*gmail.ListMessagesResponse, error) {
	var list *gmail.ListMessagesResponse
	err := s.execute("list messages", func() error {
		call := svc.Users.Messages.List("me").
			LabelIds("INBOX").
			MaxResults(pageSize).
			Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var err error
		list, err = call.Do()
		return err
	})
	if err != nil {
		return nil, s.wrapError(err, "failed to list messages")
	}
	return list, nil
}

func (s *GmailSource) getMessage(ctx context.Context, svc *gmail.Service, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := s.execute("get message", func() error {
		var err error
		msg, err = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, s.wrapError(err, "failed to get message")
	}
	return msg, nil
}

func (s *GmailSource) parseMessage(msg *gmail.Message) (domain.EmailMessage, bool) {
	subject := headerValue(msg.Payload, "Subject")
	body := extractBody(msg.Payload)
	snippet := strings.TrimSpace(msg.Snippet)

	if subject == "" && body == "" && snippet == "" {
		return domain.EmailMessage{}, false
	}

	var sentAt *time.Time
	if msg.InternalDate > 0 {
		t := time.UnixMilli(msg.InternalDate).UTC()
		sentAt = &t
	}

	return domain.EmailMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Subject:   subject,
		Snippet:   snippet,
		Body:      body,
		SentAt:    sentAt,
		Metadata: map[string]any{
			"provider":     string(domain.ProviderGmail),
			"labelIds":     msg.LabelIds,
			"sizeEstimate": msg.SizeEstimate,
		},
	}, true
}

// execute runs fn through the circuit breaker. Client-class errors are
// wrapped so they do not trip the breaker.
func (s *GmailSource) execute(operation string, fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	if err != nil {
		s.log.WithError(err).WithField("operation", operation).WithField("state", s.cb.State().String()).Warn("gmail call failed")
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (e *nonCircuitError) Unwrap() error {
	return e.err
}

func (s *GmailSource) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if retrieveErr, ok := err.(*oauth2.RetrieveError); ok {
		if strings.Contains(strings.ToLower(string(retrieveErr.Body)), "invalid_grant") {
			return out.NewProviderError("gmail", out.ProviderErrInvalidGrant, "refresh token revoked", err, false)
		}
		return out.NewProviderError("gmail", out.ProviderErrAuth, "token refresh failed", err, false)
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return out.NewProviderError("gmail", out.ProviderErrTokenExpired, "token expired", err, false)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") || strings.Contains(apiErr.Message, "rateLimitExceeded") {
				return out.NewProviderError("gmail", out.ProviderErrRateLimit, "rate limit exceeded", err, true)
			}
			return out.NewProviderError("gmail", out.ProviderErrAuth, "access denied", err, false)
		case 404:
			return out.NewProviderError("gmail", out.ProviderErrNotFound, "resource not found", err, false)
		case 429:
			return out.NewProviderError("gmail", out.ProviderErrRateLimit, "rate limit exceeded", err, true)
		default:
			if apiErr.Code >= 500 {
				return out.NewProviderError("gmail", out.ProviderErrServer, "gmail server error", err, true)
			}
		}
	}

	return out.NewProviderError("gmail", out.ProviderErrNetwork, defaultMsg, err, true)
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

var _ out.MailSource = (*GmailSource)(nil)
