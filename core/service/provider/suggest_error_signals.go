package provider

import (
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"suggest_server/core/port/out"
)

// ExtractErrorSignals collects lowercase strings from every layer of a
// provider failure. OAuth libraries bury the grant status in different
// places depending on which hop failed, so the whole chain is scanned.
func ExtractErrorSignals(err error) []string {
	if err == nil {
		return nil
	}

	signals := make([]string, 0, 8)
	add := func(s string) {
		if s != "" {
			signals = append(signals, strings.ToLower(s))
		}
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		add(current.Error())
	}

	var provErr *out.ProviderError
	if errors.As(err, &provErr) {
		add(string(provErr.Code))
		add(provErr.Message)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		add(retrieveErr.ErrorCode)
		add(retrieveErr.ErrorDescription)
		add(string(retrieveErr.Body))
		if retrieveErr.Response != nil {
			add(retrieveErr.Response.Status)
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		add(apiErr.Message)
		add(apiErr.Body)
	}

	return signals
}

// IsInvalidGrant reports whether any signal in the error chain names
// an invalid_grant failure
func IsInvalidGrant(err error) bool {
	for _, signal := range ExtractErrorSignals(err) {
		if strings.Contains(signal, "invalid_grant") {
			return true
		}
	}
	return false
}
