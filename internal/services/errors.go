package services

import (
  "errors"
  "fmt"
)

// ErrInvalidPostURL marks a post whose URL cannot be fed to the comment
// scraper. Callers treat it as permanent: the post is stamped processed with
// zero comments instead of being retried.
var ErrInvalidPostURL = errors.New("post url is not a valid instagram post or reel url")

// UpstreamError wraps a failure from an external provider (scraper or model
// API) with enough context to decide on retries.
type UpstreamError struct {
  Provider   string
  StatusCode int
  Body       string
}

func (e *UpstreamError) Error() string {
  if e.StatusCode > 0 {
    return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
  }
  return fmt.Sprintf("%s: %s", e.Provider, e.Body)
}

func upstreamRetryable(err error) bool {
  var ue *UpstreamError
  if errors.As(err, &ue) {
    if ue.StatusCode == 408 || ue.StatusCode == 429 {
      return true
    }
    if ue.StatusCode >= 500 && ue.StatusCode <= 599 {
      return true
    }
    return false
  }
  return true
}
