package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "net/url"
  "strings"
  "time"

  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
)

// ApifyProfile is the subset of the profile-scraper dataset we care about.
type ApifyProfile struct {
  ID                string       `json:"id"`
  Username          string       `json:"username"`
  FullName          string       `json:"fullName"`
  Biography         string       `json:"biography"`
  URL               string       `json:"url"`
  ProfilePicURL     string       `json:"profilePicUrl"`
  FollowersCount    int          `json:"followersCount"`
  FollowsCount      int          `json:"followsCount"`
  PostsCount        int          `json:"postsCount"`
  Verified          bool         `json:"verified"`
  Private           bool         `json:"private"`
  IsBusinessAccount bool         `json:"isBusinessAccount"`
  BusinessCategory  string       `json:"businessCategoryName"`
  LatestPosts       []ApifyPost  `json:"latestPosts"`
}

type ApifyPost struct {
  ID               string    `json:"id"`
  ShortCode        string    `json:"shortCode"`
  Type             string    `json:"type"`
  Caption          string    `json:"caption"`
  URL              string    `json:"url"`
  DisplayURL       string    `json:"displayUrl"`
  OwnerUsername    string    `json:"ownerUsername"`
  Hashtags         []string  `json:"hashtags"`
  Mentions         []string  `json:"mentions"`
  LikesCount       *int      `json:"likesCount"`
  CommentsCount    *int      `json:"commentsCount"`
  VideoViewCount   *int      `json:"videoViewCount"`
  CommentsDisabled bool      `json:"isCommentsDisabled"`
  Timestamp        time.Time `json:"timestamp"`
}

type ApifyComment struct {
  ID              string    `json:"id"`
  Text            string    `json:"text"`
  LikesCount      int       `json:"likesCount"`
  OwnerUsername   string    `json:"ownerUsername"`
  OwnerIsVerified bool      `json:"ownerIsVerified"`
  Timestamp       time.Time `json:"timestamp"`
}

type ApifyClient interface {
  ScrapeProfile(ctx context.Context, handle string) (*ApifyProfile, error)
  ScrapeComments(ctx context.Context, postURL string, limit int) ([]ApifyComment, error)
}

type apifyClient struct {
  log          *logger.Logger
  baseURL      string
  token        string
  profileActor string
  commentActor string
  httpClient   *http.Client

  pollInterval time.Duration
  pollTimeout  time.Duration
}

func NewApifyClient(log *logger.Logger) (ApifyClient, error) {
  token := utils.GetEnv("APIFY_TOKEN", "", log)
  if token == "" {
    return nil, fmt.Errorf("missing APIFY_TOKEN")
  }

  baseURL := utils.GetEnv("APIFY_BASE_URL", "https://api.apify.com", log)
  profileActor := utils.GetEnv("APIFY_PROFILE_ACTOR", "apify~instagram-profile-scraper", log)
  commentActor := utils.GetEnv("APIFY_COMMENT_ACTOR", "apify~instagram-comment-scraper", log)

  pollInterval := utils.GetEnvAsDuration("APIFY_POLL_INTERVAL", 5*time.Second, log)
  pollTimeout := utils.GetEnvAsDuration("APIFY_POLL_TIMEOUT", 120*time.Second, log)

  return &apifyClient{
    log:          log.With("service", "ApifyClient"),
    baseURL:      baseURL,
    token:        token,
    profileActor: profileActor,
    commentActor: commentActor,
    httpClient:   &http.Client{Timeout: 60 * time.Second},
    pollInterval: pollInterval,
    pollTimeout:  pollTimeout,
  }, nil
}

// IsInstagramPostURL reports whether a URL points at a concrete instagram
// post or reel, the only shapes the comment scraper accepts.
func IsInstagramPostURL(raw string) bool {
  if raw == "" {
    return false
  }
  lower := strings.ToLower(raw)
  if !strings.Contains(lower, "instagram.com") {
    return false
  }
  return strings.Contains(lower, "/p/") || strings.Contains(lower, "/reel/")
}

type apifyRun struct {
  Data struct {
    ID               string `json:"id"`
    Status           string `json:"status"`
    DefaultDatasetID string `json:"defaultDatasetId"`
  } `json:"data"`
}

func (c *apifyClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
  var buf bytes.Buffer
  if body != nil {
    if err := json.NewEncoder(&buf).Encode(body); err != nil {
      return err
    }
  }

  req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
  if err != nil {
    return err
  }
  req.Header.Set("Authorization", "Bearer "+c.token)
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return &UpstreamError{Provider: "apify", StatusCode: resp.StatusCode, Body: string(raw)}
  }
  if out == nil {
    return nil
  }
  if uErr := json.Unmarshal(raw, out); uErr != nil {
    return fmt.Errorf("apify decode error: %w; raw=%s", uErr, string(raw))
  }
  return nil
}

// startRun kicks off an actor run without waiting for it.
func (c *apifyClient) startRun(ctx context.Context, actor string, input any) (*apifyRun, error) {
  path := fmt.Sprintf("/v2/acts/%s/runs", url.PathEscape(actor))
  var run apifyRun
  if err := c.doJSON(ctx, "POST", path, input, &run); err != nil {
    return nil, err
  }
  return &run, nil
}

// waitForRun polls run status until a terminal state or the poll timeout.
func (c *apifyClient) waitForRun(ctx context.Context, runID string) (*apifyRun, error) {
  deadline := time.Now().Add(c.pollTimeout)

  for {
    if ctx.Err() != nil {
      return nil, ctx.Err()
    }

    var run apifyRun
    if err := c.doJSON(ctx, "GET", "/v2/actor-runs/"+runID, nil, &run); err != nil {
      return nil, err
    }

    switch run.Data.Status {
    case "SUCCEEDED":
      return &run, nil
    case "FAILED", "ABORTED", "TIMED-OUT":
      return nil, &UpstreamError{Provider: "apify", Body: fmt.Sprintf("run %s ended with status %s", runID, run.Data.Status)}
    }

    if time.Now().After(deadline) {
      return nil, &UpstreamError{Provider: "apify", Body: fmt.Sprintf("run %s still %s after %s", runID, run.Data.Status, c.pollTimeout)}
    }

    select {
    case <-ctx.Done():
      return nil, ctx.Err()
    case <-time.After(c.pollInterval):
    }
  }
}

func (c *apifyClient) datasetItems(ctx context.Context, datasetID string, out any) error {
  path := fmt.Sprintf("/v2/datasets/%s/items?clean=true", datasetID)
  return c.doJSON(ctx, "GET", path, nil, out)
}

func (c *apifyClient) ScrapeProfile(ctx context.Context, handle string) (*ApifyProfile, error) {
  input := map[string]any{
    "usernames": []string{handle},
  }

  run, err := c.startRun(ctx, c.profileActor, input)
  if err != nil {
    return nil, err
  }
  run, err = c.waitForRun(ctx, run.Data.ID)
  if err != nil {
    return nil, err
  }

  var items []ApifyProfile
  if err := c.datasetItems(ctx, run.Data.DefaultDatasetID, &items); err != nil {
    return nil, err
  }
  if len(items) == 0 {
    return nil, &UpstreamError{Provider: "apify", Body: fmt.Sprintf("profile scrape for %q returned no items", handle)}
  }
  return &items[0], nil
}

// apifyCommentItem carries the scraper's error shapes alongside real
// comments; private and empty posts come back as a single error row.
type apifyCommentItem struct {
  ApifyComment
  Error string `json:"error"`
}

func (c *apifyClient) ScrapeComments(ctx context.Context, postURL string, limit int) ([]ApifyComment, error) {
  if !IsInstagramPostURL(postURL) {
    return nil, fmt.Errorf("%w: %s", ErrInvalidPostURL, postURL)
  }

  input := map[string]any{
    "directUrls":    []string{postURL},
    "resultsLimit":  limit,
  }

  run, err := c.startRun(ctx, c.commentActor, input)
  if err != nil {
    return nil, err
  }
  run, err = c.waitForRun(ctx, run.Data.ID)
  if err != nil {
    return nil, err
  }

  var items []apifyCommentItem
  if err := c.datasetItems(ctx, run.Data.DefaultDatasetID, &items); err != nil {
    return nil, err
  }

  comments := make([]ApifyComment, 0, len(items))
  for _, item := range items {
    if item.Error != "" {
      // "Empty or private data" is a normal outcome for comment-less or
      // locked posts, not a failure.
      if strings.Contains(strings.ToLower(item.Error), "empty or private") {
        continue
      }
      return nil, &UpstreamError{Provider: "apify", Body: item.Error}
    }
    if item.ID == "" {
      continue
    }
    comments = append(comments, item.ApifyComment)
  }
  return comments, nil
}
