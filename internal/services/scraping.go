package services

import (
  "context"
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
)

type ScrapingService interface {
  SyncCandidate(ctx context.Context, candidateID uuid.UUID) error
  ProcessNext(ctx context.Context) (bool, error)
  Stats(ctx context.Context) (map[string]int64, error)
}

type scrapingService struct {
  log             *logger.Logger
  candidateRepo   repos.CandidateRepo
  postRepo        repos.PostRepo
  followerHistory repos.FollowerHistoryRepo
  apify           ApifyClient

  cooldown time.Duration
}

func NewScrapingService(baseLog *logger.Logger, candidateRepo repos.CandidateRepo, postRepo repos.PostRepo, followerHistory repos.FollowerHistoryRepo, apify ApifyClient) ScrapingService {
  log := baseLog.With("service", "ScrapingService")
  cooldown := utils.GetEnvAsDuration("SCRAPE_COOLDOWN", 48*time.Hour, baseLog)

  return &scrapingService{
    log:             log,
    candidateRepo:   candidateRepo,
    postRepo:        postRepo,
    followerHistory: followerHistory,
    apify:           apify,
    cooldown:        cooldown,
  }
}

// SyncCandidate refreshes one candidate from their public profile: snapshot
// fields, a follower history entry with deltas against the previous
// measurement, and the latest posts upserted by their platform id.
func (ss *scrapingService) SyncCandidate(ctx context.Context, candidateID uuid.UUID) error {
  candidate, err := ss.candidateRepo.GetByID(ctx, nil, candidateID)
  if err != nil {
    return err
  }
  if candidate.InstagramHandle == "" {
    ss.log.Warn("Candidate has no instagram handle", "candidate_id", candidateID)
    return nil
  }

  profile, err := ss.apify.ScrapeProfile(ctx, candidate.InstagramHandle)
  if err != nil {
    return err
  }

  now := time.Now()
  fields := map[string]any{
    "instagram_id":        profile.ID,
    "instagram_url":       profile.URL,
    "full_name":           profile.FullName,
    "biography":           profile.Biography,
    "profile_pic_url":     profile.ProfilePicURL,
    "followers_count":     profile.FollowersCount,
    "follows_count":       profile.FollowsCount,
    "posts_count":         profile.PostsCount,
    "verified":            profile.Verified,
    "private":             profile.Private,
    "is_business_account": profile.IsBusinessAccount,
    "business_category":   profile.BusinessCategory,
    "last_scraped_at":     now,
  }
  if err := ss.candidateRepo.UpdateInstagramSnapshot(ctx, nil, candidateID, fields); err != nil {
    return err
  }

  if err := ss.recordFollowerHistory(ctx, candidate, profile, now); err != nil {
    ss.log.Error("Failed to record follower history", "candidate_id", candidateID, "error", err)
  }

  posts := make([]*types.Post, 0, len(profile.LatestPosts))
  for _, raw := range profile.LatestPosts {
    if raw.ID == "" {
      continue
    }
    hashtags, _ := json.Marshal(raw.Hashtags)
    mentions, _ := json.Marshal(raw.Mentions)
    postedAt := raw.Timestamp
    posts = append(posts, &types.Post{
      CandidateID:      candidateID,
      InstagramPostID:  raw.ID,
      ShortCode:        raw.ShortCode,
      Type:             raw.Type,
      Caption:          raw.Caption,
      URL:              raw.URL,
      DisplayURL:       raw.DisplayURL,
      OwnerUsername:    raw.OwnerUsername,
      Hashtags:         datatypes.JSON(hashtags),
      Mentions:         datatypes.JSON(mentions),
      LikesCount:       raw.LikesCount,
      CommentsCount:    raw.CommentsCount,
      VideoViewCount:   raw.VideoViewCount,
      CommentsDisabled: raw.CommentsDisabled,
      PostedAt:         &postedAt,
    })
  }
  if err := ss.postRepo.UpsertSnapshots(ctx, nil, posts); err != nil {
    return err
  }

  ss.log.Info("Candidate synced",
    "candidate_id", candidateID,
    "handle", candidate.InstagramHandle,
    "followers", profile.FollowersCount,
    "posts", len(posts),
  )
  return nil
}

func (ss *scrapingService) recordFollowerHistory(ctx context.Context, candidate *types.Candidate, profile *ApifyProfile, now time.Time) error {
  previous, err := ss.followerHistory.LatestByCandidate(ctx, nil, candidate.ID)
  if err != nil {
    return err
  }

  entry := &types.FollowerHistory{
    CandidateID:    candidate.ID,
    FollowersCount: profile.FollowersCount,
    FollowsCount:   profile.FollowsCount,
    PostsCount:     profile.PostsCount,
    CollectionType: "AUTOMATIC",
    CollectedAt:    now,
  }

  if previous != nil {
    delta := profile.FollowersCount - previous.FollowersCount
    entry.FollowerDelta = &delta

    if previous.FollowersCount > 0 {
      pct := round2(float64(delta) / float64(previous.FollowersCount) * 100)
      entry.DeltaPercent = &pct
    }

    days := int(now.Sub(previous.CollectedAt).Hours() / 24)
    entry.DaysBetween = &days
  }

  _, err = ss.followerHistory.Create(ctx, nil, entry)
  return err
}

// ProcessNext syncs the single most overdue candidate. Returns false when
// nobody is due, which the scheduler treats as an idle tick.
func (ss *scrapingService) ProcessNext(ctx context.Context) (bool, error) {
  candidate, err := ss.candidateRepo.NextDueForScrape(ctx, nil, ss.cooldown)
  if err != nil {
    return false, err
  }
  if candidate == nil {
    ss.log.Debug("No candidate due for scraping")
    return false, nil
  }

  if err := ss.SyncCandidate(ctx, candidate.ID); err != nil {
    return false, err
  }
  return true, nil
}

func (ss *scrapingService) Stats(ctx context.Context) (map[string]int64, error) {
  total, scraped, due, err := ss.candidateRepo.ScrapeStats(ctx, nil, ss.cooldown)
  if err != nil {
    return nil, err
  }
  return map[string]int64{
    "total":   total,
    "scraped": scraped,
    "due":     due,
  }, nil
}
