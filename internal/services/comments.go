package services

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
)

const commentCollectionCap = 50

// CommentConfig bounds the second-pass sweep: only posts published inside
// Window, first collected at least MinAge ago, and reporting more than
// Margin comments beyond what we stored, in batches of SweepBatch.
type CommentConfig struct {
  Window     time.Duration
  MinAge     time.Duration
  Margin     int
  SweepBatch int
}

func CommentConfigFromEnv(log *logger.Logger) CommentConfig {
  return CommentConfig{
    Window:     utils.GetEnvAsDuration("RECOLLECT_WINDOW", 7*24*time.Hour, log),
    MinAge:     utils.GetEnvAsDuration("RECOLLECT_MIN_AGE", 24*time.Hour, log),
    Margin:     utils.GetEnvAsInt("RECOLLECT_MARGIN", 2, log),
    SweepBatch: utils.GetEnvAsInt("RECOLLECT_SWEEP_BATCH", 3, log),
  }
}

type CommentService interface {
  CollectForPost(ctx context.Context, postID uuid.UUID) (int, error)
  ProcessNext(ctx context.Context) (bool, error)
  RecollectSweep(ctx context.Context) (int, error)
}

type commentService struct {
  log         *logger.Logger
  postRepo    repos.PostRepo
  commentRepo repos.CommentRepo
  apify       ApifyClient
  sentiment   SentimentService
  cfg         CommentConfig
}

func NewCommentService(baseLog *logger.Logger, postRepo repos.PostRepo, commentRepo repos.CommentRepo, apify ApifyClient, sentiment SentimentService, cfg CommentConfig) CommentService {
  return &commentService{
    log:         baseLog.With("service", "CommentService"),
    postRepo:    postRepo,
    commentRepo: commentRepo,
    apify:       apify,
    sentiment:   sentiment,
    cfg:         cfg,
  }
}

// CollectForPost scrapes up to the cap of comments and inserts the ones not
// seen before. An invalid URL is terminal: the post is stamped processed with
// whatever it has so the queue never revisits it.
func (cs *commentService) CollectForPost(ctx context.Context, postID uuid.UUID) (int, error) {
  post, err := cs.postRepo.GetByID(ctx, nil, postID)
  if err != nil {
    return 0, err
  }

  scraped, err := cs.apify.ScrapeComments(ctx, post.URL, commentCollectionCap)
  if err != nil {
    if errors.Is(err, ErrInvalidPostURL) {
      cs.log.Warn("Post has no collectable url", "post_id", postID, "url", post.URL)
      if markErr := cs.postRepo.MarkCommentsProcessed(ctx, nil, postID, time.Now()); markErr != nil {
        return 0, markErr
      }
      return 0, nil
    }
    return 0, err
  }

  comments := make([]*types.Comment, 0, len(scraped))
  for _, raw := range scraped {
    comments = append(comments, &types.Comment{
      PostID:             postID,
      InstagramCommentID: raw.ID,
      Text:               raw.Text,
      LikesCount:         raw.LikesCount,
      OwnerUsername:      raw.OwnerUsername,
      OwnerIsVerified:    raw.OwnerIsVerified,
      PostedAt:           raw.Timestamp,
    })
  }

  inserted, skipped, err := cs.commentRepo.InsertIfAbsent(ctx, nil, comments)
  if err != nil {
    return 0, err
  }
  if err := cs.postRepo.MarkCommentsProcessed(ctx, nil, postID, time.Now()); err != nil {
    return inserted, err
  }

  cs.log.Info("Comments collected",
    "post_id", postID,
    "scraped", len(scraped),
    "inserted", inserted,
    "skipped", skipped,
  )
  return inserted, nil
}

// ProcessNext collects the oldest uncollected post, then runs a best-effort
// sentiment pass on it. The cron sweep remains the authoritative path, so a
// sentiment failure here only logs.
func (cs *commentService) ProcessNext(ctx context.Context) (bool, error) {
  post, err := cs.postRepo.NextUnprocessed(ctx, nil)
  if err != nil {
    return false, err
  }
  if post == nil {
    cs.log.Debug("No post pending comment collection")
    return false, nil
  }

  if _, err := cs.CollectForPost(ctx, post.ID); err != nil {
    return false, err
  }

  if cs.sentiment != nil {
    if _, err := cs.sentiment.AnalyzePost(ctx, post.ID); err != nil {
      cs.log.Warn("Inline sentiment pass failed", "post_id", post.ID, "error", err)
    }
  }
  return true, nil
}

// RecollectSweep gives recent posts a second collection pass when the
// platform reports comments we missed. Each post gets exactly one extra
// pass: the reprocessed flag is stamped whether or not the pass produced
// anything, so a failing post cannot wedge the sweep.
func (cs *commentService) RecollectSweep(ctx context.Context) (int, error) {
  posts, err := cs.postRepo.ListRecollectEligible(ctx, nil, cs.cfg.Window, cs.cfg.MinAge, cs.cfg.Margin, cs.cfg.SweepBatch)
  if err != nil {
    return 0, err
  }

  collected := 0
  for _, post := range posts {
    if ctx.Err() != nil {
      return collected, ctx.Err()
    }

    inserted, err := cs.CollectForPost(ctx, post.ID)
    if err != nil {
      cs.log.Error("Recollect pass failed", "post_id", post.ID, "error", err)
    } else {
      collected += inserted
    }

    if err := cs.postRepo.MarkReprocessed(ctx, nil, post.ID); err != nil {
      cs.log.Error("Failed to stamp reprocessed flag", "post_id", post.ID, "error", err)
    }
  }

  if len(posts) > 0 {
    cs.log.Info("Recollect sweep finished", "posts", len(posts), "new_comments", collected)
  }
  return collected, nil
}
