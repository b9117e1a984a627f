package services

import (
  "context"
  "fmt"
  "testing"
  "time"

  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

func TestIsInstagramPostURL(t *testing.T) {
  cases := []struct {
    name string
    url  string
    want bool
  }{
    {name: "post", url: "https://www.instagram.com/p/Cabc123/", want: true},
    {name: "reel", url: "https://instagram.com/reel/Cxyz789/", want: true},
    {name: "uppercase_host", url: "https://WWW.INSTAGRAM.COM/P/Cabc/", want: true},
    {name: "profile_only", url: "https://www.instagram.com/somecandidate/", want: false},
    {name: "stories", url: "https://www.instagram.com/stories/somecandidate/123/", want: false},
    {name: "other_host", url: "https://example.com/p/Cabc123/", want: false},
    {name: "empty", url: "", want: false},
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      if got := IsInstagramPostURL(tc.url); got != tc.want {
        t.Fatalf("IsInstagramPostURL(%q)=%v, want %v", tc.url, got, tc.want)
      }
    })
  }
}

func seedPostForCollection(t *testing.T, candidateRepo repos.CandidateRepo, postRepo repos.PostRepo, url string) *types.Post {
  t.Helper()

  ctx := context.Background()
  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Collected", InstagramHandle: "collected", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }
  post := &types.Post{
    CandidateID:     created[0].ID,
    InstagramPostID: "ig-collect",
    URL:             url,
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{post}); err != nil {
    t.Fatalf("failed to seed post: %v", err)
  }
  return post
}

func TestCollectForPostDedup(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)
  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  ctx := context.Background()

  post := seedPostForCollection(t, candidateRepo, postRepo, "https://www.instagram.com/p/abc/")

  scraped := make([]ApifyComment, 0, 4)
  for i := 0; i < 4; i++ {
    scraped = append(scraped, ApifyComment{
      ID:        fmt.Sprintf("ac-%d", i),
      Text:      fmt.Sprintf("substantial scraped comment %d", i),
      Timestamp: time.Now(),
    })
  }
  apify := &fakeApify{comments: scraped}

  svc := NewCommentService(log, postRepo, commentRepo, apify, nil, CommentConfig{
    Window: 7 * 24 * time.Hour, MinAge: 24 * time.Hour, Margin: 2, SweepBatch: 3,
  })

  inserted, err := svc.CollectForPost(ctx, post.ID)
  if err != nil {
    t.Fatalf("first collection failed: %v", err)
  }
  if inserted != 4 {
    t.Fatalf("inserted=%d, want 4", inserted)
  }

  // Collecting again with the same upstream payload adds nothing.
  inserted, err = svc.CollectForPost(ctx, post.ID)
  if err != nil {
    t.Fatalf("second collection failed: %v", err)
  }
  if inserted != 0 {
    t.Fatalf("second collection inserted=%d, want 0", inserted)
  }

  count, err := commentRepo.CountByPost(ctx, nil, post.ID)
  if err != nil {
    t.Fatalf("count failed: %v", err)
  }
  if count != 4 {
    t.Fatalf("stored %d comments, want 4", count)
  }
}

func TestCollectForPostInvalidURLIsTerminal(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)
  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  ctx := context.Background()

  post := seedPostForCollection(t, candidateRepo, postRepo, "https://www.instagram.com/collected/")
  apify := &fakeApify{}

  svc := NewCommentService(log, postRepo, commentRepo, apify, nil, CommentConfig{
    Window: 7 * 24 * time.Hour, MinAge: 24 * time.Hour, Margin: 2, SweepBatch: 3,
  })

  inserted, err := svc.CollectForPost(ctx, post.ID)
  if err != nil {
    t.Fatalf("invalid url should not be an error: %v", err)
  }
  if inserted != 0 {
    t.Fatalf("inserted=%d, want 0", inserted)
  }

  stored, err := postRepo.GetByID(ctx, nil, post.ID)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if stored.CommentsProcessedAt == nil {
    t.Fatal("post with invalid url must be stamped processed")
  }
}

func TestRecollectSweepStampsAtMostOnce(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)
  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Swept", InstagramHandle: "swept", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }

  postedAt := time.Now().Add(-2 * 24 * time.Hour)
  firstPass := time.Now().Add(-30 * time.Hour)
  reported := 10
  post := &types.Post{
    CandidateID:         created[0].ID,
    InstagramPostID:     "ig-sweep",
    URL:                 "https://www.instagram.com/p/sweep/",
    PostedAt:            &postedAt,
    CommentsProcessedAt: &firstPass,
    CommentsCount:       &reported,
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{post}); err != nil {
    t.Fatalf("failed to seed post: %v", err)
  }

  seed := []*types.Comment{
    {PostID: post.ID, InstagramCommentID: "old-1", Text: "stored comment from first pass"},
  }
  if _, _, err := commentRepo.InsertIfAbsent(ctx, nil, seed); err != nil {
    t.Fatalf("failed to seed comments: %v", err)
  }

  apify := &fakeApify{comments: []ApifyComment{
    {ID: "old-1", Text: "stored comment from first pass"},
    {ID: "new-1", Text: "a comment the first pass missed"},
    {ID: "new-2", Text: "another late arriving comment"},
  }}

  svc := NewCommentService(log, postRepo, commentRepo, apify, nil, CommentConfig{
    Window: 7 * 24 * time.Hour, MinAge: 24 * time.Hour, Margin: 2, SweepBatch: 3,
  })

  collected, err := svc.RecollectSweep(ctx)
  if err != nil {
    t.Fatalf("sweep failed: %v", err)
  }
  if collected != 2 {
    t.Fatalf("collected=%d new comments, want 2", collected)
  }

  stored, err := postRepo.GetByID(ctx, nil, post.ID)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if !stored.Reprocessed {
    t.Fatal("post must be stamped reprocessed after the sweep")
  }

  // A second sweep must skip the already-reprocessed post entirely.
  callsBefore := apify.calls.Load()
  collected, err = svc.RecollectSweep(ctx)
  if err != nil {
    t.Fatalf("second sweep failed: %v", err)
  }
  if collected != 0 {
    t.Fatalf("second sweep collected=%d, want 0", collected)
  }
  if apify.calls.Load() != callsBefore {
    t.Fatal("second sweep should not hit the scraper")
  }
}
