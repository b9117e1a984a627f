package services

import (
  "context"
  "fmt"
  "testing"
  "time"

  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

func TestFilterRelevantComments(t *testing.T) {
  cases := []struct {
    name string
    text string
    want bool
  }{
    {name: "substantive", text: "great proposal for public transport", want: true},
    {name: "short_opinion", text: "bad idea", want: true},
    {name: "empty", text: "", want: false},
    {name: "too_short", text: "ok", want: false},
    {name: "emoji_only", text: "😀😀😀", want: false},
    {name: "long_emoji_run", text: "😀😀😀😀😀😀😀😀😀😀😀", want: false},
    {name: "laughter_spam", text: "kkkkkk", want: false},
    {name: "generic_praise_spam", text: "toppp", want: false},
    {name: "mention_chain", text: "@friend @other", want: false},
    {name: "hashtag_chain", text: "#vote #now", want: false},
    {name: "pure_digits", text: "2026", want: false},
    {name: "punctuation_run", text: "!!!???", want: false},
    {name: "digits_with_words", text: "2026 will be our year", want: true},
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      in := []*types.Comment{{Text: tc.text}}
      got := len(FilterRelevantComments(in)) == 1
      if got != tc.want {
        t.Fatalf("FilterRelevantComments(%q) kept=%v, want %v", tc.text, got, tc.want)
      }
    })
  }
}

func makeComments(n int, textLen int, uniqueOwners bool) []*types.Comment {
  comments := make([]*types.Comment, 0, n)
  text := ""
  for len(text) < textLen {
    text += "palavra "
  }
  for i := 0; i < n; i++ {
    owner := "same_user"
    if uniqueOwners {
      owner = fmt.Sprintf("user_%d", i)
    }
    comments = append(comments, &types.Comment{
      Text:          text[:textLen],
      OwnerUsername: owner,
    })
  }
  return comments
}

func TestSentimentConfidenceBounds(t *testing.T) {
  cases := []struct {
    name     string
    comments []*types.Comment
    result   sentimentResult
  }{
    {name: "tiny_sample", comments: makeComments(1, 5, false), result: sentimentResult{Score: 0.0}},
    {name: "large_diverse", comments: makeComments(60, 100, true), result: sentimentResult{Score: 0.4}},
    {name: "polarized_small", comments: makeComments(3, 20, false), result: sentimentResult{Score: 0.95}},
    {name: "neutral_large", comments: makeComments(50, 50, true), result: sentimentResult{Score: 0.0}},
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      got := SentimentConfidence(tc.comments, tc.result)
      if got < 0.1 || got > 0.9 {
        t.Fatalf("confidence %v outside [0.1, 0.9]", got)
      }
    })
  }
}

func TestSentimentConfidencePolarizedPenalty(t *testing.T) {
  // Same sample, polarized vs moderate score: the polarized claim on thin
  // evidence must not come out more confident.
  comments := makeComments(8, 60, true)

  polarized := SentimentConfidence(comments, sentimentResult{Score: 0.9})
  moderate := SentimentConfidence(comments, sentimentResult{Score: 0.4})

  if polarized >= moderate {
    t.Fatalf("polarized score on %d comments got confidence %v, moderate got %v", len(comments), polarized, moderate)
  }
}

func TestSentimentConfidenceGrowsWithEvidence(t *testing.T) {
  small := SentimentConfidence(makeComments(5, 60, true), sentimentResult{Score: 0.3})
  large := SentimentConfidence(makeComments(60, 60, true), sentimentResult{Score: 0.3})

  if large <= small {
    t.Fatalf("confidence did not grow with sample size: small=%v large=%v", small, large)
  }
}

func TestCoerceSentimentDefaults(t *testing.T) {
  cases := []struct {
    name      string
    obj       map[string]any
    wantLabel string
    wantScore float64
  }{
    {
      name:      "valid",
      obj:       map[string]any{"label": "POSITIVE", "score": 0.8, "confidence": 0.7},
      wantLabel: types.SentimentLabelPositive,
      wantScore: 0.8,
    },
    {
      name:      "bad_label",
      obj:       map[string]any{"label": "GREAT", "score": 0.8},
      wantLabel: types.SentimentLabelNeutral,
      wantScore: 0.8,
    },
    {
      name:      "score_out_of_range",
      obj:       map[string]any{"label": "NEGATIVE", "score": -3.0},
      wantLabel: types.SentimentLabelNegative,
      wantScore: 0.0,
    },
    {
      name:      "empty",
      obj:       map[string]any{},
      wantLabel: types.SentimentLabelNeutral,
      wantScore: 0.0,
    },
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      got := coerceSentiment(tc.obj)
      if got.Label != tc.wantLabel {
        t.Fatalf("label=%q, want %q", got.Label, tc.wantLabel)
      }
      if got.Score != tc.wantScore {
        t.Fatalf("score=%v, want %v", got.Score, tc.wantScore)
      }
    })
  }
}

func TestCoerceTermListCaps(t *testing.T) {
  raw := []any{"economy", "health", "ok", "12345", "😀😀😀", "education", "security", "transport"}

  got := coerceTermList(raw, 4)
  if len(got) != 4 {
    t.Fatalf("got %d terms, want 4", len(got))
  }
  for _, term := range got {
    if term == "ok" || term == "12345" || term == "😀😀😀" {
      t.Fatalf("term %q should have been filtered", term)
    }
  }
}

func TestAnalyzePostAtMostOnce(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)

  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  sentimentRepo := repos.NewSentimentRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Analyzed", InstagramHandle: "analyzed", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }
  post := &types.Post{
    CandidateID:     created[0].ID,
    InstagramPostID: "ig-1",
    URL:             "https://www.instagram.com/p/abc/",
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{post}); err != nil {
    t.Fatalf("failed to seed post: %v", err)
  }

  comments := make([]*types.Comment, 0, 12)
  for i := 0; i < 12; i++ {
    comments = append(comments, &types.Comment{
      PostID:             post.ID,
      InstagramCommentID: fmt.Sprintf("c-%d", i),
      Text:               fmt.Sprintf("substantive political comment number %d", i),
      OwnerUsername:      fmt.Sprintf("user_%d", i),
      PostedAt:           time.Now(),
    })
  }
  if _, _, err := commentRepo.InsertIfAbsent(ctx, nil, comments); err != nil {
    t.Fatalf("failed to seed comments: %v", err)
  }

  gemini := &fakeGemini{response: map[string]any{
    "label":      "POSITIVE",
    "score":      0.6,
    "confidence": 0.8,
    "insights": map[string]any{
      "keywords": []any{"support", "campaign"},
      "themes":   []any{"education"},
      "summary":  "mostly supportive",
    },
  }}

  svc := NewSentimentService(log, postRepo, commentRepo, sentimentRepo, gemini)

  first, err := svc.AnalyzePost(ctx, post.ID)
  if err != nil {
    t.Fatalf("first analysis failed: %v", err)
  }
  if first == nil {
    t.Fatal("expected an analysis row")
  }
  if first.Label != types.SentimentLabelPositive {
    t.Fatalf("label=%q, want POSITIVE", first.Label)
  }
  if first.Confidence < 0.1 || first.Confidence > 0.9 {
    t.Fatalf("confidence %v outside bounds", first.Confidence)
  }
  if gemini.calls.Load() != 1 {
    t.Fatalf("got %d model calls, want 1", gemini.calls.Load())
  }

  second, err := svc.AnalyzePost(ctx, post.ID)
  if err != nil {
    t.Fatalf("second analysis failed: %v", err)
  }
  if second == nil || second.ID != first.ID {
    t.Fatal("second call should return the existing row")
  }
  if gemini.calls.Load() != 1 {
    t.Fatalf("repeat analysis called the model again: %d calls", gemini.calls.Load())
  }
}

func TestSentimentProcessPendingCountsOnlyAnalyzed(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)

  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  sentimentRepo := repos.NewSentimentRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Mixed", InstagramHandle: "mixed", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }

  collected := time.Now().Add(-time.Hour)
  analyzable := &types.Post{
    CandidateID:         created[0].ID,
    InstagramPostID:     "ig-rich",
    URL:                 "https://www.instagram.com/p/rich/",
    CommentsProcessedAt: &collected,
  }
  spammy := &types.Post{
    CandidateID:         created[0].ID,
    InstagramPostID:     "ig-thin",
    URL:                 "https://www.instagram.com/p/thin/",
    CommentsProcessedAt: &collected,
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{analyzable, spammy}); err != nil {
    t.Fatalf("failed to seed posts: %v", err)
  }

  comments := make([]*types.Comment, 0, 8)
  for i := 0; i < 8; i++ {
    comments = append(comments, &types.Comment{
      PostID:             analyzable.ID,
      InstagramCommentID: fmt.Sprintf("rich-%d", i),
      Text:               fmt.Sprintf("substantive political comment number %d", i),
      OwnerUsername:      fmt.Sprintf("user_%d", i),
    })
  }
  comments = append(comments,
    &types.Comment{PostID: spammy.ID, InstagramCommentID: "thin-1", Text: "kkkkk"},
    &types.Comment{PostID: spammy.ID, InstagramCommentID: "thin-2", Text: "😀😀"},
  )
  if _, _, err := commentRepo.InsertIfAbsent(ctx, nil, comments); err != nil {
    t.Fatalf("failed to seed comments: %v", err)
  }

  gemini := &fakeGemini{response: map[string]any{
    "label": "POSITIVE", "score": 0.5, "confidence": 0.7,
  }}
  svc := NewSentimentService(log, postRepo, commentRepo, sentimentRepo, gemini)

  processed, err := svc.ProcessPending(ctx, 5)
  if err != nil {
    t.Fatalf("sweep failed: %v", err)
  }
  // The spam-only post is stamped and skipped; only the analyzed one counts.
  if processed != 1 {
    t.Fatalf("processed=%d, want 1", processed)
  }
}

func TestAnalyzePostTooFewSurvivors(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)

  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  sentimentRepo := repos.NewSentimentRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Quiet", InstagramHandle: "quiet", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }
  post := &types.Post{
    CandidateID:     created[0].ID,
    InstagramPostID: "ig-quiet",
    URL:             "https://www.instagram.com/p/quiet/",
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{post}); err != nil {
    t.Fatalf("failed to seed post: %v", err)
  }

  // Two substantive comments survive filtering, one below the minimum.
  few := []*types.Comment{
    {PostID: post.ID, InstagramCommentID: "f-1", Text: "thoughtful remark about the campaign"},
    {PostID: post.ID, InstagramCommentID: "f-2", Text: "another considered opinion"},
    {PostID: post.ID, InstagramCommentID: "f-3", Text: "kkkkk"},
  }
  if _, _, err := commentRepo.InsertIfAbsent(ctx, nil, few); err != nil {
    t.Fatalf("failed to seed comments: %v", err)
  }

  gemini := &fakeGemini{response: map[string]any{}}
  svc := NewSentimentService(log, postRepo, commentRepo, sentimentRepo, gemini)

  analysis, err := svc.AnalyzePost(ctx, post.ID)
  if err != nil {
    t.Fatalf("analysis failed: %v", err)
  }
  if analysis != nil {
    t.Fatal("expected no analysis row below the comment minimum")
  }
  if gemini.calls.Load() != 0 {
    t.Fatalf("model called below the comment minimum: %d calls", gemini.calls.Load())
  }

  stored, err := postRepo.GetByID(ctx, nil, post.ID)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if stored.SentimentProcessedAt == nil {
    t.Fatal("post should be stamped processed so it leaves the queue")
  }
}

func TestAnalyzePostAllFiltered(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)

  candidateRepo := repos.NewCandidateRepo(conn, log)
  postRepo := repos.NewPostRepo(conn, log)
  commentRepo := repos.NewCommentRepo(conn, log)
  sentimentRepo := repos.NewSentimentRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name: "Spammed", InstagramHandle: "spammed", Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to seed candidate: %v", err)
  }
  post := &types.Post{
    CandidateID:     created[0].ID,
    InstagramPostID: "ig-spam",
    URL:             "https://www.instagram.com/p/spam/",
  }
  if err := postRepo.UpsertSnapshots(ctx, nil, []*types.Post{post}); err != nil {
    t.Fatalf("failed to seed post: %v", err)
  }

  spam := []*types.Comment{
    {PostID: post.ID, InstagramCommentID: "s-1", Text: "kkkkk"},
    {PostID: post.ID, InstagramCommentID: "s-2", Text: "😀😀"},
    {PostID: post.ID, InstagramCommentID: "s-3", Text: "123"},
  }
  if _, _, err := commentRepo.InsertIfAbsent(ctx, nil, spam); err != nil {
    t.Fatalf("failed to seed comments: %v", err)
  }

  gemini := &fakeGemini{response: map[string]any{}}
  svc := NewSentimentService(log, postRepo, commentRepo, sentimentRepo, gemini)

  analysis, err := svc.AnalyzePost(ctx, post.ID)
  if err != nil {
    t.Fatalf("analysis failed: %v", err)
  }
  if analysis != nil {
    t.Fatal("expected no analysis row for all-spam comments")
  }
  if gemini.calls.Load() != 0 {
    t.Fatalf("model called for all-spam post: %d calls", gemini.calls.Load())
  }

  stored, err := postRepo.GetByID(ctx, nil, post.ID)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if stored.SentimentProcessedAt == nil {
    t.Fatal("post should be stamped processed so it leaves the queue")
  }
}
