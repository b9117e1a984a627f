package services

import (
  "context"
  "encoding/json"
  "fmt"
  "regexp"
  "strings"
  "time"
  "unicode"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

const (
  sentimentPromptVersion  = "v2.1-objective-confidence"
  sentimentTranscriptCap  = 100
  sentimentMinComments    = 3
  sentimentMaxAttempts    = 3
  sentimentRetryBaseDelay = 2 * time.Second
)

type SentimentService interface {
  AnalyzePost(ctx context.Context, postID uuid.UUID) (*types.SentimentAnalysis, error)
  ProcessPending(ctx context.Context, limit int) (int, error)
}

type sentimentService struct {
  log           *logger.Logger
  postRepo      repos.PostRepo
  commentRepo   repos.CommentRepo
  sentimentRepo repos.SentimentRepo
  gemini        GeminiClient
}

func NewSentimentService(baseLog *logger.Logger, postRepo repos.PostRepo, commentRepo repos.CommentRepo, sentimentRepo repos.SentimentRepo, gemini GeminiClient) SentimentService {
  return &sentimentService{
    log:           baseLog.With("service", "SentimentService"),
    postRepo:      postRepo,
    commentRepo:   commentRepo,
    sentimentRepo: sentimentRepo,
    gemini:        gemini,
  }
}

// AnalyzePost classifies the collected comments of one post. A post is
// analyzed at most once: if a row already exists it is returned untouched,
// and a post left with fewer than sentimentMinComments survivors after
// filtering is stamped processed without a row so it never re-enters the
// queue.
func (ss *sentimentService) AnalyzePost(ctx context.Context, postID uuid.UUID) (*types.SentimentAnalysis, error) {
  existing, err := ss.sentimentRepo.GetByPost(ctx, nil, postID, types.SentimentTypeComments)
  if err != nil {
    return nil, err
  }
  if existing != nil {
    ss.log.Debug("Sentiment already analyzed", "post_id", postID)
    return existing, nil
  }

  post, err := ss.postRepo.GetByID(ctx, nil, postID)
  if err != nil {
    return nil, err
  }

  comments, err := ss.commentRepo.ListForAnalysis(ctx, nil, postID, sentimentTranscriptCap)
  if err != nil {
    return nil, err
  }

  filtered := FilterRelevantComments(comments)
  if len(filtered) < sentimentMinComments {
    ss.log.Info("Not enough relevant comments after filtering", "post_id", postID, "relevant", len(filtered))
    if err := ss.postRepo.MarkSentimentProcessed(ctx, nil, postID, time.Now()); err != nil {
      return nil, err
    }
    return nil, nil
  }

  prompt := ss.buildPrompt(post, filtered)
  result := ss.classifyWithRetry(ctx, post, prompt)

  confidence := SentimentConfidence(filtered, result)

  insights := map[string]any{
    "keywords": result.Keywords,
    "themes":   result.Themes,
    "summary":  result.Summary,
    "metrics": map[string]any{
      "unique_users":       uniqueUsers(filtered),
      "user_diversity":     round2(userDiversity(filtered)),
      "avg_comment_length": int(avgCommentLength(filtered)),
      "verified_users":     verifiedCount(filtered),
      "comments_with_likes": likedCount(filtered),
      "model_confidence":   result.ModelConfidence,
    },
  }
  insightsJSON, _ := json.Marshal(insights)

  analysis := &types.SentimentAnalysis{
    PostID:        postID,
    CandidateID:   post.CandidateID,
    AnalysisType:  types.SentimentTypeComments,
    Label:         result.Label,
    Score:         result.Score,
    Confidence:    confidence,
    TotalComments: len(filtered),
    Insights:      datatypes.JSON(insightsJSON),
    Model:         ss.gemini.Model(),
    PromptVersion: sentimentPromptVersion,
    ProcessedAt:   time.Now(),
  }

  saved, err := ss.sentimentRepo.Create(ctx, nil, analysis)
  if err != nil {
    return nil, err
  }
  if err := ss.postRepo.MarkSentimentProcessed(ctx, nil, postID, time.Now()); err != nil {
    return nil, err
  }

  ss.log.Info("Sentiment analyzed",
    "post_id", postID,
    "label", saved.Label,
    "score", saved.Score,
    "confidence", saved.Confidence,
    "comments", saved.TotalComments,
  )
  return saved, nil
}

func (ss *sentimentService) ProcessPending(ctx context.Context, limit int) (int, error) {
  posts, err := ss.postRepo.PendingSentiment(ctx, nil, limit)
  if err != nil {
    return 0, err
  }

  processed := 0
  for _, post := range posts {
    if ctx.Err() != nil {
      return processed, ctx.Err()
    }
    analysis, err := ss.AnalyzePost(ctx, post.ID)
    if err != nil {
      ss.log.Error("Failed to analyze post sentiment", "post_id", post.ID, "error", err)
      continue
    }
    if analysis != nil {
      processed++
    }
  }
  return processed, nil
}

// sentimentResult is the normalized classifier output after coercion.
type sentimentResult struct {
  Label           string
  Score           float64
  ModelConfidence float64
  Keywords        []string
  Themes          []string
  Summary         string
}

func (ss *sentimentService) classifyWithRetry(ctx context.Context, post *types.Post, prompt string) sentimentResult {
  call := GeminiCall{
    CallType:    types.AICallTypeSentiment,
    CandidateID: &post.CandidateID,
    PostID:      &post.ID,
  }

  for attempt := 1; attempt <= sentimentMaxAttempts; attempt++ {
    obj, err := ss.gemini.GenerateJSON(ctx, call, prompt)
    if err == nil {
      return coerceSentiment(obj)
    }

    ss.log.Warn("Sentiment classification attempt failed",
      "post_id", post.ID,
      "attempt", attempt,
      "error", err,
    )

    if !upstreamRetryable(err) || attempt == sentimentMaxAttempts {
      break
    }
    select {
    case <-ctx.Done():
      return sentimentFallback()
    case <-time.After(sentimentRetryBaseDelay * time.Duration(attempt)):
    }
  }
  return sentimentFallback()
}

// sentimentFallback is the terminal answer when every attempt failed: a
// neutral row with confidence low enough that nothing downstream trusts it.
func sentimentFallback() sentimentResult {
  return sentimentResult{
    Label:           types.SentimentLabelNeutral,
    Score:           0.0,
    ModelConfidence: 0.05,
    Keywords:        []string{},
    Themes:          []string{"processing_error"},
    Summary:         "Classification failed after retries",
  }
}

// coerceSentiment validates field by field, replacing anything malformed
// with a safe default instead of rejecting the whole response.
func coerceSentiment(obj map[string]any) sentimentResult {
  result := sentimentResult{
    Label:           types.SentimentLabelNeutral,
    Score:           0.0,
    ModelConfidence: 0.5,
    Keywords:        []string{},
    Themes:          []string{},
  }

  if label, ok := obj["label"].(string); ok {
    switch label {
    case types.SentimentLabelPositive, types.SentimentLabelNegative, types.SentimentLabelNeutral:
      result.Label = label
    }
  }
  if score, ok := obj["score"].(float64); ok && score >= -1 && score <= 1 {
    result.Score = round2(score)
  }
  if conf, ok := obj["confidence"].(float64); ok && conf >= 0 && conf <= 1 {
    result.ModelConfidence = round2(conf)
  }

  if insights, ok := obj["insights"].(map[string]any); ok {
    result.Keywords = coerceTermList(insights["keywords"], 4)
    result.Themes = coerceTermList(insights["themes"], 3)
    if summary, ok := insights["summary"].(string); ok {
      result.Summary = summary
    }
  }
  if result.Summary == "" {
    result.Summary = fmt.Sprintf("%s sentiment identified", strings.ToLower(result.Label))
  }
  return result
}

// coerceTermList keeps only meaningful terms: longer than two characters and
// not pure digits, emoji, or punctuation.
func coerceTermList(raw any, max int) []string {
  list, ok := raw.([]any)
  if !ok {
    return []string{}
  }

  out := make([]string, 0, max)
  for _, item := range list {
    term, ok := item.(string)
    if !ok {
      continue
    }
    if len([]rune(term)) <= 2 {
      continue
    }
    if isDigitsOnly(term) || isEmojiOnly(term) || isSpecialsOnly(term) {
      continue
    }
    out = append(out, term)
    if len(out) == max {
      break
    }
  }
  return out
}

var spamPatterns = []*regexp.Regexp{
  regexp.MustCompile(`(?i)^(kkk+|aha+|rsrs+)$`),
  regexp.MustCompile(`(?i)^(top+|show+|legal+)$`),
  regexp.MustCompile(`^[@#]+`),
  regexp.MustCompile(`^\d+$`),
}

// FilterRelevantComments drops noise before classification: empty or tiny
// texts, emoji-only reactions, common spam patterns, bare mention or hashtag
// chains, pure numbers, and punctuation runs.
func FilterRelevantComments(comments []*types.Comment) []*types.Comment {
  out := make([]*types.Comment, 0, len(comments))
  for _, c := range comments {
    text := strings.TrimSpace(c.Text)
    if len([]rune(text)) < 3 {
      continue
    }
    if len([]rune(text)) < 10 && isEmojiOnly(text) {
      continue
    }
    spam := false
    for _, pattern := range spamPatterns {
      if pattern.MatchString(text) {
        spam = true
        break
      }
    }
    if spam {
      continue
    }
    if isSpecialsOnly(text) {
      continue
    }
    out = append(out, c)
  }
  return out
}

// SentimentConfidence derives a confidence from the evidence itself: sample
// size, commenter diversity, comment substance, verified voices, and how
// polarized the classifier's score is relative to the sample. Clamped to
// [0.1, 0.9] so it never reads as certain or worthless.
func SentimentConfidence(comments []*types.Comment, result sentimentResult) float64 {
  confidence := 0.2

  n := len(comments)
  switch {
  case n >= 50:
    confidence += 0.25
  case n >= 30:
    confidence += 0.20
  case n >= 20:
    confidence += 0.15
  case n >= 10:
    confidence += 0.10
  case n >= 5:
    confidence += 0.05
  }

  diversity := userDiversity(comments)
  switch {
  case diversity > 0.8:
    confidence += 0.15
  case diversity > 0.6:
    confidence += 0.10
  case diversity > 0.4:
    confidence += 0.05
  default:
    confidence -= 0.05
  }

  avgLen := avgCommentLength(comments)
  switch {
  case avgLen > 80:
    confidence += 0.10
  case avgLen > 40:
    confidence += 0.05
  case avgLen < 15:
    confidence -= 0.05
  }

  verified := float64(verifiedCount(comments)) * 0.02
  if verified > 0.08 {
    verified = 0.08
  }
  confidence += verified

  likedShare := 0.0
  if n > 0 {
    likedShare = float64(likedCount(comments)) / float64(n)
  }
  if likedShare > 0.5 {
    confidence += 0.05
  } else if likedShare > 0.2 {
    confidence += 0.02
  }

  abs := result.Score
  if abs < 0 {
    abs = -abs
  }
  switch {
  case abs > 0.8:
    if n < 10 {
      confidence -= 0.25
    } else if n < 20 {
      confidence -= 0.15
    }
  case abs > 0.6:
    if n < 5 {
      confidence -= 0.20
    } else if n < 10 {
      confidence -= 0.10
    }
  case abs < 0.1:
    confidence -= 0.05
  default:
    confidence += 0.05
  }

  if confidence < 0.1 {
    confidence = 0.1
  }
  if confidence > 0.9 {
    confidence = 0.9
  }
  return round2(confidence)
}

func (ss *sentimentService) buildPrompt(post *types.Post, comments []*types.Comment) string {
  var sb strings.Builder

  candidateName := ""
  candidateHandle := ""
  if post.Candidate != nil {
    candidateName = post.Candidate.Name
    candidateHandle = post.Candidate.InstagramHandle
  }

  sb.WriteString("Analyze the sentiment of these comments about a political candidate.\n\n")
  fmt.Fprintf(&sb, "CANDIDATE: %s (@%s)\n", candidateName, candidateHandle)
  fmt.Fprintf(&sb, "COMMENTS (%d):\n", len(comments))
  for i, c := range comments {
    verified := ""
    if c.OwnerIsVerified {
      verified = " [verified]"
    }
    fmt.Fprintf(&sb, "%d. %q (%d likes, @%s%s)\n", i+1, c.Text, c.LikesCount, c.OwnerUsername, verified)
  }
  sb.WriteString(`
INSTRUCTIONS:
1. Judge the overall sentiment in its political context
2. Account for irony, sarcasm, and constructive versus destructive criticism
3. Classify the overall tone: support, criticism, or neutrality
4. Identify the main themes mentioned

CLASSIFICATION:
- POSITIVE: support, praise, agreement
- NEGATIVE: destructive criticism, attacks, disapproval
- NEUTRAL: informative comments, constructive criticism, neutral remarks

RESPOND WITH VALID JSON:
{
  "label": "POSITIVE|NEGATIVE|NEUTRAL",
  "score": 0.0,
  "confidence": 0.0,
  "insights": {
    "keywords": ["word1", "word2", "word3"],
    "themes": ["theme1", "theme2"],
    "summary": "Short sentiment summary (max 80 chars)"
  }
}

RULES:
- score: -1.0 (very negative) to +1.0 (very positive)
- confidence: 0.0 (low) to 1.0 (high)
- at most 4 keywords and 3 themes
- be objective and precise`)

  return sb.String()
}

func uniqueUsers(comments []*types.Comment) int {
  seen := map[string]struct{}{}
  for _, c := range comments {
    seen[c.OwnerUsername] = struct{}{}
  }
  return len(seen)
}

func userDiversity(comments []*types.Comment) float64 {
  if len(comments) == 0 {
    return 0
  }
  return float64(uniqueUsers(comments)) / float64(len(comments))
}

func avgCommentLength(comments []*types.Comment) float64 {
  if len(comments) == 0 {
    return 0
  }
  total := 0
  for _, c := range comments {
    total += len([]rune(c.Text))
  }
  return float64(total) / float64(len(comments))
}

func verifiedCount(comments []*types.Comment) int {
  n := 0
  for _, c := range comments {
    if c.OwnerIsVerified {
      n++
    }
  }
  return n
}

func likedCount(comments []*types.Comment) int {
  n := 0
  for _, c := range comments {
    if c.LikesCount > 0 {
      n++
    }
  }
  return n
}

func isDigitsOnly(s string) bool {
  if s == "" {
    return false
  }
  for _, r := range s {
    if !unicode.IsDigit(r) {
      return false
    }
  }
  return true
}

func isEmojiOnly(s string) bool {
  if s == "" {
    return false
  }
  for _, r := range s {
    if !isEmojiRune(r) {
      return false
    }
  }
  return true
}

func isEmojiRune(r rune) bool {
  switch {
  case r >= 0x1F300 && r <= 0x1F6FF:
    return true
  case r >= 0x1F1E0 && r <= 0x1F1FF:
    return true
  case r >= 0x2600 && r <= 0x27BF:
    return true
  case r >= 0x1F900 && r <= 0x1F9FF:
    return true
  }
  return false
}

// isSpecialsOnly reports runs of three or more characters that are neither
// letters, digits, nor whitespace.
func isSpecialsOnly(s string) bool {
  runes := []rune(s)
  if len(runes) < 3 {
    return false
  }
  for _, r := range runes {
    if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
      return false
    }
  }
  return true
}

func round2(v float64) float64 {
  if v >= 0 {
    return float64(int(v*100+0.5)) / 100
  }
  return float64(int(v*100-0.5)) / 100
}
