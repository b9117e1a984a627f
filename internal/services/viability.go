package services

import (
  "context"
  "encoding/json"
  "fmt"
  "math"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

const (
  viabilityFreshness       = 24 * time.Hour
  viabilityRecentPostsSpan = 20
  viabilitySentimentSpan   = 20

  cubePromptVersion        = "v2.0-score-cube"
  qualitativePromptVersion = "v2.0-qualitative"
  cubeModelTag             = "score-cube-v2.0"
)

type ViabilityService interface {
  AnalyzeCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ViabilityAnalysis, error)
  ProcessPending(ctx context.Context, limit int) (int, error)
}

type viabilityService struct {
  log           *logger.Logger
  candidateRepo repos.CandidateRepo
  postRepo      repos.PostRepo
  sentimentRepo repos.SentimentRepo
  viabilityRepo repos.ViabilityRepo
  gemini        GeminiClient
  eligibility   EligibilityService
}

func NewViabilityService(baseLog *logger.Logger, candidateRepo repos.CandidateRepo, postRepo repos.PostRepo, sentimentRepo repos.SentimentRepo, viabilityRepo repos.ViabilityRepo, gemini GeminiClient, eligibility EligibilityService) ViabilityService {
  return &viabilityService{
    log:           baseLog.With("service", "ViabilityService"),
    candidateRepo: candidateRepo,
    postRepo:      postRepo,
    sentimentRepo: sentimentRepo,
    viabilityRepo: viabilityRepo,
    gemini:        gemini,
    eligibility:   eligibility,
  }
}

// cubeResult carries everything the deterministic engine derived, for
// persistence in quantitative_inputs.
type cubeResult struct {
  Tier              string  `json:"tier"`
  CandidateType     string  `json:"candidate_type"`
  ReferenceValue    float64 `json:"reference_engagement"`
  Followers         int     `json:"followers"`
  AvgEngagement     float64 `json:"avg_engagement"`
  EngagementRate    float64 `json:"engagement_rate"`
  EngagementRatio   float64 `json:"engagement_ratio"`
  SpecificRatio     float64 `json:"specific_ratio"`
  VotesLastElection int     `json:"votes_last_election"`
  VotesRequired     int     `json:"votes_required"`
  Score             int     `json:"score"`
  Calculation       string  `json:"calculation"`
}

// AnalyzeCandidate produces one viability verdict. Federal and state races
// run the deterministic score cube with the model only contributing
// qualitative notes; everything else is scored by the model and coerced into
// bounds afterwards. A candidate analyzed inside the freshness window is
// returned as-is.
func (vs *viabilityService) AnalyzeCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ViabilityAnalysis, error) {
  latest, err := vs.viabilityRepo.LatestByCandidate(ctx, nil, candidateID)
  if err != nil {
    return nil, err
  }
  if latest != nil && time.Since(latest.ProcessedAt) < viabilityFreshness {
    vs.log.Debug("Recent viability analysis exists", "candidate_id", candidateID)
    return latest, nil
  }

  candidate, err := vs.candidateRepo.GetByID(ctx, nil, candidateID)
  if err != nil {
    return nil, err
  }

  posts, err := vs.postRepo.ListRecentWithEngagement(ctx, nil, candidateID, viabilityRecentPostsSpan)
  if err != nil {
    return nil, err
  }

  var analysis *types.ViabilityAnalysis
  if vs.eligibility.IsCubeEligible(candidate) {
    analysis, err = vs.runScoreCube(ctx, candidate, posts)
  } else {
    analysis, err = vs.runQualitative(ctx, candidate, posts)
  }
  if err != nil || analysis == nil {
    return nil, err
  }

  saved, err := vs.viabilityRepo.Create(ctx, nil, analysis)
  if err != nil {
    return nil, err
  }
  if err := vs.candidateRepo.UpdateViabilityScore(ctx, nil, candidateID, saved.Score); err != nil {
    return nil, err
  }

  vs.log.Info("Viability analyzed",
    "candidate_id", candidateID,
    "score", saved.Score,
    "category", saved.Category,
    "confidence", saved.Confidence,
    "model", saved.Model,
  )
  return saved, nil
}

func (vs *viabilityService) ProcessPending(ctx context.Context, limit int) (int, error) {
  since := time.Now().Add(-viabilityFreshness)
  candidates, err := vs.candidateRepo.DueForViability(ctx, nil, since, limit)
  if err != nil {
    return 0, err
  }

  processed := 0
  for _, candidate := range candidates {
    if ctx.Err() != nil {
      return processed, ctx.Err()
    }
    analysis, err := vs.AnalyzeCandidate(ctx, candidate.ID)
    if err != nil {
      vs.log.Error("Failed to analyze viability", "candidate_id", candidate.ID, "error", err)
      continue
    }
    if analysis != nil {
      processed++
    }
  }
  return processed, nil
}

// runScoreCube is the deterministic path: score comes from the cube formula,
// the model only supplies strengths and concerns. Insufficient data skips the
// run without persisting anything.
func (vs *viabilityService) runScoreCube(ctx context.Context, candidate *types.Candidate, posts []*types.Post) (*types.ViabilityAnalysis, error) {
  if candidate.FollowersCount == 0 {
    vs.log.Info("Skipping score cube: no follower data", "candidate_id", candidate.ID)
    return nil, nil
  }
  if len(posts) == 0 {
    vs.log.Info("Skipping score cube: no posts with engagement", "candidate_id", candidate.ID)
    return nil, nil
  }

  tier, _ := vs.eligibility.Tier(candidate)
  cube := vs.computeCube(candidate, posts, tier)

  confidence := 0.3
  if cube.VotesLastElection > 0 {
    confidence += 0.25
  }
  if cube.VotesRequired > 0 {
    confidence += 0.2
  }
  if cube.Followers > 1000 {
    confidence += 0.15
  }
  if len(posts) >= 10 {
    confidence += 0.1
  }
  if confidence > 1.0 {
    confidence = 1.0
  }

  sentimentSummary, _ := vs.sentimentSummary(ctx, candidate.ID)
  strengths, concerns := vs.qualitativeInsights(ctx, candidate, cube)

  category := types.CategoryForScore(float64(cube.Score))

  inputsJSON, _ := json.Marshal(cube)
  summaryJSON, _ := json.Marshal(sentimentSummary)
  strengthsJSON, _ := json.Marshal(strengths)
  concernsJSON, _ := json.Marshal(concerns)

  return &types.ViabilityAnalysis{
    CandidateID:        candidate.ID,
    Score:              float64(cube.Score),
    Category:           category,
    Confidence:         round2(confidence),
    QuantitativeInputs: datatypes.JSON(inputsJSON),
    SentimentSummary:   datatypes.JSON(summaryJSON),
    Strengths:          datatypes.JSON(strengthsJSON),
    Concerns:           datatypes.JSON(concernsJSON),
    Rationale:          fmt.Sprintf("%s. Score cube: %d%% (%s)", categoryMessage(category), cube.Score, cube.CandidateType),
    Model:              cubeModelTag,
    PromptVersion:      cubePromptVersion,
    ProcessedAt:        time.Now(),
  }, nil
}

// computeCube evaluates the score cube. Veterans are ratioed against their
// vote target, newcomers against the tier's engagement benchmark; both blend
// equally with the engagement rate ratio.
func (vs *viabilityService) computeCube(candidate *types.Candidate, posts []*types.Post, tier string) cubeResult {
  avgEngagement := vs.eligibility.AverageEngagement(posts)
  rate := vs.eligibility.EngagementRate(avgEngagement, candidate.FollowersCount)
  refValue := vs.eligibility.ReferenceEngagement(tier)
  candidateType := vs.eligibility.CandidateType(candidate)
  votesRequired := vs.eligibility.VotesRequired(candidate, tier)

  // Engagement ratio: rate against the 1% reference, capped at 1.
  engagementRatio := math.Min(rate, 1)

  var specificRatio float64
  var calculation string
  if candidateType == types.CandidateTypeVeteran {
    if votesRequired > 0 {
      specificRatio = math.Min(float64(candidate.VotesLastElection)/float64(votesRequired), 1)
    }
    calculation = fmt.Sprintf("VETERAN: (0.5 x %.3f + 0.5 x %.3f) x 100", specificRatio, engagementRatio)
  } else {
    specificRatio = math.Min(avgEngagement/refValue, 1)
    calculation = fmt.Sprintf("NEWCOMER: (0.5 x %.3f + 0.5 x %.3f) x 100", specificRatio, engagementRatio)
  }

  score := int(math.Round((0.5*specificRatio + 0.5*engagementRatio) * 100))

  return cubeResult{
    Tier:              tier,
    CandidateType:     candidateType,
    ReferenceValue:    refValue,
    Followers:         candidate.FollowersCount,
    AvgEngagement:     math.Round(avgEngagement),
    EngagementRate:    round3(rate),
    EngagementRatio:   round3(engagementRatio),
    SpecificRatio:     round3(specificRatio),
    VotesLastElection: candidate.VotesLastElection,
    VotesRequired:     votesRequired,
    Score:             score,
    Calculation:       calculation,
  }
}

// runQualitative scores municipal and other races entirely through the
// model, then coerces every field into bounds.
func (vs *viabilityService) runQualitative(ctx context.Context, candidate *types.Candidate, posts []*types.Post) (*types.ViabilityAnalysis, error) {
  if candidate.FollowersCount == 0 {
    vs.log.Info("Skipping qualitative viability: no follower data", "candidate_id", candidate.ID)
    return nil, nil
  }

  avgEngagement := vs.eligibility.AverageEngagement(posts)
  rate := vs.eligibility.EngagementRate(avgEngagement, candidate.FollowersCount)
  sentimentSummary, _ := vs.sentimentSummary(ctx, candidate.ID)

  prompt := vs.buildQualitativePrompt(candidate, rate, sentimentSummary)
  call := GeminiCall{CallType: types.AICallTypeViability, CandidateID: &candidate.ID}

  obj, err := vs.gemini.GenerateJSON(ctx, call, prompt)

  score := 50.0
  confidence := 0.1
  rationale := "Processing failed, manual review needed"
  strengths := []string{"Requires manual review"}
  concerns := []string{"Model processing error"}

  if err == nil {
    score, confidence, rationale, strengths, concerns = coerceQualitative(obj)
  } else {
    vs.log.Warn("Qualitative viability call failed", "candidate_id", candidate.ID, "error", err)
  }

  inputs := map[string]any{
    "followers":       candidate.FollowersCount,
    "following":       candidate.FollowsCount,
    "verified":        candidate.Verified,
    "total_posts":     candidate.PostsCount,
    "recent_posts":    len(posts),
    "avg_engagement":  math.Round(avgEngagement),
    "engagement_rate": round3(rate),
    "city_population": candidate.CityPopulation,
  }

  inputsJSON, _ := json.Marshal(inputs)
  summaryJSON, _ := json.Marshal(sentimentSummary)
  strengthsJSON, _ := json.Marshal(strengths)
  concernsJSON, _ := json.Marshal(concerns)

  return &types.ViabilityAnalysis{
    CandidateID:        candidate.ID,
    Score:              score,
    Category:           types.CategoryForScore(score),
    Confidence:         round2(confidence),
    QuantitativeInputs: datatypes.JSON(inputsJSON),
    SentimentSummary:   datatypes.JSON(summaryJSON),
    Strengths:          datatypes.JSON(strengthsJSON),
    Concerns:           datatypes.JSON(concernsJSON),
    Rationale:          rationale,
    Model:              vs.gemini.Model(),
    PromptVersion:      qualitativePromptVersion,
    ProcessedAt:        time.Now(),
  }, nil
}

// coerceQualitative applies the same defaulting discipline as the sentiment
// parser: bad score becomes 50, bad confidence 0.5, and the category is
// always rederived from the score.
func coerceQualitative(obj map[string]any) (float64, float64, string, []string, []string) {
  score := 50.0
  if v, ok := obj["score"].(float64); ok && v >= 0 && v <= 100 {
    score = math.Round(v*10) / 10
  }

  confidence := 0.5
  if v, ok := obj["confidence"].(float64); ok && v >= 0 && v <= 1 {
    confidence = v
  }

  rationale := "Model-scored analysis"
  if v, ok := obj["rationale"].(string); ok && v != "" {
    rationale = v
  }

  strengths := coerceStringList(obj["strengths"], 4, "Active digital presence")
  concerns := coerceStringList(obj["concerns"], 4, "Monitor progression")

  return score, confidence, rationale, strengths, concerns
}

func coerceStringList(raw any, max int, fallback string) []string {
  list, ok := raw.([]any)
  if !ok {
    return []string{fallback}
  }
  out := make([]string, 0, max)
  for _, item := range list {
    if s, ok := item.(string); ok && s != "" {
      out = append(out, s)
      if len(out) == max {
        break
      }
    }
  }
  if len(out) == 0 {
    return []string{fallback}
  }
  return out
}

// qualitativeInsights asks the model for strengths and concerns to attach to
// a cube verdict. Failures degrade to type-based defaults since the score
// itself never depends on this call.
func (vs *viabilityService) qualitativeInsights(ctx context.Context, candidate *types.Candidate, cube cubeResult) ([]string, []string) {
  prompt := fmt.Sprintf(`Political analyst: given this quantitative score, provide complementary qualitative insights.

CANDIDATE: %s
SCORE: %d%% (%s)
TYPE: %s
FOLLOWERS: %d

Respond with JSON:
{
  "strengths": ["point1", "point2"],
  "concerns": ["concern1", "concern2"]
}`, candidate.Name, cube.Score, types.CategoryForScore(float64(cube.Score)), cube.CandidateType, candidate.FollowersCount)

  call := GeminiCall{CallType: types.AICallTypeViability, CandidateID: &candidate.ID}
  obj, err := vs.gemini.GenerateJSON(ctx, call, prompt)
  if err != nil {
    fallbackStrength := "Renewal candidate"
    if cube.CandidateType == types.CandidateTypeVeteran {
      fallbackStrength = "Electoral experience"
    }
    return []string{fallbackStrength}, []string{"Manual review recommended"}
  }

  strengths := coerceStringList(obj["strengths"], 4, "Quantitative data available")
  concerns := coerceStringList(obj["concerns"], 4, "Review qualitative insights")
  return strengths, concerns
}

func (vs *viabilityService) buildQualitativePrompt(candidate *types.Candidate, engagementRate float64, summary map[string]any) string {
  office := "Unknown"
  if candidate.IntendedOffice != nil {
    office = candidate.IntendedOffice.Name
  }

  return fmt.Sprintf(`Political analyst: assess this candidate's electoral viability.

CANDIDATE: %s (@%s)
OFFICE: %s
FOLLOWERS: %d
ENGAGEMENT RATE: %.3f%%
CITY POPULATION: %d
VOTES LAST ELECTION: %d
SENTIMENT ANALYSES: %v

Respond with JSON:
{
  "score": 0.0,
  "confidence": 0.0,
  "rationale": "Explanation up to 200 chars",
  "strengths": ["point1", "point2"],
  "concerns": ["risk1", "risk2"]
}

RULES:
- score: 0-100 (HIGH: 75-100, MEDIUM: 50-74, AT_RISK: 25-49, CRITICAL: 0-24)
- confidence: 0.0-1.0
- at most 4 points each, 50 chars per point`,
    candidate.Name, candidate.InstagramHandle, office,
    candidate.FollowersCount, engagementRate, candidate.CityPopulation,
    candidate.VotesLastElection, summary["total"])
}

// sentimentSummary aggregates the newest sentiment rows into the
// distribution the viability record snapshots.
func (vs *viabilityService) sentimentSummary(ctx context.Context, candidateID uuid.UUID) (map[string]any, error) {
  analyses, err := vs.sentimentRepo.ListByCandidate(ctx, nil, candidateID, viabilitySentimentSpan)
  if err != nil || len(analyses) == 0 {
    return map[string]any{
      "total":     0,
      "avg_score": 0.0,
      "distribution": map[string]int{
        "positive": 0, "negative": 0, "neutral": 0,
      },
    }, err
  }

  dist := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
  sum := 0.0
  for _, a := range analyses {
    switch a.Label {
    case types.SentimentLabelPositive:
      dist["positive"]++
    case types.SentimentLabelNegative:
      dist["negative"]++
    default:
      dist["neutral"]++
    }
    sum += a.Score
  }

  return map[string]any{
    "total":        len(analyses),
    "avg_score":    round2(sum / float64(len(analyses))),
    "distribution": dist,
  }, nil
}

func categoryMessage(category string) string {
  switch category {
  case types.ViabilityCategoryHigh:
    return "High chance of victory"
  case types.ViabilityCategoryMedium:
    return "Moderate chances, needs traction"
  case types.ViabilityCategoryAtRisk:
    return "Elevated risk, uncertain scenario"
  default:
    return "Remote probability of election"
  }
}

func round3(v float64) float64 {
  return math.Round(v*1000) / 1000
}
