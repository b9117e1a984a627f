package services

import (
  "context"
  "encoding/json"
  "math"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

const (
  scenarioAlgorithmVersion = "v1.0-score-cube-bands"
  scenarioFreshness        = 24 * time.Hour
)

type ScenarioService interface {
  SimulateCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ScenarioSimulation, error)
  ProcessPending(ctx context.Context, limit int) (int, error)
}

type scenarioService struct {
  log           *logger.Logger
  candidateRepo repos.CandidateRepo
  postRepo      repos.PostRepo
  scenarioRepo  repos.ScenarioRepo
  eligibility   EligibilityService
}

func NewScenarioService(baseLog *logger.Logger, candidateRepo repos.CandidateRepo, postRepo repos.PostRepo, scenarioRepo repos.ScenarioRepo, eligibility EligibilityService) ScenarioService {
  return &scenarioService{
    log:           baseLog.With("service", "ScenarioService"),
    candidateRepo: candidateRepo,
    postRepo:      postRepo,
    scenarioRepo:  scenarioRepo,
    eligibility:   eligibility,
  }
}

// SimulateCandidate projects optimistic, realistic, and pessimistic outcome
// bands around the score cube. The result replaces any previous simulation
// for the candidate rather than appending to a history.
func (scs *scenarioService) SimulateCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ScenarioSimulation, error) {
  candidate, err := scs.candidateRepo.GetByID(ctx, nil, candidateID)
  if err != nil {
    return nil, err
  }

  if !scs.eligibility.IsScenarioEligible(candidate) {
    scs.log.Debug("Candidate not in a simulated tier", "candidate_id", candidateID)
    return nil, nil
  }
  if candidate.FollowersCount == 0 {
    scs.log.Info("Skipping simulation: no follower data", "candidate_id", candidateID)
    return nil, nil
  }

  posts, err := scs.postRepo.ListRecentWithEngagement(ctx, nil, candidateID, viabilityRecentPostsSpan)
  if err != nil {
    return nil, err
  }
  if len(posts) == 0 {
    scs.log.Info("Skipping simulation: no posts with engagement", "candidate_id", candidateID)
    return nil, nil
  }

  tier, _ := scs.eligibility.Tier(candidate)
  sim := scs.compute(candidate, posts, tier)

  saved, err := scs.scenarioRepo.Upsert(ctx, nil, sim)
  if err != nil {
    return nil, err
  }

  scs.log.Info("Scenario simulated",
    "candidate_id", candidateID,
    "tier", saved.Tier,
    "optimistic", saved.Optimistic,
    "realistic", saved.Realistic,
    "pessimistic", saved.Pessimistic,
  )
  return saved, nil
}

func (scs *scenarioService) ProcessPending(ctx context.Context, limit int) (int, error) {
  since := time.Now().Add(-scenarioFreshness)
  candidates, err := scs.candidateRepo.DueForScenario(ctx, nil, since, limit)
  if err != nil {
    return 0, err
  }

  processed := 0
  for _, candidate := range candidates {
    if ctx.Err() != nil {
      return processed, ctx.Err()
    }
    sim, err := scs.SimulateCandidate(ctx, candidate.ID)
    if err != nil {
      scs.log.Error("Failed to simulate scenarios", "candidate_id", candidate.ID, "error", err)
      continue
    }
    if sim != nil {
      processed++
    }
  }
  return processed, nil
}

// compute derives the bands. Uncertainty blends the electoral gap (distance
// to the vote target) with the engagement deficit (distance below the 1%
// reference rate); the alpha and beta spread factors stretch the bands
// around the realistic score.
func (scs *scenarioService) compute(candidate *types.Candidate, posts []*types.Post, tier string) *types.ScenarioSimulation {
  avgEngagement := scs.eligibility.AverageEngagement(posts)
  rate := scs.eligibility.EngagementRate(avgEngagement, candidate.FollowersCount)
  refValue := scs.eligibility.ReferenceEngagement(tier)
  candidateType := scs.eligibility.CandidateType(candidate)
  votesRequired := scs.eligibility.VotesRequired(candidate, tier)

  engagementRatio := math.Min(rate, 1)

  var specificRatio float64
  if candidateType == types.CandidateTypeVeteran {
    if votesRequired > 0 {
      specificRatio = math.Min(float64(candidate.VotesLastElection)/float64(votesRequired), 1)
    }
  } else {
    specificRatio = math.Min(avgEngagement/refValue, 1)
  }

  score := (0.5*specificRatio + 0.5*engagementRatio) * 100

  gap := 0.0
  if votesRequired > 0 {
    gap = math.Abs(float64(votesRequired-candidate.VotesLastElection)) / float64(votesRequired)
  }

  deficit := math.Max(0, 1-rate)
  uncertainty := 0.5 * (gap + deficit)

  realistic := int(math.Round(score))
  optimistic := int(math.Round(math.Min(100, score+(100-score)*ScenarioAlpha*uncertainty)))
  pessimistic := int(math.Round(math.Max(0, score-score*ScenarioBeta*uncertainty)))

  params := map[string]any{
    "reference_engagement": refValue,
    "alpha":                ScenarioAlpha,
    "beta":                 ScenarioBeta,
    "followers":            candidate.FollowersCount,
    "avg_engagement":       math.Round(avgEngagement),
    "engagement_rate":      round3(rate),
    "votes_last_election":  candidate.VotesLastElection,
    "votes_required":       votesRequired,
  }
  paramsJSON, _ := json.Marshal(params)

  return &types.ScenarioSimulation{
    CandidateID:       candidate.ID,
    Tier:              tier,
    CandidateType:     candidateType,
    ScoreCube:         round2(score),
    ElectoralGap:      round3(gap),
    EngagementDeficit: round3(deficit),
    Uncertainty:       round3(uncertainty),
    Optimistic:        optimistic,
    Realistic:         realistic,
    Pessimistic:       pessimistic,
    Parameters:        datatypes.JSON(paramsJSON),
    AlgorithmVersion:  scenarioAlgorithmVersion,
    ProcessedAt:       time.Now(),
  }
}
