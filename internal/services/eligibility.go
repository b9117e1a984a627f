package services

import (
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

// Reference engagement benchmarks per office tier. Calibrated against the
// 2025-07 snapshot of federal and state deputy accounts.
const (
  ReferenceEngagementFederal = 1476.58
  ReferenceEngagementState   = 587.88

  // Scenario spread factors for the optimistic and pessimistic bands.
  ScenarioAlpha = 0.6
  ScenarioBeta  = 0.6

  // Fallback vote targets when neither an explicit goal nor population data
  // is available.
  DefaultVotesRequiredFederal = 120000
  DefaultVotesRequiredState   = 45000
)

// EligibilityService decides which scoring path a candidate takes and owns
// the shared quantitative primitives both engines build on.
type EligibilityService interface {
  Tier(candidate *types.Candidate) (string, bool)
  IsCubeEligible(candidate *types.Candidate) bool
  IsScenarioEligible(candidate *types.Candidate) bool
  CandidateType(candidate *types.Candidate) string
  VotesRequired(candidate *types.Candidate, tier string) int
  ReferenceEngagement(tier string) float64
  AverageEngagement(posts []*types.Post) float64
  EngagementRate(avgEngagement float64, followers int) float64
}

type eligibilityService struct {
  log *logger.Logger
}

func NewEligibilityService(baseLog *logger.Logger) EligibilityService {
  return &eligibilityService{log: baseLog.With("service", "EligibilityService")}
}

// Tier resolves the benchmark tier from the intended office, falling back to
// the current one. Only federal and state races have a quantitative tier.
func (es *eligibilityService) Tier(candidate *types.Candidate) (string, bool) {
  for _, office := range []*types.Office{candidate.IntendedOffice, candidate.Office} {
    if office == nil {
      continue
    }
    switch office.Level {
    case types.OfficeLevelFederal:
      return types.OfficeLevelFederal, true
    case types.OfficeLevelState:
      return types.OfficeLevelState, true
    }
  }
  return "", false
}

// IsCubeEligible requires the intended office itself to be federal or state;
// the current office alone is not enough to pick the quantitative path.
func (es *eligibilityService) IsCubeEligible(candidate *types.Candidate) bool {
  if candidate.IntendedOffice == nil {
    return false
  }
  level := candidate.IntendedOffice.Level
  return level == types.OfficeLevelFederal || level == types.OfficeLevelState
}

// IsScenarioEligible accepts either office slot, so a sitting deputy running
// for something else still gets simulated.
func (es *eligibilityService) IsScenarioEligible(candidate *types.Candidate) bool {
  _, ok := es.Tier(candidate)
  return ok
}

func (es *eligibilityService) CandidateType(candidate *types.Candidate) string {
  if candidate.VotesLastElection > 0 {
    return types.CandidateTypeVeteran
  }
  return types.CandidateTypeNewcomer
}

// VotesRequired prefers the explicit goal, then derives one from city
// population (70% registered, 80% turnout, majority plus one), then falls
// back to the tier average.
func (es *eligibilityService) VotesRequired(candidate *types.Candidate, tier string) int {
  if candidate.VotesRequired > 0 {
    return candidate.VotesRequired
  }
  if candidate.CityPopulation > 0 {
    voters := candidate.CityPopulation * 7 / 10
    turnout := voters * 8 / 10
    return turnout/2 + 1
  }
  if tier == types.OfficeLevelFederal {
    return DefaultVotesRequiredFederal
  }
  if tier == types.OfficeLevelState {
    return DefaultVotesRequiredState
  }
  return 0
}

func (es *eligibilityService) ReferenceEngagement(tier string) float64 {
  if tier == types.OfficeLevelFederal {
    return ReferenceEngagementFederal
  }
  return ReferenceEngagementState
}

// AverageEngagement is likes plus comments averaged over posts carrying both
// counters. Posts missing either value are ignored rather than counted as
// zero.
func (es *eligibilityService) AverageEngagement(posts []*types.Post) float64 {
  total := 0
  valid := 0
  for _, p := range posts {
    if p.LikesCount == nil || p.CommentsCount == nil {
      continue
    }
    if *p.LikesCount < 0 || *p.CommentsCount < 0 {
      continue
    }
    total += *p.LikesCount + *p.CommentsCount
    valid++
  }
  if valid == 0 {
    return 0
  }
  return float64(total) / float64(valid)
}

// EngagementRate is average engagement as a percentage of followers.
func (es *eligibilityService) EngagementRate(avgEngagement float64, followers int) float64 {
  if followers <= 0 {
    return 0
  }
  return (avgEngagement / float64(followers)) * 100
}
