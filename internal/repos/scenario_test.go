package repos

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

func TestScenarioUpsertKeepsOneRow(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)
  candidateRepo := NewCandidateRepo(conn, log)
  scenarioRepo := NewScenarioRepo(conn, log)
  ctx := context.Background()

  created, err := candidateRepo.Create(ctx, nil, []*types.Candidate{{
    Name:   "Sim Candidate",
    Active: true,
  }})
  if err != nil {
    t.Fatalf("failed to create candidate: %v", err)
  }
  candidate := created[0]

  first := &types.ScenarioSimulation{
    CandidateID:   candidate.ID,
    Tier:          types.OfficeLevelFederal,
    CandidateType: types.CandidateTypeVeteran,
    ScoreCube:     83,
    Optimistic:    90,
    Realistic:     83,
    Pessimistic:   70,
    ProcessedAt:   time.Now().Add(-time.Hour),
  }
  if _, err := scenarioRepo.Upsert(ctx, nil, first); err != nil {
    t.Fatalf("first upsert failed: %v", err)
  }

  second := &types.ScenarioSimulation{
    CandidateID:   candidate.ID,
    Tier:          types.OfficeLevelFederal,
    CandidateType: types.CandidateTypeVeteran,
    ScoreCube:     61,
    Optimistic:    75,
    Realistic:     61,
    Pessimistic:   44,
    ProcessedAt:   time.Now(),
  }
  if _, err := scenarioRepo.Upsert(ctx, nil, second); err != nil {
    t.Fatalf("second upsert failed: %v", err)
  }

  var count int64
  if err := conn.Model(&types.ScenarioSimulation{}).
    Where("candidate_id = ?", candidate.ID).
    Count(&count).Error; err != nil {
    t.Fatalf("count failed: %v", err)
  }
  if count != 1 {
    t.Fatalf("got %d simulation rows, want 1", count)
  }

  stored, err := scenarioRepo.GetByCandidate(ctx, nil, candidate.ID)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if stored == nil {
    t.Fatal("expected a stored simulation")
  }
  if stored.Realistic != 61 || stored.Optimistic != 75 || stored.Pessimistic != 44 {
    t.Fatalf("upsert did not replace values: got %d/%d/%d", stored.Optimistic, stored.Realistic, stored.Pessimistic)
  }
}

func TestScenarioGetByCandidateMissing(t *testing.T) {
  conn := newTestDB(t)
  log := newTestLogger(t)
  scenarioRepo := NewScenarioRepo(conn, log)

  sim, err := scenarioRepo.GetByCandidate(context.Background(), nil, uuid.New())
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if sim != nil {
    t.Fatalf("expected nil for missing candidate, got %+v", sim)
  }
}
