package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
)

type AnalysisHandler struct {
  sentimentRepo repos.SentimentRepo
  viabilityRepo repos.ViabilityRepo
  scenarioRepo  repos.ScenarioRepo
}

func NewAnalysisHandler(sentimentRepo repos.SentimentRepo, viabilityRepo repos.ViabilityRepo, scenarioRepo repos.ScenarioRepo) *AnalysisHandler {
  return &AnalysisHandler{
    sentimentRepo: sentimentRepo,
    viabilityRepo: viabilityRepo,
    scenarioRepo:  scenarioRepo,
  }
}

func (ah *AnalysisHandler) SentimentByCandidate(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  analyses, err := ah.sentimentRepo.ListByCandidate(c.Request.Context(), nil, candidateID, 50)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (ah *AnalysisHandler) ViabilityByCandidate(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  analyses, err := ah.viabilityRepo.ListByCandidate(c.Request.Context(), nil, candidateID, 20)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (ah *AnalysisHandler) ScenarioByCandidate(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  sim, err := ah.scenarioRepo.GetByCandidate(c.Request.Context(), nil, candidateID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if sim == nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "no simulation for candidate"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"simulation": sim})
}

func (ah *AnalysisHandler) ListScenarios(c *gin.Context) {
  sims, err := ah.scenarioRepo.List(c.Request.Context(), nil, 100)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"simulations": sims})
}
