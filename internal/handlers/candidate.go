package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/services"
)

type CandidateHandler struct {
  candidateRepo   repos.CandidateRepo
  followerHistory repos.FollowerHistoryRepo
  scraping        services.ScrapingService
}

func NewCandidateHandler(candidateRepo repos.CandidateRepo, followerHistory repos.FollowerHistoryRepo, scraping services.ScrapingService) *CandidateHandler {
  return &CandidateHandler{
    candidateRepo:   candidateRepo,
    followerHistory: followerHistory,
    scraping:        scraping,
  }
}

func (ch *CandidateHandler) List(c *gin.Context) {
  candidates, err := ch.candidateRepo.ListActive(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

func (ch *CandidateHandler) Get(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  candidate, err := ch.candidateRepo.GetByID(c.Request.Context(), nil, candidateID)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"candidate": candidate})
}

func (ch *CandidateHandler) FollowerHistory(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  history, err := ch.followerHistory.ListByCandidate(c.Request.Context(), nil, candidateID, 90)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"history": history})
}

// Scrape forces an immediate profile sync outside the scrape cooldown.
func (ch *CandidateHandler) Scrape(c *gin.Context) {
  candidateID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
    return
  }

  if err := ch.scraping.SyncCandidate(c.Request.Context(), candidateID); err != nil {
    c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "scraped"})
}

func (ch *CandidateHandler) ScrapeStats(c *gin.Context) {
  stats, err := ch.scraping.Stats(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"stats": stats})
}
