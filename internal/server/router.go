package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "github.com/cubeapp/cubeapp-backend/internal/handlers"
)

type RouterConfig struct {
  CandidateHandler *handlers.CandidateHandler
  AnalysisHandler  *handlers.AnalysisHandler
  PipelineHandler  *handlers.PipelineHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    // Candidates
    api.GET("/candidates", cfg.CandidateHandler.List)
    api.GET("/candidates/:id", cfg.CandidateHandler.Get)
    api.GET("/candidates/:id/followers", cfg.CandidateHandler.FollowerHistory)
    api.GET("/candidates/:id/sentiment", cfg.AnalysisHandler.SentimentByCandidate)
    api.GET("/candidates/:id/viability", cfg.AnalysisHandler.ViabilityByCandidate)
    api.GET("/candidates/:id/scenario", cfg.AnalysisHandler.ScenarioByCandidate)

    // Scenarios
    api.GET("/scenarios", cfg.AnalysisHandler.ListScenarios)

    // Scraping
    api.POST("/scraping/candidate/:id", cfg.CandidateHandler.Scrape)
    api.GET("/scraping/stats", cfg.CandidateHandler.ScrapeStats)

    // Pipeline
    api.GET("/pipeline/status", cfg.PipelineHandler.Status)
    api.POST("/pipeline/run/:task", cfg.PipelineHandler.Run)
  }

  return router
}
