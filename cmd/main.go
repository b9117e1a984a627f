package main

import (
  "fmt"
  "os"
  "github.com/subosito/gotenv"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
  "github.com/cubeapp/cubeapp-backend/internal/db"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/services"
  "github.com/cubeapp/cubeapp-backend/internal/scheduler"
  "github.com/cubeapp/cubeapp-backend/internal/handlers"
  "github.com/cubeapp/cubeapp-backend/internal/server"
)

func main() {
  _ = gotenv.Load()

  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  candidateRepo := repos.NewCandidateRepo(thePG, log)
  postRepo := repos.NewPostRepo(thePG, log)
  commentRepo := repos.NewCommentRepo(thePG, log)
  followerHistoryRepo := repos.NewFollowerHistoryRepo(thePG, log)
  sentimentRepo := repos.NewSentimentRepo(thePG, log)
  viabilityRepo := repos.NewViabilityRepo(thePG, log)
  scenarioRepo := repos.NewScenarioRepo(thePG, log)
  aiCallLogRepo := repos.NewAICallLogRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  apifyClient, err := services.NewApifyClient(log)
  if err != nil {
    log.Error("Could not init ApifyClient", "error", err)
    os.Exit(1)
  }
  geminiClient, err := services.NewGeminiClient(log, aiCallLogRepo)
  if err != nil {
    log.Error("Could not init GeminiClient", "error", err)
    os.Exit(1)
  }

  eligibilityService := services.NewEligibilityService(log)
  scrapingService := services.NewScrapingService(log, candidateRepo, postRepo, followerHistoryRepo, apifyClient)
  sentimentService := services.NewSentimentService(log, postRepo, commentRepo, sentimentRepo, geminiClient)
  commentService := services.NewCommentService(log, postRepo, commentRepo, apifyClient, sentimentService, services.CommentConfigFromEnv(log))
  viabilityService := services.NewViabilityService(log, candidateRepo, postRepo, sentimentRepo, viabilityRepo, geminiClient, eligibilityService)
  scenarioService := services.NewScenarioService(log, candidateRepo, postRepo, scenarioRepo, eligibilityService)

  // Scheduler
  log.Info("Setting up Scheduler from main...")
  sched := scheduler.New(log, scheduler.Config{
    Scraping:  scrapingService,
    Comments:  commentService,
    Sentiment: sentimentService,
    Viability: viabilityService,
    Scenario:  scenarioService,
  })
  if err := sched.Start(); err != nil {
    log.Error("Could not start scheduler", "error", err)
    os.Exit(1)
  }
  defer sched.Stop()

  // Handlers
  log.Info("Setting up handlers from main...")
  candidateHandler := handlers.NewCandidateHandler(candidateRepo, followerHistoryRepo, scrapingService)
  analysisHandler := handlers.NewAnalysisHandler(sentimentRepo, viabilityRepo, scenarioRepo)
  pipelineHandler := handlers.NewPipelineHandler(sched)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    CandidateHandler: candidateHandler,
    AnalysisHandler:  analysisHandler,
    PipelineHandler:  pipelineHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
