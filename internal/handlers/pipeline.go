package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/cubeapp/cubeapp-backend/internal/scheduler"
)

type PipelineHandler struct {
  scheduler *scheduler.Scheduler
}

func NewPipelineHandler(sched *scheduler.Scheduler) *PipelineHandler {
  return &PipelineHandler{scheduler: sched}
}

func (ph *PipelineHandler) Status(c *gin.Context) {
  c.JSON(http.StatusOK, gin.H{"tasks": ph.scheduler.Status()})
}

// Run triggers a named task immediately. A task whose slot is taken answers
// 409 instead of queueing a second run.
func (ph *PipelineHandler) Run(c *gin.Context) {
  name := c.Param("task")

  if err := ph.scheduler.RunNow(c.Request.Context(), name); err != nil {
    status := http.StatusBadRequest
    if errors.Is(err, scheduler.ErrTaskRunning) {
      status = http.StatusConflict
    }
    c.JSON(status, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "completed", "task": name})
}
