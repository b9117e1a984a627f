package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/repos"
  "github.com/cubeapp/cubeapp-backend/internal/types"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
)

// GeminiCall identifies one model invocation for the audit log.
type GeminiCall struct {
  CallType    string
  CandidateID *uuid.UUID
  PostID      *uuid.UUID
}

type GeminiClient interface {
  GenerateJSON(ctx context.Context, call GeminiCall, prompt string) (map[string]any, error)
  Model() string
}

type geminiClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client

  callLogRepo repos.AICallLogRepo
}

func NewGeminiClient(log *logger.Logger, callLogRepo repos.AICallLogRepo) (GeminiClient, error) {
  apiKey := utils.GetEnv("GEMINI_API_KEY", "", log)
  if apiKey == "" {
    return nil, fmt.Errorf("missing GEMINI_API_KEY")
  }

  baseURL := utils.GetEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com", log)
  model := utils.GetEnv("GEMINI_MODEL", "gemini-2.0-flash", log)
  timeout := utils.GetEnvAsDuration("GEMINI_TIMEOUT", 90*time.Second, log)

  return &geminiClient{
    log:         log.With("service", "GeminiClient"),
    baseURL:     baseURL,
    apiKey:      apiKey,
    model:       model,
    httpClient:  &http.Client{Timeout: timeout},
    callLogRepo: callLogRepo,
  }, nil
}

type geminiRequest struct {
  Contents []struct {
    Parts []struct {
      Text string `json:"text"`
    } `json:"parts"`
  } `json:"contents"`
  GenerationConfig struct {
    Temperature      float64 `json:"temperature"`
    ResponseMimeType string  `json:"responseMimeType"`
  } `json:"generationConfig"`
}

type geminiResponse struct {
  Candidates []struct {
    Content struct {
      Parts []struct {
        Text string `json:"text"`
      } `json:"parts"`
    } `json:"content"`
  } `json:"candidates"`
}

func (c *geminiClient) Model() string {
  return c.model
}

func (c *geminiClient) GenerateJSON(ctx context.Context, call GeminiCall, prompt string) (map[string]any, error) {
  started := time.Now()

  text, err := c.generate(ctx, prompt)

  entry := &types.AICallLog{
    CandidateID: call.CandidateID,
    PostID:      call.PostID,
    CallType:    call.CallType,
    Model:       c.model,
    Prompt:      prompt,
    Response:    text,
    Success:     err == nil,
    DurationMS:  time.Since(started).Milliseconds(),
  }
  if err != nil {
    entry.Error = err.Error()
  }
  // Audit logging is best effort; a logging failure never fails the call.
  if logErr := c.callLogRepo.Create(ctx, nil, entry); logErr != nil {
    c.log.Warn("Failed to record AI call", "call_type", call.CallType, "error", logErr)
  }

  if err != nil {
    return nil, err
  }

  obj, parseErr := extractJSONObject(text)
  if parseErr != nil {
    return nil, fmt.Errorf("gemini returned unparseable JSON: %w; text=%s", parseErr, text)
  }
  return obj, nil
}

func (c *geminiClient) generate(ctx context.Context, prompt string) (string, error) {
  var req geminiRequest
  req.Contents = make([]struct {
    Parts []struct {
      Text string `json:"text"`
    } `json:"parts"`
  }, 1)
  req.Contents[0].Parts = []struct {
    Text string `json:"text"`
  }{{Text: prompt}}
  req.GenerationConfig.Temperature = 0.1
  req.GenerationConfig.ResponseMimeType = "application/json"

  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(req); err != nil {
    return "", err
  }

  path := fmt.Sprintf("/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey)
  httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
  if err != nil {
    return "", err
  }
  httpReq.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(httpReq)
  if err != nil {
    return "", err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return "", readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return "", &UpstreamError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(raw)}
  }

  var out geminiResponse
  if uErr := json.Unmarshal(raw, &out); uErr != nil {
    return "", fmt.Errorf("gemini decode error: %w; raw=%s", uErr, string(raw))
  }
  if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
    return "", &UpstreamError{Provider: "gemini", Body: "empty candidates in response"}
  }

  var sb strings.Builder
  for _, part := range out.Candidates[0].Content.Parts {
    sb.WriteString(part.Text)
  }
  return sb.String(), nil
}

// extractJSONObject tolerates markdown fences and prose around the object the
// model was asked for: it parses the first balanced top-level {...} span.
func extractJSONObject(text string) (map[string]any, error) {
  start := strings.Index(text, "{")
  if start < 0 {
    return nil, fmt.Errorf("no JSON object in text")
  }

  depth := 0
  inString := false
  escaped := false
  for i := start; i < len(text); i++ {
    ch := text[i]
    if inString {
      if escaped {
        escaped = false
      } else if ch == '\\' {
        escaped = true
      } else if ch == '"' {
        inString = false
      }
      continue
    }
    switch ch {
    case '"':
      inString = true
    case '{':
      depth++
    case '}':
      depth--
      if depth == 0 {
        var obj map[string]any
        if err := json.Unmarshal([]byte(text[start:i+1]), &obj); err != nil {
          return nil, err
        }
        return obj, nil
      }
    }
  }
  return nil, fmt.Errorf("unbalanced JSON object in text")
}
