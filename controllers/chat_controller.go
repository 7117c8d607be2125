package controllers

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/blavejr/finadvisor/models"
	"github.com/blavejr/finadvisor/services"
	"github.com/blavejr/finadvisor/storage"

	"github.com/gin-gonic/gin"
)

//go:embed templates/chat.html
var templateFS embed.FS

const (
	sessionCookie  = "advisor_session"
	cookieMaxAge   = 24 * 60 * 60
	resourcesError = "Unable to load resources. Check your Hugging Face token."
)

// TurnHandler runs one chat turn against a session.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sess *models.Session, text string) (string, bool)
}

// Advisor answers questions from the indexed advisory records.
type Advisor interface {
	Ask(ctx context.Context, question string) (*services.AdvisorAnswer, error)
}

type ChatController struct {
	sessions *storage.SessionStore
	chat     TurnHandler
	advisor  Advisor
	loadErr  error
}

// NewChatController wires the chat UI. A non-nil loadErr means startup
// resources are missing: the page shows the error and chat endpoints answer 503.
func NewChatController(sessions *storage.SessionStore, chat TurnHandler, advisor Advisor, loadErr error) *ChatController {
	return &ChatController{
		sessions: sessions,
		chat:     chat,
		advisor:  advisor,
		loadErr:  loadErr,
	}
}

// Register installs the page template and all routes on router.
func (cc *ChatController) Register(router *gin.Engine) {
	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/chat.html"))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", cc.Index)
	router.POST("/chat", cc.SubmitForm)
	router.POST("/clear", cc.ClearForm)
	router.GET("/health", cc.Health)

	api := router.Group("/api")
	{
		api.GET("/history", cc.History)
		api.POST("/chat", cc.Chat)
		api.DELETE("/history", cc.ClearHistory)
		api.POST("/advise", cc.Advise)
	}
}

func (cc *ChatController) session(c *gin.Context) *models.Session {
	id, _ := c.Cookie(sessionCookie)
	sess := cc.sessions.GetOrCreate(id)
	if sess.ID != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, cookieMaxAge, "/", "", false, true)
	}
	return sess
}

func (cc *ChatController) available() bool {
	return cc.loadErr == nil && cc.chat != nil
}

type pageData struct {
	Messages     []messageView
	MessageCount int
	Pending      bool
	Params       models.GenerationParams
	LoadError    string
	Notice       string
	MinTemp      float64
	MaxTemp      float64
	MinTokens    int
	MaxTokens    int
	TokenTicks   []int
}

// tokenTicks marks the slider grid plus the default, which sits off grid.
func tokenTicks() []int {
	var ticks []int
	for n := models.MinMaxTokens; n <= models.MaxMaxTokens; n += models.MaxTokensStep {
		if n > models.DefaultMaxTokens && (len(ticks) == 0 || ticks[len(ticks)-1] < models.DefaultMaxTokens) {
			ticks = append(ticks, models.DefaultMaxTokens)
		}
		ticks = append(ticks, n)
	}
	return ticks
}

func (cc *ChatController) render(c *gin.Context, status int, sess *models.Session) {
	data := pageData{
		Messages:     toMessageViews(sess.Messages()),
		MessageCount: sess.MessageCount(),
		Pending:      sess.Pending() != "",
		Params:       sess.Params(),
		MinTemp:      models.MinTemperature,
		MaxTemp:      models.MaxTemperature,
		MinTokens:    models.MinMaxTokens,
		MaxTokens:    models.MaxMaxTokens,
		TokenTicks:   tokenTicks(),
	}
	if cc.loadErr != nil {
		data.LoadError = cc.loadErr.Error()
		data.Notice = resourcesError
	}
	c.HTML(status, "chat.html", data)
}

func (cc *ChatController) Index(c *gin.Context) {
	sess := cc.session(c)
	status := http.StatusOK
	if !cc.available() {
		status = http.StatusServiceUnavailable
	}
	cc.render(c, status, sess)
}

// applyFormParams reads the slider values; missing or malformed fields keep the current value.
func applyFormParams(c *gin.Context, sess *models.Session) {
	params := sess.Params()
	if v, err := strconv.ParseFloat(c.PostForm("temperature"), 32); err == nil {
		params.Temperature = float32(v)
	}
	if v, err := strconv.Atoi(c.PostForm("max_tokens")); err == nil {
		params.MaxTokens = v
	}
	sess.SetParams(params)
}

func (cc *ChatController) SubmitForm(c *gin.Context) {
	sess := cc.session(c)
	applyFormParams(c, sess)

	if !cc.available() {
		cc.render(c, http.StatusServiceUnavailable, sess)
		return
	}

	if _, ok := cc.chat.HandleTurn(c.Request.Context(), sess, c.PostForm("message")); !ok {
		log.Printf("Ignored input for session %s", sess.ID)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (cc *ChatController) ClearForm(c *gin.Context) {
	sess := cc.session(c)
	sess.Clear()
	c.Redirect(http.StatusSeeOther, "/")
}

func historyResponse(sess *models.Session) models.HistoryResponse {
	return models.HistoryResponse{
		SessionID:    sess.ID,
		Messages:     sess.Messages(),
		MessageCount: sess.MessageCount(),
		Pending:      sess.Pending(),
		Params:       sess.Params(),
	}
}

func (cc *ChatController) History(c *gin.Context) {
	c.JSON(http.StatusOK, historyResponse(cc.session(c)))
}

func (cc *ChatController) ClearHistory(c *gin.Context) {
	sess := cc.session(c)
	sess.Clear()
	c.JSON(http.StatusOK, historyResponse(sess))
}

func (cc *ChatController) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: message is required"})
		return
	}

	if !cc.available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": resourcesError})
		return
	}

	sess := cc.session(c)
	params := sess.Params()
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}
	sess.SetParams(params)

	reply, ok := cc.chat.HandleTurn(c.Request.Context(), sess, req.Message)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is empty or a reply is still pending"})
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		Reply:        reply,
		Messages:     sess.Messages(),
		MessageCount: sess.MessageCount(),
		Params:       sess.Params(),
	})
}

func (cc *ChatController) Advise(c *gin.Context) {
	startTime := time.Now()

	var req models.AdviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: question is required"})
		return
	}

	if cc.loadErr != nil || cc.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": resourcesError})
		return
	}

	log.Printf("Advising on question: %s", req.Question)
	answer, err := cc.advisor.Ask(c.Request.Context(), req.Question)
	if err != nil {
		log.Printf("Advisor chain failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate advice"})
		return
	}

	processingTime := time.Since(startTime)
	log.Printf("Advice generated in %v from %d sources", processingTime, len(answer.Sources))

	c.JSON(http.StatusOK, models.AdviseResponse{
		Answer:           answer.Answer,
		Sources:          services.ToSourceChunks(answer.Sources),
		ProcessingTimeMs: processingTime.Milliseconds(),
	})
}

func (cc *ChatController) Health(c *gin.Context) {
	resources := "loaded"
	if errors.Is(cc.loadErr, services.ErrResourcesUnavailable) {
		resources = "unavailable"
	} else if cc.loadErr != nil {
		resources = "error"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "finadvisor",
		"resources": resources,
		"sessions":  cc.sessions.Len(),
	})
}
