package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rafflepool/rafflepool/internal/core/application"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	svc         application.Service
	eventBroker *broker[application.LotteryEvent]
}

func NewHandler(svc application.Service) *Handler {
	h := &Handler{
		svc:         svc,
		eventBroker: newBroker[application.LotteryEvent](),
	}
	go h.listenToEvents()
	return h
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1")
	v1.POST("/entries", h.enter)
	v1.GET("/round", h.getCurrentRound)
	v1.POST("/round/conclude", h.triggerConclusion)
	v1.POST("/oracle/fulfillments", h.fulfillRandomness)
	v1.GET("/info", h.getInfo)
	v1.GET("/winner", h.getWinner)
	v1.GET("/rounds", h.getRoundsIds)
	v1.GET("/rounds/:id", h.getRoundById)
	v1.GET("/events", h.streamEvents)
}

type enterRequest struct {
	Participant string `json:"participant" binding:"required"`
	Amount      uint64 `json:"amount"`
}

func (h *Handler) enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	round, err := h.svc.Enter(c.Request.Context(), req.Participant, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"round_id":     round.Id,
		"pool_balance": round.PoolAmount,
		"participants": len(round.Entries),
	})
}

func (h *Handler) getCurrentRound(c *gin.Context) {
	ctx := c.Request.Context()

	round, err := h.svc.GetCurrentRound(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	diag, err := h.svc.CheckReady(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"round":     roundView(round),
		"readiness": readinessView(diag),
	})
}

func (h *Handler) triggerConclusion(c *gin.Context) {
	requestId, err := h.svc.Trigger(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request_id": requestId})
}

type fulfillmentRequest struct {
	RequestId string   `json:"request_id" binding:"required"`
	Values    []uint64 `json:"values" binding:"required"`
}

func (h *Handler) fulfillRandomness(c *gin.Context) {
	var req fulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.svc.FulfillRandomness(c.Request.Context(), req.RequestId, req.Values)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcomeView(outcome))
}

func (h *Handler) getInfo(c *gin.Context) {
	info, err := h.svc.GetInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stake_amount":   info.Stake,
		"round_interval": info.RoundInterval,
		"oracle": gin.H{
			"confirmations":   info.OracleParams.Confirmations,
			"num_values":      info.OracleParams.NumValues,
			"resource_budget": info.OracleParams.ResourceBudget,
			"request_class":   info.OracleParams.RequestClass,
		},
	})
}

func (h *Handler) getWinner(c *gin.Context) {
	outcome, err := h.svc.GetLastOutcome(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if outcome == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no concluded round yet"})
		return
	}

	c.JSON(http.StatusOK, outcomeView(outcome))
}

func (h *Handler) getRoundsIds(c *gin.Context) {
	after, err := parseTimestamp(c.Query("after"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after timestamp"})
		return
	}
	before, err := parseTimestamp(c.Query("before"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
		return
	}

	ids, err := h.svc.GetRoundsIds(c.Request.Context(), after, before)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"round_ids": ids})
}

func (h *Handler) getRoundById(c *gin.Context) {
	round, err := h.svc.GetRoundById(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, roundView(round))
}

func (h *Handler) streamEvents(c *gin.Context) {
	l := &listener[application.LotteryEvent]{
		id: uuid.NewString(),
		ch: make(chan application.LotteryEvent, 16),
	}
	h.eventBroker.pushListener(l)
	defer h.eventBroker.removeListener(l.id)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-l.ch:
			if !ok {
				return false
			}
			name, payload := eventView(event)
			c.SSEvent(name, payload)
			return true
		}
	})
}

func (h *Handler) listenToEvents() {
	for event := range h.svc.GetEventsChannel(context.Background()) {
		h.eventBroker.broadcast(event)
	}
}

func abortWithError(c *gin.Context, err error) {
	var insufficientStake domain.InsufficientStakeError
	var notReady domain.ConclusionNotReadyError
	var transferFailed domain.TransferFailedError

	switch {
	case errors.As(err, &insufficientStake):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoundNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &notReady):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"readiness": readinessView(notReady.Diagnostic),
		})
	case errors.Is(err, application.ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transferFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func roundView(round *domain.Round) gin.H {
	entries := make([]gin.H, 0, len(round.Entries))
	for _, entry := range round.Entries {
		entries = append(entries, gin.H{
			"participant": entry.Participant,
			"amount":      entry.Amount,
		})
	}

	view := gin.H{
		"id":           round.Id,
		"stake":        round.Stake,
		"stage":        round.Stage.Code.String(),
		"opened_at":    round.OpenedAt,
		"pool_balance": round.PoolAmount,
		"entries":      entries,
	}
	if round.IsCalculating() || round.IsConcluded() {
		view["request_id"] = round.RequestId
	}
	if round.IsConcluded() {
		view["concluded_at"] = round.ConcludedAt
		view["winner"] = round.Winner
		view["prize"] = round.Prize
		view["random_value"] = strconv.FormatUint(round.RandomValue, 10)
	}
	return view
}

func readinessView(diag domain.Readiness) gin.H {
	return gin.H{
		"ready":        diag.Ready,
		"balance":      diag.Balance,
		"participants": diag.Participants,
		"state":        diag.Stage.String(),
	}
}

func outcomeView(outcome *domain.Outcome) gin.H {
	return gin.H{
		"round_id":     outcome.RoundId,
		"winner":       outcome.Winner,
		"prize":        outcome.Prize,
		"random_value": strconv.FormatUint(outcome.RandomValue, 10),
		"request_id":   outcome.RequestId,
		"timestamp":    outcome.Timestamp,
	}
}

func eventView(event application.LotteryEvent) (string, gin.H) {
	switch e := event.(type) {
	case application.ParticipantEntered:
		return "participant_entered", gin.H{
			"round_id":     e.RoundId,
			"participant":  e.Participant,
			"amount":       e.Amount,
			"pool_balance": e.PoolBalance,
			"participants": e.Participants,
		}
	case application.WinnerSelected:
		return "winner_selected", gin.H{
			"round_id":     e.RoundId,
			"winner":       e.Winner,
			"prize":        e.Prize,
			"random_value": strconv.FormatUint(e.RandomValue, 10),
			"request_id":   e.RequestId,
		}
	default:
		return "unknown", gin.H{}
	}
}

func parseTimestamp(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
