package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/arnavshah/screening-planner/internal/runlock"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// commitLockKey serializes committing runs across the service
const commitLockKey = "planner-commit"

// PlanRequest is the JSON body of the planner endpoints
type PlanRequest struct {
	RangeStart string `json:"rangeStart" binding:"required"`
	RangeEnd   string `json:"rangeEnd" binding:"required"`
	DryRun     *bool  `json:"dryRun"`
}

// toRequest parses and validates the body. dryRun defaults to true.
func (r PlanRequest) toRequest() (planner.Request, error) {
	start, err := time.Parse(time.RFC3339, r.RangeStart)
	if err != nil {
		return planner.Request{}, errors.New("rangeStart must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, r.RangeEnd)
	if err != nil {
		return planner.Request{}, errors.New("rangeEnd must be an RFC3339 timestamp")
	}
	if end.Before(start) {
		return planner.Request{}, errors.New("rangeEnd must not be before rangeStart")
	}
	dryRun := true
	if r.DryRun != nil {
		dryRun = *r.DryRun
	}
	return planner.Request{RangeStart: start, RangeEnd: end, DryRun: dryRun}, nil
}

// PlannerPreview plans the range without persisting anything
func (h *Handler) PlannerPreview(c *gin.Context) {
	req, ok := h.bindPlan(c)
	if !ok {
		return
	}
	req.DryRun = true
	h.runPlanner(c, req)
}

// PlannerRun plans the range and, when dryRun is false, commits the result
func (h *Handler) PlannerRun(c *gin.Context) {
	req, ok := h.bindPlan(c)
	if !ok {
		return
	}
	if req.DryRun {
		h.runPlanner(c, req)
		return
	}

	release, err := h.Lock.TryAcquire(c.Request.Context(), commitLockKey)
	if errors.Is(err, runlock.ErrBusy) {
		fail(c, http.StatusConflict, "A planner run is already in progress")
		return
	}
	if err != nil {
		h.Log.Error("acquire planner lock failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer func() {
		if err := release(c.Request.Context()); err != nil {
			h.Log.Warn("release planner lock failed", zap.Error(err))
		}
	}()

	h.runPlanner(c, req)
}

func (h *Handler) bindPlan(c *gin.Context) (planner.Request, bool) {
	var body PlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return planner.Request{}, false
	}
	req, err := body.toRequest()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return planner.Request{}, false
	}
	if claims := claimsFrom(c); claims != nil {
		req.ActorID = claims.UserID
	}
	return req, true
}

func (h *Handler) runPlanner(c *gin.Context, req planner.Request) {
	started := time.Now()
	res, err := h.Planner.Run(c.Request.Context(), req)
	elapsed := time.Since(started)
	if h.Metrics != nil {
		h.Metrics.ObserveRun(req.DryRun, res, err, elapsed)
	}

	if err != nil {
		if errors.Is(err, planner.ErrInvalidRange) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.Log.Error("planner run failed",
			zap.Time("range_start", req.RangeStart),
			zap.Time("range_end", req.RangeEnd),
			zap.Bool("dry_run", req.DryRun),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.Log.Info("planner run finished",
		zap.String("actor_id", req.ActorID),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("screenings", len(res.Screenings)),
		zap.Int("assignments", len(res.Assignments)),
		zap.Int("deficits", len(res.Deficits)),
		zap.Int("inserted", res.Inserted),
		zap.Duration("elapsed", elapsed))

	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}
