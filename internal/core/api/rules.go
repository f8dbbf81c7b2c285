package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rescindhq/rescind/internal/rules"
	"github.com/rescindhq/rescind/internal/types"
)

type createRulePayload struct {
	OrgID       string               `json:"org_id" binding:"required"`
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Conditions  types.RuleConditions `json:"conditions"`
	Actions     types.RuleActions    `json:"actions"`
	Priority    *int                 `json:"priority"`
	Active      *bool                `json:"active"`
}

type ruleResponse struct {
	RuleID      types.RuleID         `json:"rule_id"`
	OrgID       types.OrgID          `json:"org_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Conditions  types.RuleConditions `json:"conditions"`
	Actions     types.RuleActions    `json:"actions"`
	Priority    int                  `json:"priority"`
	Active      bool                 `json:"active"`
	UsageCount  int64                `json:"usage_count"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toRuleResponse(rule types.Rule) ruleResponse {
	return ruleResponse{
		RuleID:      rule.RuleID,
		OrgID:       rule.OrgID,
		Name:        rule.Name,
		Description: rule.Description,
		Conditions:  rule.Conditions,
		Actions:     rule.Actions,
		Priority:    rule.Priority,
		Active:      rule.Active,
		UsageCount:  rule.UsageCount,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

// defaultRulePriority applies when the payload omits priority. Mid-range so
// explicit low and high priorities can slot around unconfigured rules.
const defaultRulePriority = 100

// createRule validates and persists a rule. Validation happens here, at
// creation time; the evaluation path assumes stored rules are well-formed.
func (s *Service) createRule(c *gin.Context) {
	var payload createRulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	priority := defaultRulePriority
	if payload.Priority != nil {
		priority = *payload.Priority
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}

	now := time.Now().UTC()
	rule := types.Rule{
		RuleID:      types.NewRuleID(),
		OrgID:       types.OrgID(payload.OrgID),
		Name:        payload.Name,
		Description: payload.Description,
		Conditions:  payload.Conditions,
		Actions:     payload.Actions,
		Priority:    priority,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rules.Validate(&rule); err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.store.CreateRule(c.Request.Context(), &rule); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRuleResponse(rule))
}

func (s *Service) listRules(c *gin.Context) {
	org := types.OrgID(c.Query("org_id"))
	if org == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := s.store.ListRules(c.Request.Context(), org, s.pageLimit(limit))
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]ruleResponse, 0, len(list))
	for _, rule := range list {
		out = append(out, toRuleResponse(rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (s *Service) getRule(c *gin.Context) {
	id, err := types.ParseRuleID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	rule, err := s.store.GetRule(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleResponse(rule))
}

type setActivePayload struct {
	Active *bool `json:"active" binding:"required"`
}

// setRuleActive toggles a rule on or off without editing its definition.
// Deactivation is the supported way to retire a rule; history stays intact.
func (s *Service) setRuleActive(c *gin.Context) {
	id, err := types.ParseRuleID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var payload setActivePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.store.SetRuleActive(c.Request.Context(), id, *payload.Active); err != nil {
		s.writeError(c, err)
		return
	}

	rule, err := s.store.GetRule(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleResponse(rule))
}
