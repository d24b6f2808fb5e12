package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/putaway"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type PutawayRuleHandler struct {
	*BaseHandler
	planner *putaway.Planner
}

func NewPutawayRuleHandler(base *BaseHandler, planner *putaway.Planner) *PutawayRuleHandler {
	return &PutawayRuleHandler{BaseHandler: base, planner: planner}
}

func (h *PutawayRuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/:id", h.Delete)
}

// List handles GET /putaway-rules?warehouseId=...
func (h *PutawayRuleHandler) List(c *gin.Context) {
	var q dto.RuleQuery
	if !h.BindQuery(c, &q) {
		return
	}
	warehouseID, err := q.Warehouse()
	if err != nil {
		h.Error(c, err)
		return
	}
	rules, err := h.planner.Rules(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": rules})
}

func (h *PutawayRuleHandler) Create(c *gin.Context) {
	var req dto.CreateRuleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	rule, err := h.planner.CreateRule(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, rule)
}

func (h *PutawayRuleHandler) Delete(c *gin.Context) {
	ruleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.planner.DeleteRule(c.Request.Context(), ruleID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
