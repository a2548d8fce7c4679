package apihandlers

import (
	"net/http"

	mw "github.com/case-framework/field-survey-backend/pkg/apihelpers/middlewares"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/engine"
	"github.com/gin-gonic/gin"
)

func HealthCheckHandle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type HttpEndpoints struct {
	engine         *engine.Engine
	tokenSignKey   string
	serviceAPIKeys []string
}

func NewHTTPHandler(
	tokenSignKey string,
	serviceAPIKeys []string,
	fieldEngine *engine.Engine,
) *HttpEndpoints {
	return &HttpEndpoints{
		engine:         fieldEngine,
		tokenSignKey:   tokenSignKey,
		serviceAPIKeys: serviceAPIKeys,
	}
}

// AddFieldAPI registers the endpoints used by enumerators in the field.
func (h *HttpEndpoints) AddFieldAPI(rg *gin.RouterGroup) {
	fieldGroup := rg.Group("/field")
	fieldGroup.Use(mw.GetAndValidateFieldUserJWT(h.tokenSignKey))
	{
		h.addRespondentEndpoints(fieldGroup)
		h.addSessionEndpoints(fieldGroup)
		h.addSurveyEndpoints(fieldGroup)
	}
}

// AddAdminAPI registers survey management and response review endpoints.
func (h *HttpEndpoints) AddAdminAPI(rg *gin.RouterGroup) {
	adminGroup := rg.Group("/admin")
	adminGroup.Use(mw.GetAndValidateFieldUserJWT(h.tokenSignKey))
	adminGroup.Use(mw.IsAdminUser())
	{
		h.addAdminSurveyEndpoints(adminGroup)
		h.addAdminResponseEndpoints(adminGroup)
	}
}

// AddServiceAPI registers endpoints called by other services with an API key.
func (h *HttpEndpoints) AddServiceAPI(rg *gin.RouterGroup) {
	internalGroup := rg.Group("/internal")
	internalGroup.Use(mw.HasValidAPIKey(h.serviceAPIKeys))
	{
		internalGroup.POST("/sessions/close-timed-out", h.closeTimedOutSessions)
	}
}
