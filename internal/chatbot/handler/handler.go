package handler

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/chatbot/service"
	"github.com/botdash/botdash/pkg/logger"
	"github.com/botdash/botdash/pkg/middleware"
)

// RegisterChatbotRoutes mounts the provisioning endpoint and the owner-scoped
// directory endpoints on r. The provisioning endpoint authenticates inside
// the service and runs behind open; every other route runs behind authed.
func RegisterChatbotRoutes(r gin.IRouter, svc *service.Service, open, authed gin.HandlersChain) {
	r.POST("/chatbots", append(slices.Clone(open), provision(svc))...)

	g := r.Group("/chatbots", authed...)
	g.GET("", func(c *gin.Context) {
		caller, _ := middleware.CallerFrom(c)
		list, err := svc.List(c.Request.Context(), caller.ID)
		if err != nil {
			internalError(c, "list chatbots", err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.GET("/orphans", func(c *gin.Context) {
		caller, _ := middleware.CallerFrom(c)
		list, err := svc.Orphans(c.Request.Context(), caller.ID)
		if err != nil {
			internalError(c, "list orphans", err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		caller, _ := middleware.CallerFrom(c)
		if err := svc.Delete(c.Request.Context(), caller.ID, c.Param("id")); err != nil {
			directoryError(c, "delete chatbot", err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/embed", func(c *gin.Context) {
		caller, _ := middleware.CallerFrom(c)
		bot, err := svc.RepairEmbed(c.Request.Context(), caller.ID, c.Param("id"))
		if err != nil {
			directoryError(c, "repair embed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chatbot": bot})
	})

	g.GET("/:id/resources", func(c *gin.Context) {
		caller, _ := middleware.CallerFrom(c)
		links, err := svc.ResourceLinks(c.Request.Context(), caller.ID, c.Param("id"))
		if errors.Is(err, service.ErrNoObjectStore) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			directoryError(c, "resource links", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"links": links})
	})
}

// provision reports every failure as 500 with the failure message.
func provision(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, _ := middleware.BearerToken(c.GetHeader("Authorization"))

		var req chatbot.ProvisionRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			// authentication is still the first gate
			if _, err := svc.Authenticate(c.Request.Context(), credential); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid request body: " + bindErr.Error()})
			return
		}

		bot, err := svc.Provision(c.Request.Context(), credential, req)
		if err != nil {
			resp := gin.H{"error": err.Error()}
			if id, ok := chatbot.OrphanID(err); ok {
				resp["chatbotId"] = id
			}
			c.JSON(http.StatusInternalServerError, resp)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "chatbot": bot})
	}
}

func directoryError(c *gin.Context, op string, err error) {
	if errors.Is(err, chatbot.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	internalError(c, op, err)
}

func internalError(c *gin.Context, op string, err error) {
	logger.Errorf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
