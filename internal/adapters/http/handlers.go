package http

import (
	"net/http"
	"strconv"

	"github.com/dkeye/Watch/internal/domain"
	"github.com/dkeye/Watch/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// registerSessionRoutes exposes the identity collaborator. A real
// deployment would put an OAuth callback behind POST /session; the
// realtime core only cares that an account id and display name come out.
func registerSessionRoutes(api *gin.RouterGroup) {
	api.POST("/session", func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"displayName" binding:"required,max=36"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid displayName"})
			return
		}

		s := sessions.Default(c)
		accountID, ok := s.Get("account_id").(string)
		if !ok {
			accountID = uuid.NewString()
			s.Set("account_id", accountID)
		}
		s.Set("display_name", req.DisplayName)
		if err := s.Save(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"accountId":   accountID,
			"displayName": req.DisplayName,
			"clientToken": c.GetString("client_token"),
		})
	})

	api.GET("/session", func(c *gin.Context) {
		accountID := c.GetString("account_id")
		if accountID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"accountId":   accountID,
			"displayName": c.GetString("display_name"),
			"clientToken": c.GetString("client_token"),
		})
	})
}

func registerRoomRoutes(api *gin.RouterGroup, st *store.Store) {
	api.POST("/rooms", func(c *gin.Context) {
		accountID := c.GetString("account_id")
		if accountID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		var req struct {
			Name      string `json:"name" binding:"required,max=64"`
			AllowChat *bool  `json:"allowChat"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
			return
		}
		allowChat := true
		if req.AllowChat != nil {
			allowChat = *req.AllowChat
		}
		room, err := st.CreateRoom(c.Request.Context(), domain.RoomName(req.Name), domain.UserID(accountID), allowChat)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
			return
		}
		c.JSON(http.StatusCreated, room)
	})

	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := st.ListActiveRooms(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, err := st.GetRoom(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room)
	})

	api.GET("/rooms/:id/messages", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		msgs, err := st.RecentMessages(c.Request.Context(), domain.RoomID(c.Param("id")), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	})
}
