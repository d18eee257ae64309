package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/transport"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (ctrl *Controller) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username != ctrl.cfg.Username || !checkPassword(req.Password, ctrl.passHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, expiresAt, err := generateToken(req.Username, ctrl.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

func (ctrl *Controller) handleListSessions(c *gin.Context) {
	if ctrl.sessions == nil {
		c.JSON(http.StatusOK, []transport.SessionInfo{})
		return
	}
	c.JSON(http.StatusOK, ctrl.sessions.Sessions())
}

func (ctrl *Controller) handleListAddresses(c *gin.Context) {
	if ctrl.sessions == nil {
		c.JSON(http.StatusOK, []data.RouterAddress{})
		return
	}
	c.JSON(http.StatusOK, ctrl.sessions.Addresses())
}

func (ctrl *Controller) handleListBans(c *gin.Context) {
	if ctrl.reputation == nil {
		c.JSON(http.StatusOK, gin.H{"bans": []string{}})
		return
	}
	bans, err := ctrl.reputation.ListBanned()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bans)
}

type banRequest struct {
	PeerHash string `json:"peer_hash" binding:"required"`
	Reason   string `json:"reason"`
}

func (ctrl *Controller) handleCreateBan(c *gin.Context) {
	if ctrl.reputation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reputation store not configured"})
		return
	}
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := parseHashHex(req.PeerHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.reputation.Ban(hash, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"banned": req.PeerHash})
}

func (ctrl *Controller) handleDeleteBan(c *gin.Context) {
	if ctrl.reputation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reputation store not configured"})
		return
	}
	hash, err := parseHashHex(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.reputation.Unban(hash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unbanned": c.Param("hash")})
}
