package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/channel"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/middleware"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// SettingsHandler manages team settings used by the dispatcher
type SettingsHandler struct {
	credentials *channel.CredentialService
	log         *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(credentials *channel.CredentialService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		credentials: credentials,
		log:         log,
	}
}

// SaveAPIKey stores the team's encrypted channel API key
func (h *SettingsHandler) SaveAPIKey(c *gin.Context) {
	var req domain.SaveChannelCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	creds := domain.ChannelCredentials{
		EncryptedAPIKey: req.EncryptedAPIKey,
		Passphrase:      req.Passphrase,
	}
	if _, err := channel.DecryptAPIKey(creds.EncryptedAPIKey, creds.Passphrase); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Encrypted API key cannot be decrypted with the passphrase", err))
		return
	}

	if err := h.credentials.Save(c.Request.Context(), middleware.GetTeamID(c), creds); err != nil {
		respondError(c, h.log, "Failed to save API key", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key saved successfully"})
}
