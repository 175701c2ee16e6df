package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/database"
)

const maxSettingBytes = 1 << 20

type SettingsController struct {
	settings SettingStore
}

func NewSettingsController(settings SettingStore) *SettingsController {
	return &SettingsController{settings: settings}
}

func settingKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

// Get returns the stored value as is.
func (sc *SettingsController) Get(c *gin.Context) {
	key := settingKey(c)
	if key == "" {
		respondBadRequest(c, nil, "missing setting key")
		return
	}
	setting, err := sc.settings.GetSetting(c.Request.Context(), key)
	if errors.Is(err, database.ErrNotFound) {
		respondNull(c, http.StatusNotFound)
		return
	}
	if err != nil {
		respondInternalError(c, err, "get setting", nil)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(setting.Value))
}

// Put stores the raw request body under the key.
func (sc *SettingsController) Put(c *gin.Context) {
	key := settingKey(c)
	if key == "" {
		respondBadRequest(c, false, "missing setting key")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingBytes+1))
	if err != nil {
		respondBadRequest(c, false, "unreadable body")
		return
	}
	if len(body) > maxSettingBytes {
		respondBadRequest(c, false, "setting too large")
		return
	}
	if err := sc.settings.SetSetting(c.Request.Context(), key, string(body)); err != nil {
		respondInternalError(c, err, "put setting", false)
		return
	}
	respondOK(c)
}

// Reset removes every setting.
func (sc *SettingsController) Reset(c *gin.Context) {
	if err := sc.settings.Reset(c.Request.Context()); err != nil {
		respondInternalError(c, err, "reset settings", false)
		return
	}
	respondOK(c)
}
