package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/http/middleware"
	"github.com/tbourn/go-comic-bot/internal/services"
	"github.com/tbourn/go-comic-bot/internal/utils"
)

// UpdateGuildRequest is the body of PUT /guilds/:id. Ids are strings because
// platform snowflakes overflow JSON numbers in most clients. A null or
// missing channel_id stops deliveries to the guild.
type UpdateGuildRequest struct {
	ChannelID  *string `json:"channel_id"`
	RatingMode string  `json:"rating_mode" binding:"required"`
}

// GuildResponse is the public view of a guild's configuration.
type GuildResponse struct {
	GuildID    string  `json:"guild_id"`
	ChannelID  *string `json:"channel_id"`
	RatingMode string  `json:"rating_mode"`
}

func guildResponse(g *domain.Guild) GuildResponse {
	resp := GuildResponse{
		GuildID:    strconv.FormatUint(g.GuildID, 10),
		RatingMode: g.RatingMode.String(),
	}
	if g.ChannelID != nil {
		s := strconv.FormatUint(*g.ChannelID, 10)
		resp.ChannelID = &s
	}
	return resp
}

// GetGuild godoc
// @Summary  Guild configuration
// @Param    id  path  string  true  "Guild id"
// @Success  200  {object}  handlers.GuildResponse
// @Router   /guilds/{id} [get]
func (h *Handlers) GetGuild(c *gin.Context) {
	guildID, err := utils.ParseSnowflake(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid guild id")
		return
	}
	g, err := h.guilds.Get(c.Request.Context(), guildID)
	switch {
	case errors.Is(err, services.ErrGuildNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "guild not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load guild")
		return
	}
	ok(c, http.StatusOK, guildResponse(g))
}

// UpdateGuild godoc
// @Summary  Set a guild's channel and rating mode (admin)
// @Param    id    path  string                        true  "Guild id"
// @Param    body  body  handlers.UpdateGuildRequest  true  "Configuration"
// @Success  200  {object}  handlers.GuildResponse
// @Failure  400  {object}  handlers.ErrorResponse
// @Router   /guilds/{id} [put]
func (h *Handlers) UpdateGuild(c *gin.Context) {
	guildID, err := utils.ParseSnowflake(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid guild id")
		return
	}

	var req UpdateGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	mode, err := domain.ParseRatingMode(req.RatingMode)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating_mode must be none, widget or snoop")
		return
	}
	var channel *uint64
	if req.ChannelID != nil {
		id, err := utils.ParseSnowflake(*req.ChannelID)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid channel_id")
			return
		}
		channel = &id
	}

	g, err := h.guilds.Configure(c.Request.Context(), guildID, channel, mode)
	switch {
	case errors.Is(err, services.ErrInvalidRatingMode):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update guild")
		return
	}
	middleware.LoggerFrom(c).Info().Uint64("guild_id", guildID).Str("rating_mode", mode.String()).Msg("guild updated via api")
	ok(c, http.StatusOK, guildResponse(g))
}
