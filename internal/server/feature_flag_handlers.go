package server

import (
	"bizdir/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

var knownFlags = []string{
	featureflags.ApprovalNotifications,
	featureflags.PendingStatsCache,
	featureflags.DirectoryCache,
}

// GetFeatureFlags returns configured feature flags, the evaluated state for
// the calling admin, and the global state of every flag the server reads.
// @Summary Feature flag snapshot
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	global := make(map[string]bool, len(knownFlags))
	for _, name := range knownFlags {
		global[name] = s.featureFlags.EnabledGlobally(name)
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
		"global":    global,
	})
}
