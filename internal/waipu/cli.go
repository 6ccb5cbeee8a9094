package waipu

import (
	"context"

	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/purge"
)

// Discorder is the part of the Discord client used by the front ends.
type Discorder interface {
	Destinations(ctx context.Context) ([]discord.Entity, error)
	purge.Resolver
}
