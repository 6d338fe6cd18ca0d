package bot

import (
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"community-bot/internal/config"
)

// Chain applies middleware so the first listed runs outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// OwnerMiddleware restricts a handler to the configured bot owners.
func OwnerMiddleware(cfg *config.Config) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			sender := c.Sender()
			if sender == nil || !cfg.IsOwner(sender.UserID) {
				log.Warn().
					Int64("user_id", senderID(c)).
					Str("command", c.Command()).
					Msg("Non-owner attempted owner command")
				return c.ReplyEphemeral("This command is for the bot owner only.")
			}
			return next(c)
		}
	}
}

// RoleMiddleware restricts a handler to members holding allowed(roles).
func RoleMiddleware(allowed func(roleIDs []int64) bool) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			sender := c.Sender()
			if sender == nil || c.GuildID() == 0 || !allowed(sender.RoleIDs) {
				log.Warn().
					Int64("user_id", senderID(c)).
					Str("command", c.Command()).
					Msg("Member without the required role attempted command")
				return c.ReplyEphemeral("You do not have permission to use this command.")
			}
			return next(c)
		}
	}
}

// HasRole allows members holding roleID.
func HasRole(roleID int64) func([]int64) bool {
	return func(roles []int64) bool {
		for _, r := range roles {
			if r == roleID {
				return true
			}
		}
		return false
	}
}

// LoggingMiddleware logs every interaction.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			log.Debug().
				Int64("user_id", senderID(c)).
				Int64("guild_id", c.GuildID()).
				Int64("channel_id", c.ChannelID()).
				Str("command", c.Command()).
				Str("custom_id", c.CustomID()).
				Msg("Received interaction")

			err := next(c)
			if err != nil {
				log.Error().Err(err).
					Int64("user_id", senderID(c)).
					Str("command", c.Command()).
					Str("custom_id", c.CustomID()).
					Msg("Interaction handler failed")
			}
			return err
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Str("command", c.Command()).
						Msg("Recovered from panic in handler")
					_ = c.ReplyEphemeral("❌ Something went wrong, please try again later.")
					err = nil
				}
			}()
			return next(c)
		}
	}
}

func senderID(c Context) int64 {
	if s := c.Sender(); s != nil {
		return s.UserID
	}
	return 0
}
