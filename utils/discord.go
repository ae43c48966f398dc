package utils

import (
	"reflect"

	"github.com/bwmarrin/discordgo"
)

func GetUsername(entities ...any) string {
	if user := GetUser(entities...); user != nil {
		return user.Username
	}
	return "unknown"
}

// GetUser digs the acting user out of whichever discordgo entity carries it.
// Interactions in guilds carry a Member, DMs carry a User.
func GetUser(entities ...any) *discordgo.User {
	for _, entity := range entities {
		v := reflect.ValueOf(entity)
		if v.Kind() == reflect.Pointer && v.IsNil() {
			continue
		}
		switch e := entity.(type) {
		case *discordgo.User:
			return e
		case *discordgo.Member:
			return GetUser(e.User)
		case *discordgo.Message:
			return GetUser(e.Author, e.Member)
		case *discordgo.Interaction:
			return GetUser(e.Member, e.User)
		case *discordgo.InteractionCreate:
			return GetUser(e.Interaction)
		case *discordgo.MessageInteraction:
			return GetUser(e.User, e.Member)
		default:
			continue
		}
	}
	return nil
}
